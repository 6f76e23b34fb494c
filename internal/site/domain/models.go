// Package domain holds partner site models. A site prices link and article
// placements and exposes a fixed number of rentable slots.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Site is a partner website that accepts placements.
type Site struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	OwnerAccountID    snowflake.ID `gorm:"not null;index"`
	Domain            string       `gorm:"type:text;not null;uniqueIndex"`
	LinkPriceCents    int64        `gorm:"not null"`
	ArticlePriceCents int64        `gorm:"not null"`
	SlotPriceCents    int64        `gorm:"not null;default:0"`
	SlotsCount        int          `gorm:"not null;default:0"`
	Active            bool         `gorm:"not null;default:true"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Site) TableName() string { return "sites" }
