package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DiscountTier maps a lifetime spend threshold to a discount percentage.
// The table always contains a 0% tier with min_spent_cents = 0.
type DiscountTier struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	Name            string       `gorm:"type:text;not null"`
	MinSpentCents   int64        `gorm:"not null;uniqueIndex"`
	DiscountPercent int16        `gorm:"type:smallint;not null"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (DiscountTier) TableName() string { return "discount_tiers" }
