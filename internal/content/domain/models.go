// Package domain holds the content inventory models. A content item may be
// placed at most usage_limit times; reservations consume that headroom.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Variant distinguishes link and article content.
type Variant string

const (
	VariantLink    Variant = "link"
	VariantArticle Variant = "article"
)

// DefaultArticleUsageLimit applies when article content is created without an
// explicit limit.
const DefaultArticleUsageLimit = 1

// ContentItem is a purchasable link or article owned by one account.
type ContentItem struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	OwnerAccountID snowflake.ID `gorm:"not null;index"`
	Variant        Variant      `gorm:"type:text;not null"`
	Title          string       `gorm:"type:text;not null"`
	Body           string       `gorm:"type:text"`
	TargetURL      string       `gorm:"type:text"`
	UsageLimit     int          `gorm:"not null;default:1"`
	UsageCount     int          `gorm:"not null;default:0"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ContentItem) TableName() string { return "content_items" }
