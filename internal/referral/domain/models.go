// Package domain contains the referral reward models. A promo code pays a
// one-time bonus to the referred account and a reward to the code owner on the
// referred account's first qualifying deposit.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PromoCode is a referral code owned by a partner account.
type PromoCode struct {
	ID                 snowflake.ID `gorm:"primaryKey"`
	Code               string       `gorm:"type:text;not null;uniqueIndex"`
	OwnerAccountID     snowflake.ID `gorm:"not null;index"`
	BonusCents         int64        `gorm:"not null"`
	PartnerRewardCents int64        `gorm:"not null"`
	MinDepositCents    int64        `gorm:"not null"`
	MaxUses            int          `gorm:"not null"`
	CurrentUses        int          `gorm:"not null;default:0"`
	IsActive           bool         `gorm:"not null;default:true"`
	ExpiresAt          *time.Time   `gorm:""`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PromoCode) TableName() string { return "promo_codes" }
