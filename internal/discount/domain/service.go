package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Service resolves the discount tier for a lifetime spend amount.
type Service interface {
	// TierFor selects the highest tier whose threshold is covered by
	// totalSpentCents, falling back to the 0% tier. The tier read runs on tx
	// when the caller is inside a transaction; a nil tx uses the root handle.
	TierFor(ctx context.Context, tx *gorm.DB, totalSpentCents int64) (*Tier, error)
	List(ctx context.Context) ([]Response, error)
}

// Tier is the resolved discount for a spend amount.
type Tier struct {
	Name            string
	MinSpentCents   int64
	DiscountPercent int16
}

type Response struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	MinSpentCents   int64     `json:"min_spent_cents"`
	DiscountPercent int16     `json:"discount_percent"`
	CreatedAt       time.Time `json:"created_at"`
}

var (
	ErrInvalidSpend = errors.New("invalid_spend")
	ErrNoTiers      = errors.New("no_discount_tiers")
)
