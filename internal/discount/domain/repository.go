package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tier *DiscountTier) error
	// ListOrdered returns all tiers ordered by min_spent_cents descending so
	// the first match wins.
	ListOrdered(ctx context.Context, db *gorm.DB) ([]DiscountTier, error)
}
