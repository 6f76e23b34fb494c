// Package seed bootstraps reference data so a fresh install prices purchases
// correctly from the first request.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	discountdomain "github.com/placehub/placehub/internal/discount/domain"
	"gorm.io/gorm"
)

// defaultTiers covers the spend ladder from the free tier upward. Amounts are
// lifetime spend in cents.
var defaultTiers = []discountdomain.DiscountTier{
	{Name: "base", MinSpentCents: 0, DiscountPercent: 0},
	{Name: "silver", MinSpentCents: 50_000, DiscountPercent: 10},
	{Name: "gold", MinSpentCents: 250_000, DiscountPercent: 15},
	{Name: "platinum", MinSpentCents: 1_000_000, DiscountPercent: 20},
}

// EnsureDefaultTiers seeds the discount ladder once; an already-populated
// table is left untouched.
func EnsureDefaultTiers(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&discountdomain.DiscountTier{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		for _, tier := range defaultTiers {
			tier.ID = node.Generate()
			tier.CreatedAt = now
			if err := tx.Create(&tier).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
