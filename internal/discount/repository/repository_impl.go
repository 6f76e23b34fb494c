package repository

import (
	"context"

	discountdomain "github.com/placehub/placehub/internal/discount/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() discountdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tier *discountdomain.DiscountTier) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO discount_tiers (id, name, min_spent_cents, discount_percent, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		tier.ID,
		tier.Name,
		tier.MinSpentCents,
		tier.DiscountPercent,
		tier.CreatedAt,
	).Error
}

func (r *repo) ListOrdered(ctx context.Context, db *gorm.DB) ([]discountdomain.DiscountTier, error) {
	var tiers []discountdomain.DiscountTier
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, min_spent_cents, discount_percent, created_at
		 FROM discount_tiers
		 ORDER BY min_spent_cents DESC`,
	).Scan(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}
