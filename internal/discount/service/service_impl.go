package service

import (
	"context"

	discountdomain "github.com/placehub/placehub/internal/discount/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo discountdomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo discountdomain.Repository
}

func New(p Params) discountdomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("discount.service"),
		repo: p.Repo,
	}
}

func (s *Service) TierFor(ctx context.Context, tx *gorm.DB, totalSpentCents int64) (*discountdomain.Tier, error) {
	if totalSpentCents < 0 {
		return nil, discountdomain.ErrInvalidSpend
	}

	db := tx
	if db == nil {
		db = s.db
	}
	tiers, err := s.repo.ListOrdered(ctx, db)
	if err != nil {
		return nil, err
	}
	return SelectTier(tiers, totalSpentCents)
}

// SelectTier picks the highest tier covered by totalSpentCents. Tiers must be
// ordered by min_spent_cents descending.
func SelectTier(tiers []discountdomain.DiscountTier, totalSpentCents int64) (*discountdomain.Tier, error) {
	if len(tiers) == 0 {
		return nil, discountdomain.ErrNoTiers
	}
	for i := range tiers {
		if tiers[i].MinSpentCents <= totalSpentCents {
			return &discountdomain.Tier{
				Name:            tiers[i].Name,
				MinSpentCents:   tiers[i].MinSpentCents,
				DiscountPercent: tiers[i].DiscountPercent,
			}, nil
		}
	}
	// Fall back to the lowest tier; seeds guarantee a zero threshold row.
	last := tiers[len(tiers)-1]
	return &discountdomain.Tier{
		Name:            last.Name,
		MinSpentCents:   last.MinSpentCents,
		DiscountPercent: last.DiscountPercent,
	}, nil
}

func (s *Service) List(ctx context.Context) ([]discountdomain.Response, error) {
	tiers, err := s.repo.ListOrdered(ctx, s.db)
	if err != nil {
		return nil, err
	}
	resp := make([]discountdomain.Response, 0, len(tiers))
	for i := range tiers {
		resp = append(resp, discountdomain.Response{
			ID:              tiers[i].ID.String(),
			Name:            tiers[i].Name,
			MinSpentCents:   tiers[i].MinSpentCents,
			DiscountPercent: tiers[i].DiscountPercent,
			CreatedAt:       tiers[i].CreatedAt,
		})
	}
	return resp, nil
}
