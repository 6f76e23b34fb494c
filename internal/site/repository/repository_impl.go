package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	sitedomain "github.com/placehub/placehub/internal/site/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() sitedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, site *sitedomain.Site) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sites (
			id, owner_account_id, domain, link_price_cents, article_price_cents,
			slot_price_cents, slots_count, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		site.ID,
		site.OwnerAccountID,
		site.Domain,
		site.LinkPriceCents,
		site.ArticlePriceCents,
		site.SlotPriceCents,
		site.SlotsCount,
		site.Active,
		site.CreatedAt,
		site.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*sitedomain.Site, error) {
	var site sitedomain.Site
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_account_id, domain, link_price_cents, article_price_cents,
		 slot_price_cents, slots_count, active, created_at, updated_at
		 FROM sites WHERE id = ?`,
		id,
	).Scan(&site).Error
	if err != nil {
		return nil, err
	}
	if site.ID == 0 {
		return nil, nil
	}
	return &site, nil
}
