package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	placementdomain "github.com/placehub/placehub/internal/placement/domain"
	"gorm.io/gorm"
)

const selectColumns = `id, account_id, site_id, variant, content_ids, status,
	gross_price_cents, discount_percent, final_price_cents, auto_renewal,
	renewal_count, external_post_id, scheduled_at, purchased_at, last_renewed_at,
	expires_at, created_at, updated_at`

type repo struct{}

func Provide() placementdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *placementdomain.Placement) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO placements (
			id, account_id, site_id, variant, content_ids, status,
			gross_price_cents, discount_percent, final_price_cents, auto_renewal,
			renewal_count, external_post_id, scheduled_at, purchased_at,
			last_renewed_at, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.AccountID,
		p.SiteID,
		p.Variant,
		p.ContentIDs,
		string(p.Status),
		p.GrossPriceCents,
		p.DiscountPercent,
		p.FinalPriceCents,
		p.AutoRenewal,
		p.RenewalCount,
		p.ExternalPostID,
		p.ScheduledAt,
		p.PurchasedAt,
		p.LastRenewedAt,
		p.ExpiresAt,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*placementdomain.Placement, error) {
	query := `SELECT ` + selectColumns + ` FROM placements WHERE id = ?`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var p placementdomain.Placement
	err := db.WithContext(ctx).Raw(query, id).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]placementdomain.Placement, error) {
	var out []placementdomain.Placement
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM placements
		 WHERE account_id = ? ORDER BY created_at DESC`,
		accountID,
	).Scan(&out).Error
	return out, err
}

func (r *repo) MarkPlaced(ctx context.Context, db *gorm.DB, id snowflake.ID, externalPostID string, expiresAt *time.Time, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE placements
		 SET status = ?, external_post_id = ?, expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(placementdomain.StatusPlaced),
		externalPostID,
		expiresAt,
		now,
		id,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE placements SET status = ?, updated_at = ? WHERE id = ?`,
		string(placementdomain.StatusFailed),
		now,
		id,
	).Error
}

func (r *repo) MarkExpired(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE placements SET status = ?, auto_renewal = FALSE, updated_at = ? WHERE id = ?`,
		string(placementdomain.StatusExpired),
		now,
		id,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM placements WHERE id = ?`, id).Error
}

func (r *repo) UpdateRenewal(ctx context.Context, db *gorm.DB, id snowflake.ID, expiresAt, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE placements
		 SET expires_at = ?, renewal_count = renewal_count + 1,
		     last_renewed_at = ?, updated_at = ?
		 WHERE id = ?`,
		expiresAt,
		now,
		now,
		id,
	).Error
}

func (r *repo) SetAutoRenewal(ctx context.Context, db *gorm.DB, id snowflake.ID, enabled bool, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE placements SET auto_renewal = ?, updated_at = ? WHERE id = ?`,
		enabled,
		now,
		id,
	).Error
}

func (r *repo) ListDueAutoRenewals(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]placementdomain.Placement, error) {
	var out []placementdomain.Placement
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM placements
		 WHERE status = ? AND auto_renewal = TRUE
		   AND expires_at IS NOT NULL AND expires_at <= ?
		 ORDER BY expires_at ASC`,
		string(placementdomain.StatusPlaced),
		cutoff,
	).Scan(&out).Error
	return out, err
}

func (r *repo) ListOverdue(ctx context.Context, db *gorm.DB, now time.Time) ([]placementdomain.Placement, error) {
	var out []placementdomain.Placement
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM placements
		 WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?
		 ORDER BY expires_at ASC`,
		string(placementdomain.StatusPlaced),
		now,
	).Scan(&out).Error
	return out, err
}

func (r *repo) ListDueScheduled(ctx context.Context, db *gorm.DB, now time.Time) ([]placementdomain.Placement, error) {
	var out []placementdomain.Placement
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM placements
		 WHERE status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?
		 ORDER BY scheduled_at ASC`,
		string(placementdomain.StatusScheduled),
		now,
	).Scan(&out).Error
	return out, err
}
