package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	rentaldomain "github.com/placehub/placehub/internal/rental/domain"
	"gorm.io/gorm"
)

const selectColumns = `id, owner_account_id, tenant_account_id, site_id,
	slots_count, slots_used, price_per_slot_cents, status, auto_renewal,
	expires_at, created_at, updated_at`

type repo struct{}

func Provide() rentaldomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rental *rentaldomain.SiteSlotRental) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO site_slot_rentals (
			id, owner_account_id, tenant_account_id, site_id, slots_count,
			slots_used, price_per_slot_cents, status, auto_renewal, expires_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rental.ID,
		rental.OwnerAccountID,
		rental.TenantAccountID,
		rental.SiteID,
		rental.SlotsCount,
		rental.SlotsUsed,
		rental.PricePerSlotCents,
		string(rental.Status),
		rental.AutoRenewal,
		rental.ExpiresAt,
		rental.CreatedAt,
		rental.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*rentaldomain.SiteSlotRental, error) {
	query := `SELECT ` + selectColumns + ` FROM site_slot_rentals WHERE id = ?`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var rental rentaldomain.SiteSlotRental
	err := db.WithContext(ctx).Raw(query, id).Scan(&rental).Error
	if err != nil {
		return nil, err
	}
	if rental.ID == 0 {
		return nil, nil
	}
	return &rental, nil
}

func (r *repo) ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID, role rentaldomain.Role) ([]rentaldomain.SiteSlotRental, error) {
	column := "tenant_account_id"
	if role == rentaldomain.RoleOwner {
		column = "owner_account_id"
	}
	var out []rentaldomain.SiteSlotRental
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM site_slot_rentals
		 WHERE `+column+` = ? ORDER BY created_at DESC`,
		accountID,
	).Scan(&out).Error
	return out, err
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status rentaldomain.Status, expiresAt *time.Time, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE site_slot_rentals
		 SET status = ?, expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(status),
		expiresAt,
		now,
		id,
	).Error
}

func (r *repo) SetAutoRenewal(ctx context.Context, db *gorm.DB, id snowflake.ID, enabled bool, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE site_slot_rentals SET auto_renewal = ?, updated_at = ? WHERE id = ?`,
		enabled,
		now,
		id,
	).Error
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *rentaldomain.RentalEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO rental_events (
			id, rental_id, action, from_status, to_status, actor_account_id,
			note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.RentalID,
		string(event.Action),
		string(event.FromStatus),
		string(event.ToStatus),
		event.ActorAccountID,
		event.Note,
		event.CreatedAt,
	).Error
}

func (r *repo) ListEvents(ctx context.Context, db *gorm.DB, rentalID snowflake.ID) ([]rentaldomain.RentalEvent, error) {
	var out []rentaldomain.RentalEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, rental_id, action, from_status, to_status, actor_account_id,
		 note, created_at
		 FROM rental_events WHERE rental_id = ?
		 ORDER BY created_at ASC, id ASC`,
		rentalID,
	).Scan(&out).Error
	return out, err
}

func (r *repo) ListDueAutoRenewals(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]rentaldomain.SiteSlotRental, error) {
	var out []rentaldomain.SiteSlotRental
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM site_slot_rentals
		 WHERE status = ? AND auto_renewal = TRUE
		   AND expires_at IS NOT NULL AND expires_at <= ?
		 ORDER BY expires_at ASC`,
		string(rentaldomain.StatusActive),
		cutoff,
	).Scan(&out).Error
	return out, err
}

func (r *repo) ListOverdue(ctx context.Context, db *gorm.DB, now time.Time) ([]rentaldomain.SiteSlotRental, error) {
	var out []rentaldomain.SiteSlotRental
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM site_slot_rentals
		 WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?
		 ORDER BY expires_at ASC`,
		string(rentaldomain.StatusActive),
		now,
	).Scan(&out).Error
	return out, err
}
