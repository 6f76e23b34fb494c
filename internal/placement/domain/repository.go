package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, p *Placement) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Placement, error)
	ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Placement, error)
	MarkPlaced(ctx context.Context, db *gorm.DB, id snowflake.ID, externalPostID string, expiresAt *time.Time, now time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
	MarkExpired(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	UpdateRenewal(ctx context.Context, db *gorm.DB, id snowflake.ID, expiresAt, now time.Time) error
	SetAutoRenewal(ctx context.Context, db *gorm.DB, id snowflake.ID, enabled bool, now time.Time) error
	// ListDueAutoRenewals returns placed link placements with auto_renewal on
	// whose expiry falls at or before the cutoff.
	ListDueAutoRenewals(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]Placement, error)
	// ListOverdue returns placed link placements whose expiry has passed.
	ListOverdue(ctx context.Context, db *gorm.DB, now time.Time) ([]Placement, error)
	// ListDueScheduled returns scheduled placements whose publish date has
	// arrived.
	ListDueScheduled(ctx context.Context, db *gorm.DB, now time.Time) ([]Placement, error)
}
