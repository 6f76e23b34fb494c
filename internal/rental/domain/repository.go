package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rental *SiteSlotRental) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*SiteSlotRental, error)
	ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID, role Role) ([]SiteSlotRental, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, expiresAt *time.Time, now time.Time) error
	SetAutoRenewal(ctx context.Context, db *gorm.DB, id snowflake.ID, enabled bool, now time.Time) error
	InsertEvent(ctx context.Context, db *gorm.DB, event *RentalEvent) error
	ListEvents(ctx context.Context, db *gorm.DB, rentalID snowflake.ID) ([]RentalEvent, error)
	ListDueAutoRenewals(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]SiteSlotRental, error)
	ListOverdue(ctx context.Context, db *gorm.DB, now time.Time) ([]SiteSlotRental, error)
}
