// Package domain contains the slot rental models. A rental leases a block of
// placement slots on a partner site from the site owner to a tenant account.
// Every state transition is recorded in an append-only event log.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status is the rental lifecycle state.
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusActive          Status = "active"
	StatusExpired         Status = "expired"
	StatusCancelled       Status = "cancelled"
	StatusRejected        Status = "rejected"
)

// Action names a transition for the audit trail.
type Action string

const (
	ActionCreate            Action = "create"
	ActionApprove           Action = "approve"
	ActionReject            Action = "reject"
	ActionRenew             Action = "renew"
	ActionCancel            Action = "cancel"
	ActionExpire            Action = "expire"
	ActionToggleAutoRenewal Action = "toggle_auto_renewal"
)

// SiteSlotRental leases slots_count slots at price_per_slot_cents per period.
type SiteSlotRental struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	OwnerAccountID    snowflake.ID `gorm:"not null;index"`
	TenantAccountID   snowflake.ID `gorm:"not null;index"`
	SiteID            snowflake.ID `gorm:"not null;index"`
	SlotsCount        int          `gorm:"not null"`
	SlotsUsed         int          `gorm:"not null;default:0"`
	PricePerSlotCents int64        `gorm:"not null"`
	Status            Status       `gorm:"type:text;not null;index"`
	AutoRenewal       bool         `gorm:"not null;default:false"`
	ExpiresAt         *time.Time   `gorm:"index"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SiteSlotRental) TableName() string { return "site_slot_rentals" }

// TotalPriceCents is the debit for one rental period.
func (r *SiteSlotRental) TotalPriceCents() int64 {
	return int64(r.SlotsCount) * r.PricePerSlotCents
}

// RentalEvent is one append-only audit entry. Past entries are never mutated.
type RentalEvent struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	RentalID       snowflake.ID `gorm:"not null;index"`
	Action         Action       `gorm:"type:text;not null"`
	FromStatus     Status       `gorm:"type:text;not null"`
	ToStatus       Status       `gorm:"type:text;not null"`
	ActorAccountID snowflake.ID `gorm:"not null"`
	Note           string       `gorm:"type:text"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (RentalEvent) TableName() string { return "rental_events" }
