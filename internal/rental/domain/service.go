package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role filters rental listings by the actor's side of the lease.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleTenant Role = "tenant"
)

// Service drives the rental state machine. Money moves and status changes for
// one transition always commit in the same database transaction, together
// with the audit event.
type Service interface {
	// Create inserts a rental in pending_approval. The owner must own the
	// site; no money moves yet.
	Create(ctx context.Context, req CreateRequest) (*SiteSlotRental, error)
	// Approve is tenant-only. Debits slots_count x price_per_slot and
	// activates the rental; insufficient balance leaves it pending.
	Approve(ctx context.Context, tenantID, rentalID snowflake.ID) (*SiteSlotRental, error)
	Reject(ctx context.Context, tenantID, rentalID snowflake.ID) (*SiteSlotRental, error)
	// Renew is tenant-only and valid only from active. Re-debits at the
	// current price and extends expiry.
	Renew(ctx context.Context, tenantID, rentalID snowflake.ID) (*SiteSlotRental, error)
	// Cancel is owner-only and forbidden while any slot is in use; the check
	// re-reads slots_used under the transition's row lock. Refunds the
	// current period to the tenant when the rental is still running.
	Cancel(ctx context.Context, ownerID, rentalID snowflake.ID) (*SiteSlotRental, error)
	SetAutoRenewal(ctx context.Context, tenantID, rentalID snowflake.ID, enabled bool) error
	Get(ctx context.Context, actorID, rentalID snowflake.ID) (*SiteSlotRental, error)
	List(ctx context.Context, actorID snowflake.ID, role Role) ([]SiteSlotRental, error)
	History(ctx context.Context, actorID, rentalID snowflake.ID) ([]RentalEvent, error)

	// RunAutoRenewals renews active rentals with auto_renewal set whose
	// expiry falls inside the lookahead window, isolating failures.
	RunAutoRenewals(ctx context.Context) (int, error)
	// ExpireDue marks overdue active rentals expired.
	ExpireDue(ctx context.Context) (int, error)
}

type CreateRequest struct {
	OwnerAccountID    snowflake.ID
	TenantAccountID   snowflake.ID
	SiteID            snowflake.ID
	SlotsCount        int
	PricePerSlotCents int64
}

// Response is the JSON shape returned by the HTTP handlers.
type Response struct {
	ID                string     `json:"id"`
	OwnerAccountID    string     `json:"owner_account_id"`
	TenantAccountID   string     `json:"tenant_account_id"`
	SiteID            string     `json:"site_id"`
	SlotsCount        int        `json:"slots_count"`
	SlotsUsed         int        `json:"slots_used"`
	PricePerSlotCents int64      `json:"price_per_slot_cents"`
	Status            string     `json:"status"`
	AutoRenewal       bool       `json:"auto_renewal"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

var (
	ErrNotFound      = errors.New("rental_not_found")
	ErrNotOwner      = errors.New("rental_not_owner")
	ErrNotTenant     = errors.New("rental_not_tenant")
	ErrNotParty      = errors.New("rental_not_party")
	ErrStateConflict = errors.New("rental_state_conflict")
	ErrSlotsInUse    = errors.New("rental_slots_in_use")
	ErrInvalidSlots  = errors.New("invalid_slots_count")
	ErrInvalidPrice  = errors.New("invalid_slot_price")
	ErrInvalidRole   = errors.New("invalid_rental_role")
	ErrSelfRental    = errors.New("rental_self_lease")
)
