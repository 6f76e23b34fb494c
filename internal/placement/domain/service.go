package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Service runs the purchase saga and the placement lifecycle operations.
type Service interface {
	// Purchase validates, reserves content, debits the account and publishes
	// remotely. A gateway failure after the local commit triggers a
	// compensating transaction that restores balance and usage counts.
	// A future ScheduledAt holds the placement in scheduled instead of
	// publishing; PublishScheduled picks it up once the date arrives.
	Purchase(ctx context.Context, req PurchaseRequest) (*Placement, error)
	// Delete refunds the final price, releases every content reservation and
	// removes the row. Deleting an unknown placement is a not-found error,
	// never a second refund.
	Delete(ctx context.Context, actorID, placementID snowflake.ID) error
	// Renew extends a link placement at the account's current discount tier.
	Renew(ctx context.Context, actorID, placementID snowflake.ID) (*Placement, error)
	SetAutoRenewal(ctx context.Context, actorID, placementID snowflake.ID, enabled bool) error
	Get(ctx context.Context, actorID, placementID snowflake.ID) (*Placement, error)
	List(ctx context.Context, accountID snowflake.ID) ([]Placement, error)

	// RunAutoRenewals renews every placement with auto_renewal set whose
	// expiry falls inside the lookahead window. Each placement is processed in
	// isolation; an insufficient balance flips its flag off and notifies the
	// account without touching the others.
	RunAutoRenewals(ctx context.Context) (int, error)
	// ExpireDue marks overdue link placements expired and returns their
	// content reservations.
	ExpireDue(ctx context.Context) (int, error)
	// PublishScheduled publishes scheduled placements whose date has
	// arrived. A gateway failure leaves the row scheduled for the next
	// sweep; the money already moved at purchase time.
	PublishScheduled(ctx context.Context) (int, error)
}

type PurchaseRequest struct {
	AccountID   snowflake.ID
	SiteID      snowflake.ID
	Variant     string
	ContentIDs  []snowflake.ID
	AutoRenewal bool
	ScheduledAt *time.Time
}

// Response is the JSON shape returned by the HTTP handlers.
type Response struct {
	ID              string     `json:"id"`
	AccountID       string     `json:"account_id"`
	SiteID          string     `json:"site_id"`
	Variant         string     `json:"variant"`
	ContentIDs      []string   `json:"content_ids"`
	Status          string     `json:"status"`
	GrossPriceCents int64      `json:"gross_price_cents"`
	DiscountPercent int16      `json:"discount_percent"`
	FinalPriceCents int64      `json:"final_price_cents"`
	AutoRenewal     bool       `json:"auto_renewal"`
	RenewalCount    int        `json:"renewal_count"`
	ExternalPostID  string     `json:"external_post_id,omitempty"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	PurchasedAt     time.Time  `json:"purchased_at"`
	LastRenewedAt   *time.Time `json:"last_renewed_at,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

var (
	ErrNotFound         = errors.New("placement_not_found")
	ErrNotOwned         = errors.New("placement_not_owned")
	ErrNoContent        = errors.New("placement_requires_content")
	ErrNotPlaced        = errors.New("placement_not_placed")
	ErrNotRenewable     = errors.New("placement_not_renewable")
	ErrInvalidVariant   = errors.New("invalid_placement_variant")
	ErrInvalidSchedule  = errors.New("invalid_schedule_date")
	ErrVariantMismatch  = errors.New("content_variant_mismatch")
	ErrDuplicateContent = errors.New("duplicate_content_id")
)
