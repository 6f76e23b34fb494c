package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Service guards content inventory. Reserve and Release run against the
// caller's transaction so the purchase saga can unwind them atomically.
type Service interface {
	// Reserve checks existence, ownership and remaining headroom, then
	// consumes one use. The increment is a single conditional update so two
	// concurrent purchases can never oversell the same item.
	Reserve(ctx context.Context, tx *gorm.DB, contentID, ownerAccountID snowflake.ID) (*Reservation, error)
	// Release returns one use, floored at zero. Used by saga rollback and
	// placement deletion.
	Release(ctx context.Context, tx *gorm.DB, reservation *Reservation) error
	Create(ctx context.Context, req CreateRequest) (*ContentItem, error)
	Get(ctx context.Context, contentID snowflake.ID) (*ContentItem, error)
}

// Reservation records one consumed use of a content item.
type Reservation struct {
	ContentID snowflake.ID
	Variant   Variant
}

type CreateRequest struct {
	OwnerAccountID snowflake.ID
	Variant        Variant
	Title          string
	Body           string
	TargetURL      string
	UsageLimit     *int
}

var (
	ErrNotFound       = errors.New("content_not_found")
	ErrNotOwned       = errors.New("content_not_owned")
	ErrExhausted      = errors.New("content_exhausted")
	ErrInvalidVariant = errors.New("invalid_content_variant")
	ErrInvalidTitle   = errors.New("invalid_content_title")
	ErrInvalidLimit   = errors.New("invalid_usage_limit")
)
