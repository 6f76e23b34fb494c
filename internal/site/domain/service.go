package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service resolves sites and their placement prices.
type Service interface {
	Get(ctx context.Context, siteID snowflake.ID) (*Site, error)
	// PriceFor returns the gross placement price for the given variant on the
	// site, before any account discount.
	PriceFor(ctx context.Context, siteID snowflake.ID, variant string) (int64, error)
	Create(ctx context.Context, req CreateRequest) (*Site, error)
}

type CreateRequest struct {
	OwnerAccountID    snowflake.ID
	Domain            string
	LinkPriceCents    int64
	ArticlePriceCents int64
	SlotPriceCents    int64
	SlotsCount        int
}

var (
	ErrSiteNotFound   = errors.New("site_not_found")
	ErrSiteInactive   = errors.New("site_inactive")
	ErrInvalidDomain  = errors.New("invalid_site_domain")
	ErrInvalidPrice   = errors.New("invalid_site_price")
	ErrInvalidVariant = errors.New("invalid_placement_variant")
)
