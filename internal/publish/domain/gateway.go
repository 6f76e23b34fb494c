// Package domain defines the outbound publishing contract. The gateway talks
// to partner sites over HTTP and offers no transactional guarantees; callers
// own compensation when a call fails after local state changed.
package domain

import (
	"context"
	"errors"
)

// Gateway publishes placement content on a partner site.
type Gateway interface {
	// Publish creates the placement remotely and returns the partner's
	// post identifier.
	Publish(ctx context.Context, req PublishRequest) (*PublishResult, error)
	// Remove deletes the remote placement. A missing remote post is not an
	// error; removal is best effort.
	Remove(ctx context.Context, siteDomain, externalPostID string) error
}

type PublishRequest struct {
	SiteDomain string
	Variant    string
	Title      string
	Body       string
	TargetURL  string
}

type PublishResult struct {
	ExternalPostID string
	URL            string
}

var (
	ErrGatewayUnavailable = errors.New("publish_gateway_unavailable")
	ErrGatewayRejected    = errors.New("publish_gateway_rejected")
)
