package actorctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ActorContextKey is the request context key for the acting account ID.
type ActorContextKey struct{}

// WithAccountID stores the acting account ID in the context.
func WithAccountID(ctx context.Context, accountID int64) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, accountID)
}

// AccountIDFromContext returns the acting account ID from context, if set.
func AccountIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	value := ctx.Value(ActorContextKey{})
	if value == nil {
		return 0, false
	}
	switch typed := value.(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}
