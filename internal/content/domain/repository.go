package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *ContentItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ContentItem, error)
	// ConsumeUse atomically increments usage_count while it is below
	// usage_limit. Returns false when the item is already exhausted.
	ConsumeUse(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	ReturnUse(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
