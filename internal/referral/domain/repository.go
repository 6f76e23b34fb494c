package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, code *PromoCode) error
	FindByCode(ctx context.Context, db *gorm.DB, code string, forUpdate bool) (*PromoCode, error)
	// ConsumeUse atomically increments current_uses while below max_uses.
	ConsumeUse(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}
