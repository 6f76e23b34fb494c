package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	contentdomain "github.com/placehub/placehub/internal/content/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() contentdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, item *contentdomain.ContentItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO content_items (
			id, owner_account_id, variant, title, body, target_url,
			usage_limit, usage_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.OwnerAccountID,
		string(item.Variant),
		item.Title,
		item.Body,
		item.TargetURL,
		item.UsageLimit,
		item.UsageCount,
		item.CreatedAt,
		item.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*contentdomain.ContentItem, error) {
	var item contentdomain.ContentItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_account_id, variant, title, body, target_url,
		 usage_limit, usage_count, created_at, updated_at
		 FROM content_items WHERE id = ?`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// ConsumeUse is the compare-and-swap that prevents overselling: the WHERE
// clause re-checks headroom inside the database, so the losing side of a race
// sees zero rows affected.
func (r *repo) ConsumeUse(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE content_items
		 SET usage_count = usage_count + 1, updated_at = ?
		 WHERE id = ? AND usage_count < usage_limit`,
		time.Now().UTC(),
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ReturnUse(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE content_items
		 SET usage_count = usage_count - 1, updated_at = ?
		 WHERE id = ? AND usage_count > 0`,
		time.Now().UTC(),
		id,
	).Error
}
