package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	referraldomain "github.com/placehub/placehub/internal/referral/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() referraldomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, code *referraldomain.PromoCode) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO promo_codes (
			id, code, owner_account_id, bonus_cents, partner_reward_cents,
			min_deposit_cents, max_uses, current_uses, is_active, expires_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		code.ID,
		code.Code,
		code.OwnerAccountID,
		code.BonusCents,
		code.PartnerRewardCents,
		code.MinDepositCents,
		code.MaxUses,
		code.CurrentUses,
		code.IsActive,
		code.ExpiresAt,
		code.CreatedAt,
		code.UpdatedAt,
	).Error
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string, forUpdate bool) (*referraldomain.PromoCode, error) {
	query := `SELECT id, code, owner_account_id, bonus_cents, partner_reward_cents,
		 min_deposit_cents, max_uses, current_uses, is_active, expires_at,
		 created_at, updated_at
	 FROM promo_codes WHERE code = ?`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var pc referraldomain.PromoCode
	err := db.WithContext(ctx).Raw(query, code).Scan(&pc).Error
	if err != nil {
		return nil, err
	}
	if pc.ID == 0 {
		return nil, nil
	}
	return &pc, nil
}

func (r *repo) ConsumeUse(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE promo_codes
		 SET current_uses = current_uses + 1, updated_at = ?
		 WHERE id = ? AND current_uses < max_uses`,
		time.Now().UTC(),
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
