package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Service handles wallet deposits and referral rewards. The bonus and the
// partner reward are one multi-account credit: either both land or neither.
type Service interface {
	Deposit(ctx context.Context, req DepositRequest) (*DepositResult, error)
	CreateCode(ctx context.Context, req CreateCodeRequest) (*PromoCode, error)
	GetCode(ctx context.Context, code string) (*PromoCode, error)
}

type DepositRequest struct {
	AccountID   snowflake.ID
	AmountCents int64
	// PromoCode is optional. A present but invalid code rejects the whole
	// deposit so the caller can retry without it.
	PromoCode string
}

type DepositResult struct {
	AccountID     string `json:"account_id"`
	AmountCents   int64  `json:"amount_cents"`
	BonusCents    int64  `json:"bonus_cents,omitempty"`
	BalanceCents  int64  `json:"balance_cents"`
	ReferralBonus bool   `json:"referral_bonus_applied"`
}

type CreateCodeRequest struct {
	OwnerAccountID     snowflake.ID
	Code               string
	BonusCents         int64
	PartnerRewardCents int64
	MinDepositCents    int64
	MaxUses            int
	ExpiresAt          *time.Time
}

var (
	ErrCodeNotFound   = errors.New("promo_code_not_found")
	ErrCodeInactive   = errors.New("promo_code_inactive")
	ErrCodeExpired    = errors.New("promo_code_expired")
	ErrCodeExhausted  = errors.New("promo_code_exhausted")
	ErrCodeSelfUse    = errors.New("promo_code_self_use")
	ErrInvalidCode    = errors.New("invalid_promo_code")
	ErrInvalidDeposit = errors.New("invalid_deposit_amount")
	ErrInvalidReward  = errors.New("invalid_reward_amount")
)
