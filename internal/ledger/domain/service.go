package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Service moves money on wallet accounts. Debit and Credit accept the
// caller's open gorm transaction so multi-step flows (purchase saga, rental
// approval, referral deposit) stay atomic; passing nil runs a standalone
// transaction.
type Service interface {
	Debit(ctx context.Context, tx *gorm.DB, req EntryRequest) (*Transaction, error)
	Credit(ctx context.Context, tx *gorm.DB, req EntryRequest) (*Transaction, error)
	CreateAccount(ctx context.Context) (*Account, error)
	GetAccount(ctx context.Context, accountID snowflake.ID) (*Account, error)
	GetBalance(ctx context.Context, accountID snowflake.ID) (*BalanceResponse, error)
	History(ctx context.Context, accountID snowflake.ID, limit int) ([]TransactionResponse, error)
	// MarkReferralActivated records the one-time referral bonus on the
	// account inside the caller's transaction.
	MarkReferralActivated(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) error
	RecalculateSpend(ctx context.Context, accountID snowflake.ID) error
	// ReconcileAll runs RecalculateSpend for every account and returns the
	// number processed.
	ReconcileAll(ctx context.Context) (int, error)
}

// EntryRequest describes one debit or credit. AmountCents is always positive;
// the direction comes from the method called.
type EntryRequest struct {
	AccountID   snowflake.ID
	AmountCents int64
	Type        TransactionType
	RelatedID   *snowflake.ID
	Description string
}

type BalanceResponse struct {
	AccountID       string `json:"account_id"`
	BalanceCents    int64  `json:"balance_cents"`
	TotalSpentCents int64  `json:"total_spent_cents"`
	DiscountPercent int16  `json:"discount_percent"`
}

type TransactionResponse struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	RelatedID   *string   `json:"related_id,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrAccountNotFound       = errors.New("account_not_found")
	ErrInsufficientBalance   = errors.New("insufficient_balance")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidType           = errors.New("invalid_transaction_type")
	ErrReferralAlreadyActive = errors.New("referral_already_active")
)
