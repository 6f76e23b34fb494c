package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists accounts and transaction rows. Implementations take the
// caller's db handle so services can compose them inside one transaction.
type Repository interface {
	InsertAccount(ctx context.Context, db *gorm.DB, account *Account) error
	ListAccountIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error)
	FindAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindAccountForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	UpdateAccountBalances(ctx context.Context, db *gorm.DB, account *Account) error
	MarkReferralActivated(ctx context.Context, db *gorm.DB, accountID snowflake.ID, at time.Time) error
	InsertTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) error
	ListTransactions(ctx context.Context, db *gorm.DB, accountID snowflake.ID, limit int) ([]Transaction, error)
	SumTransactions(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (int64, error)
	SumSpendDebits(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (int64, error)
}
