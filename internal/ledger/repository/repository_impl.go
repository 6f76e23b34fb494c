package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/placehub/placehub/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

func (r *repo) InsertAccount(ctx context.Context, db *gorm.DB, account *ledgerdomain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (
			id, balance_cents, total_spent_cents, discount_percent,
			referral_bonus_received, referral_activated_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.BalanceCents,
		account.TotalSpentCents,
		account.DiscountPercent,
		account.ReferralBonusReceived,
		account.ReferralActivatedAt,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) ListAccountIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(`SELECT id FROM accounts ORDER BY id`).Scan(&ids).Error
	return ids, err
}

func (r *repo) FindAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ledgerdomain.Account, error) {
	return findAccount(ctx, db, id, false)
}

func (r *repo) FindAccountForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ledgerdomain.Account, error) {
	return findAccount(ctx, db, id, true)
}

func findAccount(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*ledgerdomain.Account, error) {
	query := `SELECT id, balance_cents, total_spent_cents, discount_percent,
		 referral_bonus_received, referral_activated_at, created_at, updated_at
	 FROM accounts WHERE id = ?`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}
	var account ledgerdomain.Account
	err := db.WithContext(ctx).Raw(query, id).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) UpdateAccountBalances(ctx context.Context, db *gorm.DB, account *ledgerdomain.Account) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET balance_cents = ?, total_spent_cents = ?, discount_percent = ?, updated_at = ?
		 WHERE id = ?`,
		account.BalanceCents,
		account.TotalSpentCents,
		account.DiscountPercent,
		account.UpdatedAt,
		account.ID,
	).Error
}

// MarkReferralActivated is guarded on the flag so two racing qualifying
// deposits can never both pay the bonus.
func (r *repo) MarkReferralActivated(ctx context.Context, db *gorm.DB, accountID snowflake.ID, at time.Time) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET referral_bonus_received = TRUE, referral_activated_at = ?, updated_at = ?
		 WHERE id = ? AND referral_bonus_received = FALSE`,
		at,
		at,
		accountID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledgerdomain.ErrReferralAlreadyActive
	}
	return nil
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *ledgerdomain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, account_id, type, amount_cents, related_id, description, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.AccountID,
		string(txn.Type),
		txn.AmountCents,
		txn.RelatedID,
		txn.Description,
		txn.CreatedAt,
	).Error
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, accountID snowflake.ID, limit int) ([]ledgerdomain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []ledgerdomain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, type, amount_cents, related_id, description, created_at
		 FROM transactions WHERE account_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		accountID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SumTransactions(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE account_id = ?`,
		accountID,
	).Scan(&total).Error
	return total, err
}

func (r *repo) SumSpendDebits(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (int64, error) {
	types := make([]string, 0, len(ledgerdomain.SpendTypes))
	for _, t := range ledgerdomain.SpendTypes {
		types = append(types, string(t))
	}
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(-amount_cents), 0)
		 FROM transactions
		 WHERE account_id = ? AND amount_cents < 0 AND type IN (`+placeholders(len(types))+`)`,
		append([]any{accountID}, toAny(types)...)...,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}

	// Saga reversals unwind the spend their debit recorded.
	var reversed int64
	err = db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_cents), 0)
		 FROM transactions
		 WHERE account_id = ? AND amount_cents > 0 AND type = ?`,
		accountID,
		string(ledgerdomain.TransactionTypeReversal),
	).Scan(&reversed).Error
	if err != nil {
		return 0, err
	}

	total -= reversed
	if total < 0 {
		total = 0
	}
	return total, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toAny(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}
