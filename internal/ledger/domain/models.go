// Package domain contains the wallet ledger models. Balances only ever move
// through transaction rows; the transaction log is the source of truth.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TransactionType classifies a ledger movement.
type TransactionType string

const (
	TransactionTypePurchase      TransactionType = "purchase"
	TransactionTypeRenewal       TransactionType = "renewal"
	TransactionTypeAutoRenewal   TransactionType = "auto_renewal"
	TransactionTypeDeposit       TransactionType = "deposit"
	TransactionTypeRefund        TransactionType = "refund"
	// TransactionTypeReversal unwinds a spend debit after a failed purchase
	// saga. Unlike a refund it also rolls lifetime spend back.
	TransactionTypeReversal      TransactionType = "reversal"
	TransactionTypeRental        TransactionType = "rental"
	TransactionTypeRentalRenewal TransactionType = "rental_renewal"
)

// SpendTypes are the debit types that advance an account's lifetime spend
// and therefore its discount tier.
var SpendTypes = []TransactionType{
	TransactionTypePurchase,
	TransactionTypeRenewal,
	TransactionTypeAutoRenewal,
	TransactionTypeRental,
	TransactionTypeRentalRenewal,
}

// Account is a spendable wallet. Balance and total spent are denormalized
// from the transaction log and reconciled by RecalculateSpend.
type Account struct {
	ID                    snowflake.ID `gorm:"primaryKey"`
	BalanceCents          int64        `gorm:"not null;default:0"`
	TotalSpentCents       int64        `gorm:"not null;default:0"`
	DiscountPercent       int16        `gorm:"type:smallint;not null;default:0"`
	ReferralBonusReceived bool         `gorm:"not null;default:false"`
	ReferralActivatedAt   *time.Time   `gorm:""`
	CreatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// Transaction is one append-only ledger row. Debits are negative, credits
// positive; the sum per account always equals the account balance.
type Transaction struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	AccountID   snowflake.ID    `gorm:"not null;index"`
	Type        TransactionType `gorm:"type:text;not null;index"`
	AmountCents int64           `gorm:"not null"`
	RelatedID   *snowflake.ID   `gorm:"index"`
	Description string          `gorm:"type:text"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }

// IsSpendType reports whether t advances lifetime spend.
func IsSpendType(t TransactionType) bool {
	for _, st := range SpendTypes {
		if t == st {
			return true
		}
	}
	return false
}
