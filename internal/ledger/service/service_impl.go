package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	discountdomain "github.com/placehub/placehub/internal/discount/domain"
	ledgerdomain "github.com/placehub/placehub/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        ledgerdomain.Repository
	DiscountSvc discountdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        ledgerdomain.Repository
	discountSvc discountdomain.Service
}

func New(p Params) ledgerdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("ledger.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		discountSvc: p.DiscountSvc,
	}
}

func (s *Service) Debit(ctx context.Context, tx *gorm.DB, req ledgerdomain.EntryRequest) (*ledgerdomain.Transaction, error) {
	return s.post(ctx, tx, req, true)
}

func (s *Service) Credit(ctx context.Context, tx *gorm.DB, req ledgerdomain.EntryRequest) (*ledgerdomain.Transaction, error) {
	return s.post(ctx, tx, req, false)
}

// post writes one transaction row and the matching balance update under the
// account row lock. The lock serializes concurrent debits so the balance can
// never go negative.
func (s *Service) post(ctx context.Context, tx *gorm.DB, req ledgerdomain.EntryRequest, debit bool) (*ledgerdomain.Transaction, error) {
	if req.AccountID == 0 {
		return nil, ledgerdomain.ErrAccountNotFound
	}
	if req.AmountCents <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	if req.Type == "" {
		return nil, ledgerdomain.ErrInvalidType
	}

	var posted *ledgerdomain.Transaction
	run := func(tx *gorm.DB) error {
		account, err := s.repo.FindAccountForUpdate(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}
		if account == nil {
			return ledgerdomain.ErrAccountNotFound
		}

		amount := req.AmountCents
		if debit {
			if account.BalanceCents < amount {
				return ledgerdomain.ErrInsufficientBalance
			}
			amount = -amount
		}

		now := time.Now().UTC()
		txn := &ledgerdomain.Transaction{
			ID:          s.genID.Generate(),
			AccountID:   req.AccountID,
			Type:        req.Type,
			AmountCents: amount,
			RelatedID:   req.RelatedID,
			Description: req.Description,
			CreatedAt:   now,
		}
		if err := s.repo.InsertTransaction(ctx, tx, txn); err != nil {
			return err
		}

		account.BalanceCents += amount
		spendDelta := int64(0)
		if debit && ledgerdomain.IsSpendType(req.Type) {
			spendDelta = req.AmountCents
		}
		if !debit && req.Type == ledgerdomain.TransactionTypeReversal {
			spendDelta = -req.AmountCents
		}
		if spendDelta != 0 {
			account.TotalSpentCents += spendDelta
			if account.TotalSpentCents < 0 {
				account.TotalSpentCents = 0
			}
			tier, err := s.discountSvc.TierFor(ctx, tx, account.TotalSpentCents)
			if err != nil {
				return err
			}
			account.DiscountPercent = tier.DiscountPercent
		}
		account.UpdatedAt = now
		if err := s.repo.UpdateAccountBalances(ctx, tx, account); err != nil {
			return err
		}

		posted = txn
		return nil
	}

	var err error
	if tx != nil {
		err = run(tx)
	} else {
		err = s.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		return nil, err
	}
	return posted, nil
}

func (s *Service) CreateAccount(ctx context.Context) (*ledgerdomain.Account, error) {
	now := time.Now().UTC()
	account := &ledgerdomain.Account{
		ID:        s.genID.Generate(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertAccount(ctx, s.db, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, accountID snowflake.ID) (*ledgerdomain.Account, error) {
	account, err := s.repo.FindAccount(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ledgerdomain.ErrAccountNotFound
	}
	return account, nil
}

func (s *Service) GetBalance(ctx context.Context, accountID snowflake.ID) (*ledgerdomain.BalanceResponse, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &ledgerdomain.BalanceResponse{
		AccountID:       account.ID.String(),
		BalanceCents:    account.BalanceCents,
		TotalSpentCents: account.TotalSpentCents,
		DiscountPercent: account.DiscountPercent,
	}, nil
}

func (s *Service) History(ctx context.Context, accountID snowflake.ID, limit int) ([]ledgerdomain.TransactionResponse, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListTransactions(ctx, s.db, accountID, limit)
	if err != nil {
		return nil, err
	}
	resp := make([]ledgerdomain.TransactionResponse, 0, len(items))
	for i := range items {
		var related *string
		if items[i].RelatedID != nil {
			v := items[i].RelatedID.String()
			related = &v
		}
		resp = append(resp, ledgerdomain.TransactionResponse{
			ID:          items[i].ID.String(),
			AccountID:   items[i].AccountID.String(),
			Type:        string(items[i].Type),
			AmountCents: items[i].AmountCents,
			RelatedID:   related,
			Description: items[i].Description,
			CreatedAt:   items[i].CreatedAt,
		})
	}
	return resp, nil
}

func (s *Service) MarkReferralActivated(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) error {
	db := tx
	if db == nil {
		db = s.db
	}
	return s.repo.MarkReferralActivated(ctx, db, accountID, time.Now().UTC())
}

// RecalculateSpend rebuilds total_spent_cents and the cached discount percent
// from the transaction log. Idempotent; safe to run at any time.
func (s *Service) RecalculateSpend(ctx context.Context, accountID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.repo.FindAccountForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if account == nil {
			return ledgerdomain.ErrAccountNotFound
		}

		spent, err := s.repo.SumSpendDebits(ctx, tx, accountID)
		if err != nil {
			return err
		}
		tier, err := s.discountSvc.TierFor(ctx, tx, spent)
		if err != nil {
			return err
		}

		if account.TotalSpentCents == spent && account.DiscountPercent == tier.DiscountPercent {
			return nil
		}
		s.log.Info("reconciled account spend",
			zap.String("account_id", accountID.String()),
			zap.Int64("cached_cents", account.TotalSpentCents),
			zap.Int64("recomputed_cents", spent),
		)

		account.TotalSpentCents = spent
		account.DiscountPercent = tier.DiscountPercent
		account.UpdatedAt = time.Now().UTC()
		return s.repo.UpdateAccountBalances(ctx, tx, account)
	})
}

func (s *Service) ReconcileAll(ctx context.Context) (int, error) {
	ids, err := s.repo.ListAccountIDs(ctx, s.db)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if err := s.RecalculateSpend(ctx, id); err != nil {
			s.log.Warn("spend reconciliation failed",
				zap.String("account_id", id.String()),
				zap.Error(err))
			continue
		}
		processed++
	}
	return processed, nil
}
