package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/placehub/placehub/internal/clock"
	ledgerdomain "github.com/placehub/placehub/internal/ledger/domain"
	"github.com/placehub/placehub/internal/notify"
	referraldomain "github.com/placehub/placehub/internal/referral/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Node     *snowflake.Node
	Clock    clock.Clock
	Repo     referraldomain.Repository
	Ledger   ledgerdomain.Service
	Notifier notify.Notifier
}

type referralService struct {
	db       *gorm.DB
	log      *zap.Logger
	node     *snowflake.Node
	clock    clock.Clock
	repo     referraldomain.Repository
	ledger   ledgerdomain.Service
	notifier notify.Notifier
}

func New(p Params) referraldomain.Service {
	return &referralService{
		db:       p.DB,
		log:      p.Log.Named("referral.service"),
		node:     p.Node,
		clock:    p.Clock,
		repo:     p.Repo,
		ledger:   p.Ledger,
		notifier: p.Notifier,
	}
}

func (s *referralService) Deposit(ctx context.Context, req referraldomain.DepositRequest) (*referraldomain.DepositResult, error) {
	if req.AmountCents <= 0 {
		return nil, referraldomain.ErrInvalidDeposit
	}

	account, err := s.ledger.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	var (
		bonusCents int64
		code       *referraldomain.PromoCode
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ledger.Credit(ctx, tx, ledgerdomain.EntryRequest{
			AccountID:   req.AccountID,
			AmountCents: req.AmountCents,
			Type:        ledgerdomain.TransactionTypeDeposit,
			Description: "wallet deposit",
		}); err != nil {
			return err
		}

		trimmed := strings.ToUpper(strings.TrimSpace(req.PromoCode))
		if trimmed == "" || account.ReferralBonusReceived {
			return nil
		}

		pc, err := s.repo.FindByCode(ctx, tx, trimmed, true)
		if err != nil {
			return err
		}
		if pc == nil {
			return referraldomain.ErrCodeNotFound
		}
		if pc.OwnerAccountID == req.AccountID {
			return referraldomain.ErrCodeSelfUse
		}
		if !pc.IsActive {
			return referraldomain.ErrCodeInactive
		}
		now := s.clock.Now().UTC()
		if pc.ExpiresAt != nil && pc.ExpiresAt.Before(now) {
			return referraldomain.ErrCodeExpired
		}
		if req.AmountCents < pc.MinDepositCents {
			// Deposit stands; the bonus simply does not trigger below the
			// qualifying threshold.
			return nil
		}

		ok, err := s.repo.ConsumeUse(ctx, tx, pc.ID)
		if err != nil {
			return err
		}
		if !ok {
			return referraldomain.ErrCodeExhausted
		}

		codeID := pc.ID
		if _, err := s.ledger.Credit(ctx, tx, ledgerdomain.EntryRequest{
			AccountID:   req.AccountID,
			AmountCents: pc.BonusCents,
			Type:        ledgerdomain.TransactionTypeDeposit,
			RelatedID:   &codeID,
			Description: "referral bonus",
		}); err != nil {
			return err
		}
		if _, err := s.ledger.Credit(ctx, tx, ledgerdomain.EntryRequest{
			AccountID:   pc.OwnerAccountID,
			AmountCents: pc.PartnerRewardCents,
			Type:        ledgerdomain.TransactionTypeDeposit,
			RelatedID:   &codeID,
			Description: "referral partner reward",
		}); err != nil {
			return err
		}
		if err := s.ledger.MarkReferralActivated(ctx, tx, req.AccountID); err != nil {
			return err
		}

		bonusCents = pc.BonusCents
		code = pc
		return nil
	})
	if err != nil {
		return nil, err
	}

	if code != nil {
		s.notifier.Notify(ctx, req.AccountID, notify.EventReferralBonus, map[string]string{
			"promo_code":  code.Code,
			"bonus_cents": strconv.FormatInt(bonusCents, 10),
		})
		s.notifier.Notify(ctx, code.OwnerAccountID, notify.EventReferralBonus, map[string]string{
			"promo_code":   code.Code,
			"reward_cents": strconv.FormatInt(code.PartnerRewardCents, 10),
		})
		s.log.Info("referral bonus applied",
			zap.String("account_id", req.AccountID.String()),
			zap.String("promo_code", code.Code),
			zap.Int64("bonus_cents", bonusCents),
			zap.Int64("partner_reward_cents", code.PartnerRewardCents))
	}

	balance, err := s.ledger.GetBalance(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	return &referraldomain.DepositResult{
		AccountID:     req.AccountID.String(),
		AmountCents:   req.AmountCents,
		BonusCents:    bonusCents,
		BalanceCents:  balance.BalanceCents,
		ReferralBonus: code != nil,
	}, nil
}

func (s *referralService) CreateCode(ctx context.Context, req referraldomain.CreateCodeRequest) (*referraldomain.PromoCode, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, referraldomain.ErrInvalidCode
	}
	if req.BonusCents <= 0 || req.PartnerRewardCents < 0 || req.MinDepositCents < 0 || req.MaxUses < 1 {
		return nil, referraldomain.ErrInvalidReward
	}

	now := s.clock.Now().UTC()
	pc := &referraldomain.PromoCode{
		ID:                 s.node.Generate(),
		Code:               code,
		OwnerAccountID:     req.OwnerAccountID,
		BonusCents:         req.BonusCents,
		PartnerRewardCents: req.PartnerRewardCents,
		MinDepositCents:    req.MinDepositCents,
		MaxUses:            req.MaxUses,
		IsActive:           true,
		ExpiresAt:          req.ExpiresAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Insert(ctx, s.db, pc); err != nil {
		return nil, err
	}

	s.log.Info("promo code created",
		zap.String("code", pc.Code),
		zap.String("owner_account_id", pc.OwnerAccountID.String()))
	return pc, nil
}

func (s *referralService) GetCode(ctx context.Context, code string) (*referraldomain.PromoCode, error) {
	pc, err := s.repo.FindByCode(ctx, s.db, strings.ToUpper(strings.TrimSpace(code)), false)
	if err != nil {
		return nil, err
	}
	if pc == nil {
		return nil, referraldomain.ErrCodeNotFound
	}
	return pc, nil
}
