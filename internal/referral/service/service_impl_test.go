package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/placehub/placehub/internal/clock"
	discountdomain "github.com/placehub/placehub/internal/discount/domain"
	discountrepo "github.com/placehub/placehub/internal/discount/repository"
	discountservice "github.com/placehub/placehub/internal/discount/service"
	ledgerdomain "github.com/placehub/placehub/internal/ledger/domain"
	ledgerrepo "github.com/placehub/placehub/internal/ledger/repository"
	ledgerservice "github.com/placehub/placehub/internal/ledger/service"
	"github.com/placehub/placehub/internal/notify"
	referraldomain "github.com/placehub/placehub/internal/referral/domain"
	referralrepo "github.com/placehub/placehub/internal/referral/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type notifyRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *notifyRecorder) Notify(_ context.Context, _ snowflake.ID, event notify.Event, _ map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

type fixture struct {
	svc      referraldomain.Service
	db       *gorm.DB
	node     *snowflake.Node
	clk      *clock.FakeClock
	ledger   ledgerdomain.Service
	notifier *notifyRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.Account{},
		&ledgerdomain.Transaction{},
		&discountdomain.DiscountTier{},
		&referraldomain.PromoCode{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	base := discountdomain.DiscountTier{
		ID: node.Generate(), Name: "base", MinSpentCents: 0, DiscountPercent: 0,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&base).Error)

	discountSvc := discountservice.New(discountservice.Params{
		DB:   db,
		Log:  log,
		Repo: discountrepo.Provide(),
	})
	ledgerSvc := ledgerservice.New(ledgerservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Repo:        ledgerrepo.Provide(),
		DiscountSvc: discountSvc,
	})

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	notifier := &notifyRecorder{}

	svc := New(Params{
		DB:       db,
		Log:      log,
		Node:     node,
		Clock:    clk,
		Repo:     referralrepo.Provide(),
		Ledger:   ledgerSvc,
		Notifier: notifier,
	})

	return &fixture{
		svc:      svc,
		db:       db,
		node:     node,
		clk:      clk,
		ledger:   ledgerSvc,
		notifier: notifier,
	}
}

func (f *fixture) account(t *testing.T) snowflake.ID {
	t.Helper()
	account, err := f.ledger.CreateAccount(context.Background())
	require.NoError(t, err)
	return account.ID
}

func (f *fixture) code(t *testing.T, owner snowflake.ID, maxUses int) *referraldomain.PromoCode {
	t.Helper()
	pc, err := f.svc.CreateCode(context.Background(), referraldomain.CreateCodeRequest{
		OwnerAccountID:     owner,
		Code:               "welcome10",
		BonusCents:         5_000,
		PartnerRewardCents: 2_500,
		MinDepositCents:    10_000,
		MaxUses:            maxUses,
	})
	require.NoError(t, err)
	return pc
}

func (f *fixture) balanceCents(t *testing.T, accountID snowflake.ID) int64 {
	t.Helper()
	balance, err := f.ledger.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	return balance.BalanceCents
}

func (f *fixture) currentUses(t *testing.T, codeID snowflake.ID) int {
	t.Helper()
	var uses int
	require.NoError(t, f.db.Raw(
		`SELECT current_uses FROM promo_codes WHERE id = ?`, codeID,
	).Scan(&uses).Error)
	return uses
}

func TestQualifyingDepositPaysBothSides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	partner := f.account(t)
	referred := f.account(t)
	pc := f.code(t, partner, 5)

	result, err := f.svc.Deposit(ctx, referraldomain.DepositRequest{
		AccountID:   referred,
		AmountCents: 10_000,
		PromoCode:   "welcome10",
	})
	require.NoError(t, err)

	require.True(t, result.ReferralBonus)
	require.Equal(t, int64(5_000), result.BonusCents)
	require.Equal(t, int64(15_000), result.BalanceCents)
	require.Equal(t, int64(15_000), f.balanceCents(t, referred))
	require.Equal(t, int64(2_500), f.balanceCents(t, partner))
	require.Equal(t, 1, f.currentUses(t, pc.ID))

	account, err := f.ledger.GetAccount(ctx, referred)
	require.NoError(t, err)
	require.True(t, account.ReferralBonusReceived)
	require.Len(t, f.notifier.events, 2)
}

func TestReferralBonusIsOneShot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	partner := f.account(t)
	referred := f.account(t)
	pc := f.code(t, partner, 5)

	_, err := f.svc.Deposit(ctx, referraldomain.DepositRequest{
		AccountID: referred, AmountCents: 10_000, PromoCode: "welcome10",
	})
	require.NoError(t, err)

	result, err := f.svc.Deposit(ctx, referraldomain.DepositRequest{
		AccountID: referred, AmountCents: 20_000, PromoCode: "welcome10",
	})
	require.NoError(t, err)

	require.False(t, result.ReferralBonus)
	require.Equal(t, int64(0), result.BonusCents)
	require.Equal(t, int64(35_000), f.balanceCents(t, referred))
	require.Equal(t, int64(2_500), f.balanceCents(t, partner))
	require.Equal(t, 1, f.currentUses(t, pc.ID))
}

func TestDepositBelowThresholdStands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	partner := f.account(t)
	referred := f.account(t)
	pc := f.code(t, partner, 5)

	result, err := f.svc.Deposit(ctx, referraldomain.DepositRequest{
		AccountID: referred, AmountCents: 9_999, PromoCode: "welcome10",
	})
	require.NoError(t, err)
	require.False(t, result.ReferralBonus)
	require.Equal(t, int64(9_999), f.balanceCents(t, referred))
	require.Equal(t, 0, f.currentUses(t, pc.ID))

	// The first qualifying deposit still triggers the bonus later.
	result, err = f.svc.Deposit(ctx, referraldomain.DepositRequest{
		AccountID: referred, AmountCents: 10_000, PromoCode: "welcome10",
	})
	require.NoError(t, err)
	require.True(t, result.ReferralBonus)
	require.Equal(t, int64(24_999), f.balanceCents(t, referred))
}

func TestExhaustedCodeRejectsWholeDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	partner := f.account(t)
	first := f.account(t)
	second := f.account(t)
	f.code(t, partner, 1)

	_, err := f.svc.Deposit(ctx, referraldomain.DepositRequest{
		AccountID: first, AmountCents: 10_000, PromoCode: "welcome10",
	})
	require.NoError(t, err)

	_, err = f.svc.Deposit(ctx, referraldomain.DepositRequest{
		AccountID: second, AmountCents: 10_000, PromoCode: "welcome10",
	})
	require.ErrorIs(t, err, referraldomain.ErrCodeExhausted)
	require.Equal(t, int64(0), f.balanceCents(t, second))

	var count int64
	require.NoError(t, f.db.Raw(
		`SELECT COUNT(1) FROM transactions WHERE account_id = ?`, second,
	).Scan(&count).Error)
	require.Equal(t, int64(0), count)
}

func TestSelfUseRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	partner := f.account(t)
	f.code(t, partner, 5)

	_, err := f.svc.Deposit(ctx, referraldomain.DepositRequest{
		AccountID: partner, AmountCents: 10_000, PromoCode: "welcome10",
	})
	require.ErrorIs(t, err, referraldomain.ErrCodeSelfUse)
	require.Equal(t, int64(0), f.balanceCents(t, partner))
}

func TestExpiredCodeRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	partner := f.account(t)
	referred := f.account(t)

	past := f.clk.Now().Add(-time.Hour)
	_, err := f.svc.CreateCode(ctx, referraldomain.CreateCodeRequest{
		OwnerAccountID:     partner,
		Code:               "stale",
		BonusCents:         5_000,
		PartnerRewardCents: 2_500,
		MaxUses:            5,
		ExpiresAt:          &past,
	})
	require.NoError(t, err)

	_, err = f.svc.Deposit(ctx, referraldomain.DepositRequest{
		AccountID: referred, AmountCents: 10_000, PromoCode: "stale",
	})
	require.ErrorIs(t, err, referraldomain.ErrCodeExpired)
	require.Equal(t, int64(0), f.balanceCents(t, referred))
}

func TestCodeIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	partner := f.account(t)
	pc := f.code(t, partner, 5)
	require.Equal(t, "WELCOME10", pc.Code)

	found, err := f.svc.GetCode(ctx, "  welcome10 ")
	require.NoError(t, err)
	require.Equal(t, pc.ID, found.ID)

	_, err = f.svc.GetCode(ctx, "missing")
	require.ErrorIs(t, err, referraldomain.ErrCodeNotFound)
}
