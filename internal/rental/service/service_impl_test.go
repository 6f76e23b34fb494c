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
	"github.com/placehub/placehub/internal/config"
	discountdomain "github.com/placehub/placehub/internal/discount/domain"
	discountrepo "github.com/placehub/placehub/internal/discount/repository"
	discountservice "github.com/placehub/placehub/internal/discount/service"
	ledgerdomain "github.com/placehub/placehub/internal/ledger/domain"
	ledgerrepo "github.com/placehub/placehub/internal/ledger/repository"
	ledgerservice "github.com/placehub/placehub/internal/ledger/service"
	"github.com/placehub/placehub/internal/notify"
	rentaldomain "github.com/placehub/placehub/internal/rental/domain"
	rentalrepo "github.com/placehub/placehub/internal/rental/repository"
	sitedomain "github.com/placehub/placehub/internal/site/domain"
	siterepo "github.com/placehub/placehub/internal/site/repository"
	siteservice "github.com/placehub/placehub/internal/site/service"
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
	svc      rentaldomain.Service
	db       *gorm.DB
	node     *snowflake.Node
	clk      *clock.FakeClock
	ledger   ledgerdomain.Service
	notifier *notifyRecorder
	owner    snowflake.ID
	tenant   snowflake.ID
	siteID   snowflake.ID
}

const slotPriceCents = 5_000

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
		&sitedomain.Site{},
		&rentaldomain.SiteSlotRental{},
		&rentaldomain.RentalEvent{},
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
	siteSvc := siteservice.New(siteservice.Params{
		DB:   db,
		Log:  log,
		Node: node,
		Repo: siterepo.Provide(),
	})

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	notifier := &notifyRecorder{}

	svc := New(Params{
		DB:       db,
		Log:      log,
		Node:     node,
		Clock:    clk,
		Pricing:  config.NewStaticPricingHolder(config.DefaultPricingConfig()),
		Repo:     rentalrepo.Provide(),
		Ledger:   ledgerSvc,
		Site:     siteSvc,
		Notifier: notifier,
	})

	ctx := context.Background()
	ownerAccount, err := ledgerSvc.CreateAccount(ctx)
	require.NoError(t, err)
	tenantAccount, err := ledgerSvc.CreateAccount(ctx)
	require.NoError(t, err)

	site, err := siteSvc.Create(ctx, sitedomain.CreateRequest{
		OwnerAccountID:    ownerAccount.ID,
		Domain:            "partner.example",
		LinkPriceCents:    10_000,
		ArticlePriceCents: 20_000,
		SlotPriceCents:    slotPriceCents,
		SlotsCount:        10,
	})
	require.NoError(t, err)

	return &fixture{
		svc:      svc,
		db:       db,
		node:     node,
		clk:      clk,
		ledger:   ledgerSvc,
		notifier: notifier,
		owner:    ownerAccount.ID,
		tenant:   tenantAccount.ID,
		siteID:   site.ID,
	}
}

func (f *fixture) fund(t *testing.T, accountID snowflake.ID, cents int64) {
	t.Helper()
	_, err := f.ledger.Credit(context.Background(), nil, ledgerdomain.EntryRequest{
		AccountID:   accountID,
		AmountCents: cents,
		Type:        ledgerdomain.TransactionTypeDeposit,
	})
	require.NoError(t, err)
}

func (f *fixture) balanceCents(t *testing.T, accountID snowflake.ID) int64 {
	t.Helper()
	balance, err := f.ledger.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	return balance.BalanceCents
}

func (f *fixture) pendingRental(t *testing.T, slots int) *rentaldomain.SiteSlotRental {
	t.Helper()
	rental, err := f.svc.Create(context.Background(), rentaldomain.CreateRequest{
		OwnerAccountID:    f.owner,
		TenantAccountID:   f.tenant,
		SiteID:            f.siteID,
		SlotsCount:        slots,
		PricePerSlotCents: slotPriceCents,
	})
	require.NoError(t, err)
	require.Equal(t, rentaldomain.StatusPendingApproval, rental.Status)
	return rental
}

func (f *fixture) actions(t *testing.T, actorID, rentalID snowflake.ID) []rentaldomain.Action {
	t.Helper()
	events, err := f.svc.History(context.Background(), actorID, rentalID)
	require.NoError(t, err)
	actions := make([]rentaldomain.Action, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	return actions
}

func TestApproveDebitsAndActivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.tenant, 50_000)
	rental := f.pendingRental(t, 3)

	approved, err := f.svc.Approve(ctx, f.tenant, rental.ID)
	require.NoError(t, err)

	require.Equal(t, rentaldomain.StatusActive, approved.Status)
	require.NotNil(t, approved.ExpiresAt)
	require.WithinDuration(t, f.clk.Now().Add(30*24*time.Hour), *approved.ExpiresAt, time.Second)
	require.Equal(t, int64(50_000-3*slotPriceCents), f.balanceCents(t, f.tenant))
	require.Equal(t,
		[]rentaldomain.Action{rentaldomain.ActionCreate, rentaldomain.ActionApprove},
		f.actions(t, f.tenant, rental.ID))
}

func TestApproveInsufficientBalanceStaysPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.tenant, 1_000)
	rental := f.pendingRental(t, 3)

	_, err := f.svc.Approve(ctx, f.tenant, rental.ID)
	require.ErrorIs(t, err, ledgerdomain.ErrInsufficientBalance)

	current, err := f.svc.Get(ctx, f.tenant, rental.ID)
	require.NoError(t, err)
	require.Equal(t, rentaldomain.StatusPendingApproval, current.Status)
	require.Equal(t, int64(1_000), f.balanceCents(t, f.tenant))
	require.Equal(t,
		[]rentaldomain.Action{rentaldomain.ActionCreate},
		f.actions(t, f.tenant, rental.ID))
}

func TestApproveIsTenantOnly(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.tenant, 50_000)
	rental := f.pendingRental(t, 2)

	_, err := f.svc.Approve(context.Background(), f.owner, rental.ID)
	require.ErrorIs(t, err, rentaldomain.ErrNotTenant)
}

func TestRejectedRentalCannotBeApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.tenant, 50_000)
	rental := f.pendingRental(t, 2)

	rejected, err := f.svc.Reject(ctx, f.tenant, rental.ID)
	require.NoError(t, err)
	require.Equal(t, rentaldomain.StatusRejected, rejected.Status)

	_, err = f.svc.Approve(ctx, f.tenant, rental.ID)
	require.ErrorIs(t, err, rentaldomain.ErrStateConflict)
	require.Equal(t, int64(50_000), f.balanceCents(t, f.tenant))
}

func TestCancelRefundsRunningPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.tenant, 50_000)
	rental := f.pendingRental(t, 3)

	_, err := f.svc.Approve(ctx, f.tenant, rental.ID)
	require.NoError(t, err)
	require.Equal(t, int64(35_000), f.balanceCents(t, f.tenant))

	cancelled, err := f.svc.Cancel(ctx, f.owner, rental.ID)
	require.NoError(t, err)

	require.Equal(t, rentaldomain.StatusCancelled, cancelled.Status)
	require.Equal(t, int64(50_000), f.balanceCents(t, f.tenant))
	require.Equal(t,
		[]rentaldomain.Action{rentaldomain.ActionCreate, rentaldomain.ActionApprove, rentaldomain.ActionCancel},
		f.actions(t, f.owner, rental.ID))
}

func TestCancelBlockedWhileSlotsInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.tenant, 50_000)
	rental := f.pendingRental(t, 3)

	_, err := f.svc.Approve(ctx, f.tenant, rental.ID)
	require.NoError(t, err)
	require.NoError(t, f.db.Exec(
		`UPDATE site_slot_rentals SET slots_used = 1 WHERE id = ?`, rental.ID,
	).Error)

	_, err = f.svc.Cancel(ctx, f.owner, rental.ID)
	require.ErrorIs(t, err, rentaldomain.ErrSlotsInUse)

	current, err := f.svc.Get(ctx, f.owner, rental.ID)
	require.NoError(t, err)
	require.Equal(t, rentaldomain.StatusActive, current.Status)
	require.Equal(t, int64(35_000), f.balanceCents(t, f.tenant))
}

func TestCancelIsOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.tenant, 50_000)
	rental := f.pendingRental(t, 2)

	_, err := f.svc.Approve(ctx, f.tenant, rental.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.tenant, rental.ID)
	require.ErrorIs(t, err, rentaldomain.ErrNotOwner)
}

func TestRenewExtendsFromCurrentExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.tenant, 50_000)
	rental := f.pendingRental(t, 3)

	approved, err := f.svc.Approve(ctx, f.tenant, rental.ID)
	require.NoError(t, err)
	firstExpiry := *approved.ExpiresAt

	renewed, err := f.svc.Renew(ctx, f.tenant, rental.ID)
	require.NoError(t, err)

	require.WithinDuration(t, firstExpiry.Add(30*24*time.Hour), *renewed.ExpiresAt, time.Second)
	require.Equal(t, int64(50_000-2*3*slotPriceCents), f.balanceCents(t, f.tenant))
}

func TestExpireDueSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.tenant, 50_000)
	rental := f.pendingRental(t, 2)

	_, err := f.svc.Approve(ctx, f.tenant, rental.ID)
	require.NoError(t, err)

	f.clk.Advance(31 * 24 * time.Hour)
	expired, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	current, err := f.svc.Get(ctx, f.tenant, rental.ID)
	require.NoError(t, err)
	require.Equal(t, rentaldomain.StatusExpired, current.Status)
	require.Contains(t, f.notifier.events, notify.EventRentalExpired)
	require.Contains(t, f.actions(t, f.tenant, rental.ID), rentaldomain.ActionExpire)
}

func TestSelfRentalRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), rentaldomain.CreateRequest{
		OwnerAccountID:    f.owner,
		TenantAccountID:   f.owner,
		SiteID:            f.siteID,
		SlotsCount:        1,
		PricePerSlotCents: slotPriceCents,
	})
	require.ErrorIs(t, err, rentaldomain.ErrSelfRental)
}
