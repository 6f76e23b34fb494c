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
	contentdomain "github.com/placehub/placehub/internal/content/domain"
	contentrepo "github.com/placehub/placehub/internal/content/repository"
	contentservice "github.com/placehub/placehub/internal/content/service"
	discountdomain "github.com/placehub/placehub/internal/discount/domain"
	discountrepo "github.com/placehub/placehub/internal/discount/repository"
	discountservice "github.com/placehub/placehub/internal/discount/service"
	ledgerdomain "github.com/placehub/placehub/internal/ledger/domain"
	ledgerrepo "github.com/placehub/placehub/internal/ledger/repository"
	ledgerservice "github.com/placehub/placehub/internal/ledger/service"
	"github.com/placehub/placehub/internal/notify"
	placementdomain "github.com/placehub/placehub/internal/placement/domain"
	placementrepo "github.com/placehub/placehub/internal/placement/repository"
	publishdomain "github.com/placehub/placehub/internal/publish/domain"
	sitedomain "github.com/placehub/placehub/internal/site/domain"
	siterepo "github.com/placehub/placehub/internal/site/repository"
	siteservice "github.com/placehub/placehub/internal/site/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type gatewayStub struct {
	mu         sync.Mutex
	publishErr error
	published  []publishdomain.PublishRequest
	removed    []string
}

func (g *gatewayStub) Publish(_ context.Context, req publishdomain.PublishRequest) (*publishdomain.PublishResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.publishErr != nil {
		return nil, g.publishErr
	}
	g.published = append(g.published, req)
	return &publishdomain.PublishResult{
		ExternalPostID: fmt.Sprintf("post-%d", len(g.published)),
		URL:            "https://" + req.SiteDomain + "/p/1",
	}, nil
}

func (g *gatewayStub) Remove(_ context.Context, _ string, externalPostID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removed = append(g.removed, externalPostID)
	return nil
}

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
	svc      placementdomain.Service
	db       *gorm.DB
	node     *snowflake.Node
	clk      *clock.FakeClock
	ledger   ledgerdomain.Service
	content  contentdomain.Service
	gateway  *gatewayStub
	notifier *notifyRecorder
	siteID   snowflake.ID
}

const (
	testLinkPriceCents    = 10_000
	testArticlePriceCents = 20_000
)

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
		&contentdomain.ContentItem{},
		&sitedomain.Site{},
		&placementdomain.Placement{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	tiers := []discountdomain.DiscountTier{
		{ID: node.Generate(), Name: "base", MinSpentCents: 0, DiscountPercent: 0},
		{ID: node.Generate(), Name: "silver", MinSpentCents: 50_000, DiscountPercent: 10},
		{ID: node.Generate(), Name: "gold", MinSpentCents: 250_000, DiscountPercent: 15},
	}
	for i := range tiers {
		tiers[i].CreatedAt = time.Now().UTC()
		require.NoError(t, db.Create(&tiers[i]).Error)
	}

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
	contentSvc := contentservice.New(contentservice.Params{
		DB:   db,
		Log:  log,
		Node: node,
		Repo: contentrepo.Provide(),
	})
	siteSvc := siteservice.New(siteservice.Params{
		DB:   db,
		Log:  log,
		Node: node,
		Repo: siterepo.Provide(),
	})

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	gateway := &gatewayStub{}
	notifier := &notifyRecorder{}

	svc := New(Params{
		DB:       db,
		Log:      log,
		Node:     node,
		Clock:    clk,
		Pricing:  config.NewStaticPricingHolder(config.DefaultPricingConfig()),
		Repo:     placementrepo.Provide(),
		Ledger:   ledgerSvc,
		Content:  contentSvc,
		Site:     siteSvc,
		Gateway:  gateway,
		Notifier: notifier,
	})

	owner := node.Generate()
	site, err := siteSvc.Create(context.Background(), sitedomain.CreateRequest{
		OwnerAccountID:    owner,
		Domain:            "partner.example",
		LinkPriceCents:    testLinkPriceCents,
		ArticlePriceCents: testArticlePriceCents,
	})
	require.NoError(t, err)

	return &fixture{
		svc:      svc,
		db:       db,
		node:     node,
		clk:      clk,
		ledger:   ledgerSvc,
		content:  contentSvc,
		gateway:  gateway,
		notifier: notifier,
		siteID:   site.ID,
	}
}

func (f *fixture) fundedAccount(t *testing.T, cents int64) snowflake.ID {
	t.Helper()
	account, err := f.ledger.CreateAccount(context.Background())
	require.NoError(t, err)
	if cents > 0 {
		_, err = f.ledger.Credit(context.Background(), nil, ledgerdomain.EntryRequest{
			AccountID:   account.ID,
			AmountCents: cents,
			Type:        ledgerdomain.TransactionTypeDeposit,
		})
		require.NoError(t, err)
	}
	return account.ID
}

func (f *fixture) linkItem(t *testing.T, owner snowflake.ID, limit int) snowflake.ID {
	t.Helper()
	item, err := f.content.Create(context.Background(), contentdomain.CreateRequest{
		OwnerAccountID: owner,
		Variant:        contentdomain.VariantLink,
		Title:          "anchor",
		TargetURL:      "https://example.com",
		UsageLimit:     &limit,
	})
	require.NoError(t, err)
	return item.ID
}

func (f *fixture) articleItem(t *testing.T, owner snowflake.ID) snowflake.ID {
	t.Helper()
	item, err := f.content.Create(context.Background(), contentdomain.CreateRequest{
		OwnerAccountID: owner,
		Variant:        contentdomain.VariantArticle,
		Title:          "guest post",
		Body:           "body",
	})
	require.NoError(t, err)
	return item.ID
}

func (f *fixture) balance(t *testing.T, accountID snowflake.ID) *ledgerdomain.BalanceResponse {
	t.Helper()
	balance, err := f.ledger.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	return balance
}

func (f *fixture) usage(t *testing.T, contentID snowflake.ID) int {
	t.Helper()
	var count int
	require.NoError(t, f.db.Raw(
		`SELECT usage_count FROM content_items WHERE id = ?`, contentID,
	).Scan(&count).Error)
	return count
}

func TestPurchaseAppliesCurrentTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, 200_000)

	// Prior spend puts the account in the 10% tier before the purchase.
	_, err := f.ledger.Debit(ctx, nil, ledgerdomain.EntryRequest{
		AccountID:   accountID,
		AmountCents: 60_000,
		Type:        ledgerdomain.TransactionTypePurchase,
	})
	require.NoError(t, err)

	first := f.linkItem(t, accountID, 1)
	second := f.linkItem(t, accountID, 1)

	placement, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:  accountID,
		SiteID:     f.siteID,
		Variant:    string(contentdomain.VariantLink),
		ContentIDs: []snowflake.ID{first, second},
	})
	require.NoError(t, err)

	require.Equal(t, placementdomain.StatusPlaced, placement.Status)
	require.Equal(t, int64(2*testLinkPriceCents), placement.GrossPriceCents)
	require.Equal(t, int16(10), placement.DiscountPercent)
	require.Equal(t, int64(18_000), placement.FinalPriceCents)
	require.NotEmpty(t, placement.ExternalPostID)
	require.NotNil(t, placement.ExpiresAt)
	require.WithinDuration(t, f.clk.Now().Add(30*24*time.Hour), *placement.ExpiresAt, time.Second)

	balance := f.balance(t, accountID)
	require.Equal(t, int64(200_000-60_000-18_000), balance.BalanceCents)
	require.Equal(t, int64(78_000), balance.TotalSpentCents)
	require.Equal(t, 1, f.usage(t, first))
	require.Equal(t, 1, f.usage(t, second))
	require.Len(t, f.gateway.published, 1)
}

func TestGatewayFailureRollsBackSaga(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, 100_000)
	itemID := f.linkItem(t, accountID, 1)

	f.gateway.publishErr = publishdomain.ErrGatewayUnavailable

	_, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:  accountID,
		SiteID:     f.siteID,
		Variant:    string(contentdomain.VariantLink),
		ContentIDs: []snowflake.ID{itemID},
	})
	require.ErrorIs(t, err, publishdomain.ErrGatewayUnavailable)

	balance := f.balance(t, accountID)
	require.Equal(t, int64(100_000), balance.BalanceCents)
	require.Equal(t, int64(0), balance.TotalSpentCents)
	require.Equal(t, int16(0), balance.DiscountPercent)
	require.Equal(t, 0, f.usage(t, itemID))

	var status string
	require.NoError(t, f.db.Raw(
		`SELECT status FROM placements WHERE account_id = ?`, accountID,
	).Scan(&status).Error)
	require.Equal(t, string(placementdomain.StatusFailed), status)

	// The reversal keeps the transaction log consistent with the cache.
	require.NoError(t, f.ledger.RecalculateSpend(ctx, accountID))
	balance = f.balance(t, accountID)
	require.Equal(t, int64(0), balance.TotalSpentCents)
}

func TestPurchaseExhaustedContentAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, 100_000)
	fresh := f.linkItem(t, accountID, 2)
	spent := f.linkItem(t, accountID, 1)

	_, err := f.content.Reserve(ctx, nil, spent, accountID)
	require.NoError(t, err)

	_, err = f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:  accountID,
		SiteID:     f.siteID,
		Variant:    string(contentdomain.VariantLink),
		ContentIDs: []snowflake.ID{fresh, spent},
	})
	require.ErrorIs(t, err, contentdomain.ErrExhausted)

	require.Equal(t, 0, f.usage(t, fresh))
	require.Equal(t, 1, f.usage(t, spent))
	require.Equal(t, int64(100_000), f.balance(t, accountID).BalanceCents)

	var count int64
	require.NoError(t, f.db.Raw(
		`SELECT COUNT(1) FROM placements WHERE account_id = ?`, accountID,
	).Scan(&count).Error)
	require.Equal(t, int64(0), count)
}

func TestPurchaseUnknownContentLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, 50_000)

	_, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:  accountID,
		SiteID:     f.siteID,
		Variant:    string(contentdomain.VariantLink),
		ContentIDs: []snowflake.ID{f.node.Generate()},
	})
	require.ErrorIs(t, err, contentdomain.ErrNotFound)

	require.Equal(t, int64(50_000), f.balance(t, accountID).BalanceCents)

	var count int64
	require.NoError(t, f.db.Raw(
		`SELECT COUNT(1) FROM transactions WHERE account_id = ?`, accountID,
	).Scan(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestDeleteRefundsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, 50_000)
	itemID := f.linkItem(t, accountID, 1)

	placement, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:  accountID,
		SiteID:     f.siteID,
		Variant:    string(contentdomain.VariantLink),
		ContentIDs: []snowflake.ID{itemID},
	})
	require.NoError(t, err)
	require.Equal(t, int64(40_000), f.balance(t, accountID).BalanceCents)

	require.NoError(t, f.svc.Delete(ctx, accountID, placement.ID))

	balance := f.balance(t, accountID)
	require.Equal(t, int64(50_000), balance.BalanceCents)
	// A delete refund does not rewind lifetime spend.
	require.Equal(t, int64(testLinkPriceCents), balance.TotalSpentCents)
	require.Equal(t, 0, f.usage(t, itemID))
	require.Equal(t, []string{placement.ExternalPostID}, f.gateway.removed)

	err = f.svc.Delete(ctx, accountID, placement.ID)
	require.ErrorIs(t, err, placementdomain.ErrNotFound)
	require.Equal(t, int64(50_000), f.balance(t, accountID).BalanceCents)
}

func TestDeleteRejectsForeignPlacement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.fundedAccount(t, 50_000)
	stranger := f.fundedAccount(t, 0)
	itemID := f.linkItem(t, owner, 1)

	placement, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:  owner,
		SiteID:     f.siteID,
		Variant:    string(contentdomain.VariantLink),
		ContentIDs: []snowflake.ID{itemID},
	})
	require.NoError(t, err)

	err = f.svc.Delete(ctx, stranger, placement.ID)
	require.ErrorIs(t, err, placementdomain.ErrNotOwned)
}

func TestRenewChargesCurrentTierAndExtends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, 200_000)
	itemID := f.linkItem(t, accountID, 2)

	placement, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:  accountID,
		SiteID:     f.siteID,
		Variant:    string(contentdomain.VariantLink),
		ContentIDs: []snowflake.ID{itemID},
	})
	require.NoError(t, err)
	require.Equal(t, int16(0), placement.DiscountPercent)
	firstExpiry := *placement.ExpiresAt

	// Spend between purchase and renewal moves the account into the 10% tier;
	// the renewal must price at the tier of record now, not at purchase time.
	_, err = f.ledger.Debit(ctx, nil, ledgerdomain.EntryRequest{
		AccountID:   accountID,
		AmountCents: 50_000,
		Type:        ledgerdomain.TransactionTypePurchase,
	})
	require.NoError(t, err)

	before := f.balance(t, accountID).BalanceCents
	renewed, err := f.svc.Renew(ctx, accountID, placement.ID)
	require.NoError(t, err)

	require.Equal(t, before-9_000, f.balance(t, accountID).BalanceCents)
	require.Equal(t, 1, renewed.RenewalCount)
	require.WithinDuration(t, firstExpiry.Add(30*24*time.Hour), *renewed.ExpiresAt, time.Second)
}

func TestArticlePlacementIsPermanent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, 100_000)
	itemID := f.articleItem(t, accountID)

	placement, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:   accountID,
		SiteID:      f.siteID,
		Variant:     string(contentdomain.VariantArticle),
		ContentIDs:  []snowflake.ID{itemID},
		AutoRenewal: true,
	})
	require.NoError(t, err)

	require.Nil(t, placement.ExpiresAt)
	require.False(t, placement.AutoRenewal)
	require.Equal(t, int64(testArticlePriceCents), placement.FinalPriceCents)

	_, err = f.svc.Renew(ctx, accountID, placement.ID)
	require.ErrorIs(t, err, placementdomain.ErrNotRenewable)

	err = f.svc.SetAutoRenewal(ctx, accountID, placement.ID, true)
	require.ErrorIs(t, err, placementdomain.ErrNotRenewable)
}

func TestRunAutoRenewalsWithinLookahead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, 100_000)
	itemID := f.linkItem(t, accountID, 1)

	placement, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:   accountID,
		SiteID:      f.siteID,
		Variant:     string(contentdomain.VariantLink),
		ContentIDs:  []snowflake.ID{itemID},
		AutoRenewal: true,
	})
	require.NoError(t, err)

	// Expiry is still outside the three day lookahead window.
	f.clk.Advance(26 * 24 * time.Hour)
	renewed, err := f.svc.RunAutoRenewals(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, renewed)

	f.clk.Advance(2 * 24 * time.Hour)
	renewed, err = f.svc.RunAutoRenewals(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, renewed)

	refreshed, err := f.svc.Get(ctx, accountID, placement.ID)
	require.NoError(t, err)
	require.Equal(t, 1, refreshed.RenewalCount)
	require.WithinDuration(t, placement.ExpiresAt.Add(30*24*time.Hour), *refreshed.ExpiresAt, time.Second)
	require.Equal(t, int64(100_000-2*testLinkPriceCents), f.balance(t, accountID).BalanceCents)
}

func TestRunAutoRenewalsDisablesOnInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, testLinkPriceCents)
	itemID := f.linkItem(t, accountID, 1)

	placement, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:   accountID,
		SiteID:      f.siteID,
		Variant:     string(contentdomain.VariantLink),
		ContentIDs:  []snowflake.ID{itemID},
		AutoRenewal: true,
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), f.balance(t, accountID).BalanceCents)

	f.clk.Advance(28 * 24 * time.Hour)
	renewed, err := f.svc.RunAutoRenewals(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, renewed)

	refreshed, err := f.svc.Get(ctx, accountID, placement.ID)
	require.NoError(t, err)
	require.False(t, refreshed.AutoRenewal)
	require.Equal(t, placementdomain.StatusPlaced, refreshed.Status)
	require.Contains(t, f.notifier.events, notify.EventAutoRenewalDisabled)
}

func TestSweepSkipsFreshlyRenewedPlacement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, 100_000)
	itemID := f.linkItem(t, accountID, 1)

	placement, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:   accountID,
		SiteID:      f.siteID,
		Variant:     string(contentdomain.VariantLink),
		ContentIDs:  []snowflake.ID{itemID},
		AutoRenewal: true,
	})
	require.NoError(t, err)

	f.clk.Advance(28 * 24 * time.Hour)
	cutoff := f.clk.Now().UTC().Add(3 * 24 * time.Hour)

	// A manual renewal lands between the sweep's due list and its charge.
	renewed, err := f.svc.Renew(ctx, accountID, placement.ID)
	require.NoError(t, err)
	require.Equal(t, 1, renewed.RenewalCount)
	afterManual := f.balance(t, accountID).BalanceCents

	// Replaying the sweep against its pre-renewal snapshot must re-read the
	// row under lock, see the extended expiry and charge nothing.
	_, err = f.svc.(*placementService).renew(ctx, placement, ledgerdomain.TransactionTypeAutoRenewal, &cutoff)
	require.ErrorIs(t, err, errAlreadyRenewed)

	require.Equal(t, afterManual, f.balance(t, accountID).BalanceCents)
	refreshed, err := f.svc.Get(ctx, accountID, placement.ID)
	require.NoError(t, err)
	require.Equal(t, 1, refreshed.RenewalCount)
	require.WithinDuration(t, *renewed.ExpiresAt, *refreshed.ExpiresAt, time.Second)
}

func TestScheduledPurchaseHoldsUntilSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, 50_000)
	itemID := f.linkItem(t, accountID, 1)

	scheduledAt := f.clk.Now().UTC().Add(48 * time.Hour)
	placement, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:   accountID,
		SiteID:      f.siteID,
		Variant:     string(contentdomain.VariantLink),
		ContentIDs:  []snowflake.ID{itemID},
		ScheduledAt: &scheduledAt,
	})
	require.NoError(t, err)

	// Money and reservations move at purchase time; the remote post waits.
	require.Equal(t, placementdomain.StatusScheduled, placement.Status)
	require.Empty(t, placement.ExternalPostID)
	require.Nil(t, placement.ExpiresAt)
	require.Equal(t, int64(40_000), f.balance(t, accountID).BalanceCents)
	require.Equal(t, 1, f.usage(t, itemID))
	require.Len(t, f.gateway.published, 0)

	published, err := f.svc.PublishScheduled(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, published)

	f.clk.Advance(48 * time.Hour)
	published, err = f.svc.PublishScheduled(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, published)
	require.Len(t, f.gateway.published, 1)

	refreshed, err := f.svc.Get(ctx, accountID, placement.ID)
	require.NoError(t, err)
	require.Equal(t, placementdomain.StatusPlaced, refreshed.Status)
	require.NotEmpty(t, refreshed.ExternalPostID)
	require.NotNil(t, refreshed.ExpiresAt)
	// The paid period starts at publish time, not at purchase time.
	require.WithinDuration(t, f.clk.Now().Add(30*24*time.Hour), *refreshed.ExpiresAt, time.Second)
	require.Equal(t, int64(40_000), f.balance(t, accountID).BalanceCents)
}

func TestScheduledPublishFailureRetriesNextSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, 50_000)
	itemID := f.linkItem(t, accountID, 1)

	scheduledAt := f.clk.Now().UTC().Add(24 * time.Hour)
	placement, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:   accountID,
		SiteID:      f.siteID,
		Variant:     string(contentdomain.VariantLink),
		ContentIDs:  []snowflake.ID{itemID},
		ScheduledAt: &scheduledAt,
	})
	require.NoError(t, err)

	f.clk.Advance(24 * time.Hour)
	f.gateway.publishErr = publishdomain.ErrGatewayUnavailable
	published, err := f.svc.PublishScheduled(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, published)

	refreshed, err := f.svc.Get(ctx, accountID, placement.ID)
	require.NoError(t, err)
	require.Equal(t, placementdomain.StatusScheduled, refreshed.Status)

	f.gateway.publishErr = nil
	published, err = f.svc.PublishScheduled(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, published)

	refreshed, err = f.svc.Get(ctx, accountID, placement.ID)
	require.NoError(t, err)
	require.Equal(t, placementdomain.StatusPlaced, refreshed.Status)
}

func TestPurchaseRejectsPastSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, 50_000)
	itemID := f.linkItem(t, accountID, 1)

	past := f.clk.Now().UTC().Add(-time.Hour)
	_, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:   accountID,
		SiteID:      f.siteID,
		Variant:     string(contentdomain.VariantLink),
		ContentIDs:  []snowflake.ID{itemID},
		ScheduledAt: &past,
	})
	require.ErrorIs(t, err, placementdomain.ErrInvalidSchedule)

	require.Equal(t, int64(50_000), f.balance(t, accountID).BalanceCents)
	require.Equal(t, 0, f.usage(t, itemID))
}

func TestDeleteScheduledRefundsBeforePublish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, 50_000)
	itemID := f.linkItem(t, accountID, 1)

	scheduledAt := f.clk.Now().UTC().Add(24 * time.Hour)
	placement, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:   accountID,
		SiteID:      f.siteID,
		Variant:     string(contentdomain.VariantLink),
		ContentIDs:  []snowflake.ID{itemID},
		ScheduledAt: &scheduledAt,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, accountID, placement.ID))
	require.Equal(t, int64(50_000), f.balance(t, accountID).BalanceCents)
	require.Equal(t, 0, f.usage(t, itemID))
	// Nothing was ever published, so nothing is removed remotely.
	require.Empty(t, f.gateway.removed)

	f.clk.Advance(24 * time.Hour)
	published, err := f.svc.PublishScheduled(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, published)
}

func TestExpireDueReleasesContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.fundedAccount(t, 50_000)
	itemID := f.linkItem(t, accountID, 1)

	placement, err := f.svc.Purchase(ctx, placementdomain.PurchaseRequest{
		AccountID:  accountID,
		SiteID:     f.siteID,
		Variant:    string(contentdomain.VariantLink),
		ContentIDs: []snowflake.ID{itemID},
	})
	require.NoError(t, err)

	f.clk.Advance(31 * 24 * time.Hour)
	expired, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	refreshed, err := f.svc.Get(ctx, accountID, placement.ID)
	require.NoError(t, err)
	require.Equal(t, placementdomain.StatusExpired, refreshed.Status)
	require.Equal(t, 0, f.usage(t, itemID))
	require.Contains(t, f.gateway.removed, placement.ExternalPostID)
	require.Contains(t, f.notifier.events, notify.EventPlacementExpired)

	// An expired placement already returned its reservation; deleting it
	// refunds without a second release.
	require.NoError(t, f.svc.Delete(ctx, accountID, placement.ID))
	require.Equal(t, 0, f.usage(t, itemID))
	require.Equal(t, int64(50_000), f.balance(t, accountID).BalanceCents)
}
