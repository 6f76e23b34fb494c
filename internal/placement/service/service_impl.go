package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/placehub/placehub/internal/clock"
	"github.com/placehub/placehub/internal/config"
	contentdomain "github.com/placehub/placehub/internal/content/domain"
	ledgerdomain "github.com/placehub/placehub/internal/ledger/domain"
	"github.com/placehub/placehub/internal/notify"
	"github.com/placehub/placehub/internal/observability/metrics"
	placementdomain "github.com/placehub/placehub/internal/placement/domain"
	publishdomain "github.com/placehub/placehub/internal/publish/domain"
	sitedomain "github.com/placehub/placehub/internal/site/domain"
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
	Pricing  *config.PricingConfigHolder
	Repo     placementdomain.Repository
	Ledger   ledgerdomain.Service
	Content  contentdomain.Service
	Site     sitedomain.Service
	Gateway  publishdomain.Gateway
	Notifier notify.Notifier
	Metrics  *metrics.Metrics `optional:"true"`
}

type placementService struct {
	db       *gorm.DB
	log      *zap.Logger
	node     *snowflake.Node
	clock    clock.Clock
	pricing  *config.PricingConfigHolder
	repo     placementdomain.Repository
	ledger   ledgerdomain.Service
	content  contentdomain.Service
	site     sitedomain.Service
	gateway  publishdomain.Gateway
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

func New(p Params) placementdomain.Service {
	return &placementService{
		db:       p.DB,
		log:      p.Log.Named("placement.service"),
		node:     p.Node,
		clock:    p.Clock,
		pricing:  p.Pricing,
		repo:     p.Repo,
		ledger:   p.Ledger,
		content:  p.Content,
		site:     p.Site,
		gateway:  p.Gateway,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

// applyDiscount rounds the discounted price down to whole cents.
func applyDiscount(grossCents int64, percent int16) int64 {
	return grossCents - grossCents*int64(percent)/100
}

func (s *placementService) Purchase(ctx context.Context, req placementdomain.PurchaseRequest) (*placementdomain.Placement, error) {
	if req.Variant != string(contentdomain.VariantLink) && req.Variant != string(contentdomain.VariantArticle) {
		return nil, placementdomain.ErrInvalidVariant
	}
	if len(req.ContentIDs) == 0 {
		return nil, placementdomain.ErrNoContent
	}
	seen := make(map[snowflake.ID]struct{}, len(req.ContentIDs))
	for _, id := range req.ContentIDs {
		if _, dup := seen[id]; dup {
			return nil, placementdomain.ErrDuplicateContent
		}
		seen[id] = struct{}{}
	}

	now := s.clock.Now().UTC()
	if req.ScheduledAt != nil && !req.ScheduledAt.After(now) {
		return nil, placementdomain.ErrInvalidSchedule
	}

	site, err := s.site.Get(ctx, req.SiteID)
	if err != nil {
		return nil, err
	}
	basePrice, err := s.site.PriceFor(ctx, req.SiteID, req.Variant)
	if err != nil {
		return nil, err
	}

	account, err := s.ledger.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	grossCents := basePrice * int64(len(req.ContentIDs))
	finalCents := applyDiscount(grossCents, account.DiscountPercent)

	contentIDs, err := placementdomain.EncodeContentIDs(req.ContentIDs)
	if err != nil {
		return nil, err
	}
	status := placementdomain.StatusPending
	if req.ScheduledAt != nil {
		status = placementdomain.StatusScheduled
	}
	placement := &placementdomain.Placement{
		ID:              s.node.Generate(),
		AccountID:       req.AccountID,
		SiteID:          req.SiteID,
		Variant:         req.Variant,
		ContentIDs:      contentIDs,
		Status:          status,
		GrossPriceCents: grossCents,
		DiscountPercent: account.DiscountPercent,
		FinalPriceCents: finalCents,
		AutoRenewal:     req.AutoRenewal && req.Variant == string(contentdomain.VariantLink),
		ScheduledAt:     req.ScheduledAt,
		PurchasedAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// The lead item supplies the remote post payload.
	lead, err := s.content.Get(ctx, req.ContentIDs[0])
	if err != nil {
		return nil, err
	}

	// Local atomic leg: reservations, debit and the pending row commit or
	// roll back together. The external publish call never runs inside this
	// transaction.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, contentID := range req.ContentIDs {
			reservation, err := s.content.Reserve(ctx, tx, contentID, req.AccountID)
			if err != nil {
				return err
			}
			if string(reservation.Variant) != req.Variant {
				return placementdomain.ErrVariantMismatch
			}
		}

		relatedID := placement.ID
		if _, err := s.ledger.Debit(ctx, tx, ledgerdomain.EntryRequest{
			AccountID:   req.AccountID,
			AmountCents: finalCents,
			Type:        ledgerdomain.TransactionTypePurchase,
			RelatedID:   &relatedID,
			Description: "placement purchase",
		}); err != nil {
			return err
		}

		return s.repo.Insert(ctx, tx, placement)
	})
	if err != nil {
		s.recordPurchase("rejected")
		return nil, err
	}

	// Scheduled purchases stop at the paid local leg; the publish sweep
	// takes over once the date arrives.
	if placement.Status == placementdomain.StatusScheduled {
		s.log.Info("placement scheduled",
			zap.String("placement_id", placement.ID.String()),
			zap.String("account_id", req.AccountID.String()),
			zap.Time("scheduled_at", *req.ScheduledAt),
			zap.Int64("final_price_cents", finalCents))
		s.recordPurchase("scheduled")
		return placement, nil
	}

	result, err := s.gateway.Publish(ctx, publishdomain.PublishRequest{
		SiteDomain: site.Domain,
		Variant:    req.Variant,
		Title:      lead.Title,
		Body:       lead.Body,
		TargetURL:  lead.TargetURL,
	})
	if err != nil {
		if rbErr := s.compensate(ctx, placement); rbErr != nil {
			s.log.Error("purchase rollback failed",
				zap.String("placement_id", placement.ID.String()),
				zap.Error(rbErr))
		}
		s.recordPurchase("rolled_back")
		return nil, err
	}

	var expiresAt *time.Time
	if req.Variant == string(contentdomain.VariantLink) {
		t := now.Add(s.pricing.Get().PlacementPeriod())
		expiresAt = &t
	}
	if err := s.repo.MarkPlaced(ctx, s.db, placement.ID, result.ExternalPostID, expiresAt, s.clock.Now().UTC()); err != nil {
		return nil, err
	}

	placement.Status = placementdomain.StatusPlaced
	placement.ExternalPostID = result.ExternalPostID
	placement.ExpiresAt = expiresAt

	s.log.Info("placement purchased",
		zap.String("placement_id", placement.ID.String()),
		zap.String("account_id", req.AccountID.String()),
		zap.String("site_id", req.SiteID.String()),
		zap.Int64("final_price_cents", finalCents),
		zap.Int16("discount_percent", account.DiscountPercent))
	s.recordPurchase("ok")

	return placement, nil
}

// compensate reverses the local leg of the saga after a gateway failure:
// refund the final price, return every reservation, keep the row as failed.
func (s *placementService) compensate(ctx context.Context, p *placementdomain.Placement) error {
	contentIDs, err := p.ContentIDList()
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		relatedID := p.ID
		if _, err := s.ledger.Credit(ctx, tx, ledgerdomain.EntryRequest{
			AccountID:   p.AccountID,
			AmountCents: p.FinalPriceCents,
			Type:        ledgerdomain.TransactionTypeReversal,
			RelatedID:   &relatedID,
			Description: "purchase rollback",
		}); err != nil {
			return err
		}
		for _, contentID := range contentIDs {
			if err := s.content.Release(ctx, tx, &contentdomain.Reservation{ContentID: contentID}); err != nil {
				return err
			}
		}
		return s.repo.MarkFailed(ctx, tx, p.ID, s.clock.Now().UTC())
	})
}

func (s *placementService) Delete(ctx context.Context, actorID, placementID snowflake.ID) error {
	var placement *placementdomain.Placement

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.repo.FindByID(ctx, tx, placementID, true)
		if err != nil {
			return err
		}
		if p == nil {
			return placementdomain.ErrNotFound
		}
		if p.AccountID != actorID {
			return placementdomain.ErrNotOwned
		}
		placement = p

		// Failed placements were refunded and released during saga rollback;
		// expired placements already returned their reservations.
		if p.Status != placementdomain.StatusFailed {
			relatedID := p.ID
			if _, err := s.ledger.Credit(ctx, tx, ledgerdomain.EntryRequest{
				AccountID:   p.AccountID,
				AmountCents: p.FinalPriceCents,
				Type:        ledgerdomain.TransactionTypeRefund,
				RelatedID:   &relatedID,
				Description: "placement deleted",
			}); err != nil {
				return err
			}
			if p.Status != placementdomain.StatusExpired {
				contentIDs, err := p.ContentIDList()
				if err != nil {
					return err
				}
				for _, contentID := range contentIDs {
					if err := s.content.Release(ctx, tx, &contentdomain.Reservation{ContentID: contentID}); err != nil {
						return err
					}
				}
			}
		}

		return s.repo.Delete(ctx, tx, p.ID)
	})
	if err != nil {
		return err
	}

	s.removeRemote(ctx, placement)

	s.log.Info("placement deleted",
		zap.String("placement_id", placementID.String()),
		zap.Int64("refunded_cents", placement.FinalPriceCents))
	return nil
}

// removeRemote is best effort; the remote post outliving the refund is
// acceptable, the reverse is not.
func (s *placementService) removeRemote(ctx context.Context, p *placementdomain.Placement) {
	if p == nil || p.ExternalPostID == "" {
		return
	}
	site, err := s.site.Get(ctx, p.SiteID)
	if err != nil {
		s.log.Warn("remote removal skipped",
			zap.String("placement_id", p.ID.String()),
			zap.Error(err))
		return
	}
	if err := s.gateway.Remove(ctx, site.Domain, p.ExternalPostID); err != nil {
		s.log.Warn("remote removal failed",
			zap.String("placement_id", p.ID.String()),
			zap.Error(err))
	}
}

func (s *placementService) Renew(ctx context.Context, actorID, placementID snowflake.ID) (*placementdomain.Placement, error) {
	p, err := s.repo.FindByID(ctx, s.db, placementID, false)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, placementdomain.ErrNotFound
	}
	if p.AccountID != actorID {
		return nil, placementdomain.ErrNotOwned
	}

	renewed, err := s.renew(ctx, p, ledgerdomain.TransactionTypeRenewal, nil)
	s.recordRenewal("manual", err)
	return renewed, err
}

// errAlreadyRenewed marks a sweep renewal whose row was extended past the
// lookahead window by a concurrent manual renewal.
var errAlreadyRenewed = errors.New("placement already renewed")

// renew re-prices at the account's current discount tier, debits and extends
// expiry from the later of now and the previous expiry. The row is re-read
// under the row lock inside the transaction so a sweep and a manual renewal
// can never both charge for the same extension; a non-nil dueBefore makes the
// renewal conditional on the locked expiry still falling inside that window.
func (s *placementService) renew(ctx context.Context, p *placementdomain.Placement, kind ledgerdomain.TransactionType, dueBefore *time.Time) (*placementdomain.Placement, error) {
	if p.Variant != string(contentdomain.VariantLink) || p.ExpiresAt == nil {
		return nil, placementdomain.ErrNotRenewable
	}
	if p.Status != placementdomain.StatusPlaced {
		return nil, placementdomain.ErrNotPlaced
	}

	basePrice, err := s.site.PriceFor(ctx, p.SiteID, p.Variant)
	if err != nil {
		return nil, err
	}
	account, err := s.ledger.GetAccount(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}

	var renewed *placementdomain.Placement
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindByID(ctx, tx, p.ID, true)
		if err != nil {
			return err
		}
		if locked == nil {
			return placementdomain.ErrNotFound
		}
		if locked.Variant != string(contentdomain.VariantLink) || locked.ExpiresAt == nil {
			return placementdomain.ErrNotRenewable
		}
		if locked.Status != placementdomain.StatusPlaced {
			return placementdomain.ErrNotPlaced
		}
		if dueBefore != nil && locked.ExpiresAt.After(*dueBefore) {
			return errAlreadyRenewed
		}

		contentIDs, err := locked.ContentIDList()
		if err != nil {
			return err
		}
		grossCents := basePrice * int64(len(contentIDs))
		finalCents := applyDiscount(grossCents, account.DiscountPercent)

		now := s.clock.Now().UTC()
		from := now
		if locked.ExpiresAt.After(now) {
			from = *locked.ExpiresAt
		}
		newExpiry := from.Add(s.pricing.Get().PlacementPeriod())

		relatedID := locked.ID
		if _, err := s.ledger.Debit(ctx, tx, ledgerdomain.EntryRequest{
			AccountID:   locked.AccountID,
			AmountCents: finalCents,
			Type:        kind,
			RelatedID:   &relatedID,
			Description: "placement renewal",
		}); err != nil {
			return err
		}
		if err := s.repo.UpdateRenewal(ctx, tx, locked.ID, newExpiry, now); err != nil {
			return err
		}

		locked.ExpiresAt = &newExpiry
		locked.RenewalCount++
		locked.LastRenewedAt = &now
		renewed = locked

		s.log.Info("placement renewed",
			zap.String("placement_id", locked.ID.String()),
			zap.String("kind", string(kind)),
			zap.Int64("price_cents", finalCents),
			zap.Time("expires_at", newExpiry))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renewed, nil
}

func (s *placementService) SetAutoRenewal(ctx context.Context, actorID, placementID snowflake.ID, enabled bool) error {
	p, err := s.repo.FindByID(ctx, s.db, placementID, false)
	if err != nil {
		return err
	}
	if p == nil {
		return placementdomain.ErrNotFound
	}
	if p.AccountID != actorID {
		return placementdomain.ErrNotOwned
	}
	if enabled && (p.Variant != string(contentdomain.VariantLink) || p.ExpiresAt == nil) {
		return placementdomain.ErrNotRenewable
	}
	return s.repo.SetAutoRenewal(ctx, s.db, placementID, enabled, s.clock.Now().UTC())
}

func (s *placementService) Get(ctx context.Context, actorID, placementID snowflake.ID) (*placementdomain.Placement, error) {
	p, err := s.repo.FindByID(ctx, s.db, placementID, false)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, placementdomain.ErrNotFound
	}
	if p.AccountID != actorID {
		return nil, placementdomain.ErrNotOwned
	}
	return p, nil
}

func (s *placementService) List(ctx context.Context, accountID snowflake.ID) ([]placementdomain.Placement, error) {
	return s.repo.ListByAccount(ctx, s.db, accountID)
}

func (s *placementService) RunAutoRenewals(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().UTC().Add(s.pricing.Get().RenewalLookahead())
	due, err := s.repo.ListDueAutoRenewals(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}

	renewed := 0
	for i := range due {
		p := due[i]
		_, err := s.renew(ctx, &p, ledgerdomain.TransactionTypeAutoRenewal, &cutoff)
		if errors.Is(err, errAlreadyRenewed) {
			continue
		}
		s.recordRenewal("auto", err)
		switch {
		case err == nil:
			renewed++
		case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
			if offErr := s.repo.SetAutoRenewal(ctx, s.db, p.ID, false, s.clock.Now().UTC()); offErr != nil {
				s.log.Error("auto renewal disable failed",
					zap.String("placement_id", p.ID.String()),
					zap.Error(offErr))
				continue
			}
			s.notifier.Notify(ctx, p.AccountID, notify.EventAutoRenewalDisabled, map[string]string{
				"placement_id": p.ID.String(),
				"reason":       "insufficient_balance",
			})
		default:
			s.log.Warn("auto renewal failed",
				zap.String("placement_id", p.ID.String()),
				zap.Error(err))
		}
	}
	return renewed, nil
}

func (s *placementService) ExpireDue(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	overdue, err := s.repo.ListOverdue(ctx, s.db, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range overdue {
		p := overdue[i]
		contentIDs, err := p.ContentIDList()
		if err != nil {
			s.log.Error("expiry skipped",
				zap.String("placement_id", p.ID.String()),
				zap.Error(err))
			continue
		}
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.repo.MarkExpired(ctx, tx, p.ID, now); err != nil {
				return err
			}
			for _, contentID := range contentIDs {
				if err := s.content.Release(ctx, tx, &contentdomain.Reservation{ContentID: contentID}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.log.Error("expiry failed",
				zap.String("placement_id", p.ID.String()),
				zap.Error(err))
			continue
		}
		expired++
		s.removeRemote(ctx, &p)
		s.notifier.Notify(ctx, p.AccountID, notify.EventPlacementExpired, map[string]string{
			"placement_id": p.ID.String(),
		})
	}
	return expired, nil
}

func (s *placementService) PublishScheduled(ctx context.Context) (int, error) {
	due, err := s.repo.ListDueScheduled(ctx, s.db, s.clock.Now().UTC())
	if err != nil {
		return 0, err
	}

	published := 0
	for i := range due {
		p := due[i]
		if err := s.publishScheduledOne(ctx, &p); err != nil {
			// Paid already; the row stays scheduled and the next sweep
			// retries.
			s.log.Warn("scheduled publish failed",
				zap.String("placement_id", p.ID.String()),
				zap.Error(err))
			continue
		}
		published++
	}
	return published, nil
}

func (s *placementService) publishScheduledOne(ctx context.Context, p *placementdomain.Placement) error {
	site, err := s.site.Get(ctx, p.SiteID)
	if err != nil {
		return err
	}
	contentIDs, err := p.ContentIDList()
	if err != nil {
		return err
	}
	if len(contentIDs) == 0 {
		return placementdomain.ErrNoContent
	}
	lead, err := s.content.Get(ctx, contentIDs[0])
	if err != nil {
		return err
	}

	result, err := s.gateway.Publish(ctx, publishdomain.PublishRequest{
		SiteDomain: site.Domain,
		Variant:    p.Variant,
		Title:      lead.Title,
		Body:       lead.Body,
		TargetURL:  lead.TargetURL,
	})
	if err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	var expiresAt *time.Time
	if p.Variant == string(contentdomain.VariantLink) {
		t := now.Add(s.pricing.Get().PlacementPeriod())
		expiresAt = &t
	}
	if err := s.repo.MarkPlaced(ctx, s.db, p.ID, result.ExternalPostID, expiresAt, now); err != nil {
		return err
	}

	s.log.Info("scheduled placement published",
		zap.String("placement_id", p.ID.String()),
		zap.String("external_post_id", result.ExternalPostID))
	return nil
}

func (s *placementService) recordPurchase(result string) {
	s.metrics.RecordPurchase(result)
}

func (s *placementService) recordRenewal(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.RecordRenewal(kind, result)
}
