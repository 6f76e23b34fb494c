package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/placehub/placehub/internal/clock"
	"github.com/placehub/placehub/internal/config"
	ledgerdomain "github.com/placehub/placehub/internal/ledger/domain"
	"github.com/placehub/placehub/internal/notify"
	"github.com/placehub/placehub/internal/observability/metrics"
	rentaldomain "github.com/placehub/placehub/internal/rental/domain"
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
	Repo     rentaldomain.Repository
	Ledger   ledgerdomain.Service
	Site     sitedomain.Service
	Notifier notify.Notifier
	Metrics  *metrics.Metrics `optional:"true"`
}

type rentalService struct {
	db       *gorm.DB
	log      *zap.Logger
	node     *snowflake.Node
	clock    clock.Clock
	pricing  *config.PricingConfigHolder
	repo     rentaldomain.Repository
	ledger   ledgerdomain.Service
	site     sitedomain.Service
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

func New(p Params) rentaldomain.Service {
	return &rentalService{
		db:       p.DB,
		log:      p.Log.Named("rental.service"),
		node:     p.Node,
		clock:    p.Clock,
		pricing:  p.Pricing,
		repo:     p.Repo,
		ledger:   p.Ledger,
		site:     p.Site,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

// appendEvent writes the audit entry for a transition inside the same
// transaction that performs it.
func (s *rentalService) appendEvent(ctx context.Context, tx *gorm.DB, rental *rentaldomain.SiteSlotRental, action rentaldomain.Action, from, to rentaldomain.Status, actorID snowflake.ID, note string) error {
	return s.repo.InsertEvent(ctx, tx, &rentaldomain.RentalEvent{
		ID:             s.node.Generate(),
		RentalID:       rental.ID,
		Action:         action,
		FromStatus:     from,
		ToStatus:       to,
		ActorAccountID: actorID,
		Note:           note,
		CreatedAt:      s.clock.Now().UTC(),
	})
}

func (s *rentalService) Create(ctx context.Context, req rentaldomain.CreateRequest) (*rentaldomain.SiteSlotRental, error) {
	if req.SlotsCount < 1 {
		return nil, rentaldomain.ErrInvalidSlots
	}
	if req.PricePerSlotCents <= 0 {
		return nil, rentaldomain.ErrInvalidPrice
	}
	if req.OwnerAccountID == req.TenantAccountID {
		return nil, rentaldomain.ErrSelfRental
	}

	site, err := s.site.Get(ctx, req.SiteID)
	if err != nil {
		return nil, err
	}
	if site.OwnerAccountID != req.OwnerAccountID {
		return nil, rentaldomain.ErrNotOwner
	}
	if _, err := s.ledger.GetAccount(ctx, req.TenantAccountID); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	rental := &rentaldomain.SiteSlotRental{
		ID:                s.node.Generate(),
		OwnerAccountID:    req.OwnerAccountID,
		TenantAccountID:   req.TenantAccountID,
		SiteID:            req.SiteID,
		SlotsCount:        req.SlotsCount,
		PricePerSlotCents: req.PricePerSlotCents,
		Status:            rentaldomain.StatusPendingApproval,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, rental); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, rental, rentaldomain.ActionCreate,
			rentaldomain.StatusPendingApproval, rentaldomain.StatusPendingApproval,
			req.OwnerAccountID, "")
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("rental created",
		zap.String("rental_id", rental.ID.String()),
		zap.String("site_id", req.SiteID.String()),
		zap.Int("slots_count", req.SlotsCount))
	return rental, nil
}

func (s *rentalService) Approve(ctx context.Context, tenantID, rentalID snowflake.ID) (*rentaldomain.SiteSlotRental, error) {
	var rental *rentaldomain.SiteSlotRental

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.lockRental(ctx, tx, rentalID)
		if err != nil {
			return err
		}
		if r.TenantAccountID != tenantID {
			return rentaldomain.ErrNotTenant
		}
		if r.Status != rentaldomain.StatusPendingApproval {
			return rentaldomain.ErrStateConflict
		}

		relatedID := r.ID
		if _, err := s.ledger.Debit(ctx, tx, ledgerdomain.EntryRequest{
			AccountID:   tenantID,
			AmountCents: r.TotalPriceCents(),
			Type:        ledgerdomain.TransactionTypeRental,
			RelatedID:   &relatedID,
			Description: "slot rental",
		}); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		expiresAt := now.Add(s.pricing.Get().RentalPeriod())
		if err := s.repo.UpdateStatus(ctx, tx, r.ID, rentaldomain.StatusActive, &expiresAt, now); err != nil {
			return err
		}
		if err := s.appendEvent(ctx, tx, r, rentaldomain.ActionApprove,
			rentaldomain.StatusPendingApproval, rentaldomain.StatusActive, tenantID, ""); err != nil {
			return err
		}

		r.Status = rentaldomain.StatusActive
		r.ExpiresAt = &expiresAt
		rental = r
		return nil
	})
	s.recordTransition("approve", err)
	if err != nil {
		return nil, err
	}

	s.log.Info("rental approved",
		zap.String("rental_id", rentalID.String()),
		zap.Int64("price_cents", rental.TotalPriceCents()))
	return rental, nil
}

func (s *rentalService) Reject(ctx context.Context, tenantID, rentalID snowflake.ID) (*rentaldomain.SiteSlotRental, error) {
	var rental *rentaldomain.SiteSlotRental

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.lockRental(ctx, tx, rentalID)
		if err != nil {
			return err
		}
		if r.TenantAccountID != tenantID {
			return rentaldomain.ErrNotTenant
		}
		if r.Status != rentaldomain.StatusPendingApproval {
			return rentaldomain.ErrStateConflict
		}

		now := s.clock.Now().UTC()
		if err := s.repo.UpdateStatus(ctx, tx, r.ID, rentaldomain.StatusRejected, nil, now); err != nil {
			return err
		}
		if err := s.appendEvent(ctx, tx, r, rentaldomain.ActionReject,
			rentaldomain.StatusPendingApproval, rentaldomain.StatusRejected, tenantID, ""); err != nil {
			return err
		}

		r.Status = rentaldomain.StatusRejected
		rental = r
		return nil
	})
	s.recordTransition("reject", err)
	if err != nil {
		return nil, err
	}
	return rental, nil
}

func (s *rentalService) Renew(ctx context.Context, tenantID, rentalID snowflake.ID) (*rentaldomain.SiteSlotRental, error) {
	rental, err := s.renew(ctx, tenantID, rentalID, ledgerdomain.TransactionTypeRentalRenewal, nil)
	s.recordTransition("renew", err)
	return rental, err
}

// errAlreadyRenewed marks a sweep renewal whose row was extended past the
// lookahead window by a concurrent manual renewal.
var errAlreadyRenewed = errors.New("rental already renewed")

// renew extends the lease under the row lock. A non-nil dueBefore makes the
// renewal conditional on the locked expiry still falling inside that window,
// so the sweep never re-charges a rental a manual renewal just extended.
func (s *rentalService) renew(ctx context.Context, tenantID, rentalID snowflake.ID, kind ledgerdomain.TransactionType, dueBefore *time.Time) (*rentaldomain.SiteSlotRental, error) {
	var rental *rentaldomain.SiteSlotRental

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.lockRental(ctx, tx, rentalID)
		if err != nil {
			return err
		}
		if r.TenantAccountID != tenantID {
			return rentaldomain.ErrNotTenant
		}
		if r.Status != rentaldomain.StatusActive {
			return rentaldomain.ErrStateConflict
		}
		if dueBefore != nil && r.ExpiresAt != nil && r.ExpiresAt.After(*dueBefore) {
			return errAlreadyRenewed
		}

		relatedID := r.ID
		if _, err := s.ledger.Debit(ctx, tx, ledgerdomain.EntryRequest{
			AccountID:   tenantID,
			AmountCents: r.TotalPriceCents(),
			Type:        kind,
			RelatedID:   &relatedID,
			Description: "slot rental renewal",
		}); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		from := now
		if r.ExpiresAt != nil && r.ExpiresAt.After(now) {
			from = *r.ExpiresAt
		}
		expiresAt := from.Add(s.pricing.Get().RentalPeriod())
		if err := s.repo.UpdateStatus(ctx, tx, r.ID, rentaldomain.StatusActive, &expiresAt, now); err != nil {
			return err
		}
		if err := s.appendEvent(ctx, tx, r, rentaldomain.ActionRenew,
			rentaldomain.StatusActive, rentaldomain.StatusActive, tenantID, ""); err != nil {
			return err
		}

		r.ExpiresAt = &expiresAt
		rental = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rental, nil
}

func (s *rentalService) Cancel(ctx context.Context, ownerID, rentalID snowflake.ID) (*rentaldomain.SiteSlotRental, error) {
	var rental *rentaldomain.SiteSlotRental

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.lockRental(ctx, tx, rentalID)
		if err != nil {
			return err
		}
		if r.OwnerAccountID != ownerID {
			return rentaldomain.ErrNotOwner
		}
		if r.Status != rentaldomain.StatusActive {
			return rentaldomain.ErrStateConflict
		}
		// slots_used comes from the locked row, not a stale read.
		if r.SlotsUsed > 0 {
			return rentaldomain.ErrSlotsInUse
		}

		now := s.clock.Now().UTC()
		if r.ExpiresAt != nil && r.ExpiresAt.After(now) {
			relatedID := r.ID
			if _, err := s.ledger.Credit(ctx, tx, ledgerdomain.EntryRequest{
				AccountID:   r.TenantAccountID,
				AmountCents: r.TotalPriceCents(),
				Type:        ledgerdomain.TransactionTypeRefund,
				RelatedID:   &relatedID,
				Description: "rental cancelled",
			}); err != nil {
				return err
			}
		}

		if err := s.repo.UpdateStatus(ctx, tx, r.ID, rentaldomain.StatusCancelled, r.ExpiresAt, now); err != nil {
			return err
		}
		if err := s.appendEvent(ctx, tx, r, rentaldomain.ActionCancel,
			rentaldomain.StatusActive, rentaldomain.StatusCancelled, ownerID, ""); err != nil {
			return err
		}

		r.Status = rentaldomain.StatusCancelled
		rental = r
		return nil
	})
	s.recordTransition("cancel", err)
	if err != nil {
		return nil, err
	}

	s.log.Info("rental cancelled", zap.String("rental_id", rentalID.String()))
	return rental, nil
}

func (s *rentalService) SetAutoRenewal(ctx context.Context, tenantID, rentalID snowflake.ID, enabled bool) error {
	r, err := s.repo.FindByID(ctx, s.db, rentalID, false)
	if err != nil {
		return err
	}
	if r == nil {
		return rentaldomain.ErrNotFound
	}
	if r.TenantAccountID != tenantID {
		return rentaldomain.ErrNotTenant
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.SetAutoRenewal(ctx, tx, rentalID, enabled, s.clock.Now().UTC()); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, r, rentaldomain.ActionToggleAutoRenewal,
			r.Status, r.Status, tenantID, "")
	})
}

func (s *rentalService) Get(ctx context.Context, actorID, rentalID snowflake.ID) (*rentaldomain.SiteSlotRental, error) {
	r, err := s.repo.FindByID(ctx, s.db, rentalID, false)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, rentaldomain.ErrNotFound
	}
	if r.OwnerAccountID != actorID && r.TenantAccountID != actorID {
		return nil, rentaldomain.ErrNotParty
	}
	return r, nil
}

func (s *rentalService) List(ctx context.Context, actorID snowflake.ID, role rentaldomain.Role) ([]rentaldomain.SiteSlotRental, error) {
	if role != rentaldomain.RoleOwner && role != rentaldomain.RoleTenant {
		return nil, rentaldomain.ErrInvalidRole
	}
	return s.repo.ListByAccount(ctx, s.db, actorID, role)
}

func (s *rentalService) History(ctx context.Context, actorID, rentalID snowflake.ID) ([]rentaldomain.RentalEvent, error) {
	if _, err := s.Get(ctx, actorID, rentalID); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, s.db, rentalID)
}

func (s *rentalService) RunAutoRenewals(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().UTC().Add(s.pricing.Get().RenewalLookahead())
	due, err := s.repo.ListDueAutoRenewals(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}

	renewed := 0
	for i := range due {
		r := due[i]
		_, err := s.renew(ctx, r.TenantAccountID, r.ID, ledgerdomain.TransactionTypeRentalRenewal, &cutoff)
		if errors.Is(err, errAlreadyRenewed) {
			continue
		}
		s.recordTransition("auto_renew", err)
		switch {
		case err == nil:
			renewed++
		case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
			if offErr := s.repo.SetAutoRenewal(ctx, s.db, r.ID, false, s.clock.Now().UTC()); offErr != nil {
				s.log.Error("rental auto renewal disable failed",
					zap.String("rental_id", r.ID.String()),
					zap.Error(offErr))
				continue
			}
			s.notifier.Notify(ctx, r.TenantAccountID, notify.EventAutoRenewalDisabled, map[string]string{
				"rental_id": r.ID.String(),
				"reason":    "insufficient_balance",
			})
		default:
			s.log.Warn("rental auto renewal failed",
				zap.String("rental_id", r.ID.String()),
				zap.Error(err))
		}
	}
	return renewed, nil
}

func (s *rentalService) ExpireDue(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	overdue, err := s.repo.ListOverdue(ctx, s.db, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range overdue {
		r := overdue[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			locked, err := s.lockRental(ctx, tx, r.ID)
			if err != nil {
				return err
			}
			if locked.Status != rentaldomain.StatusActive {
				return nil
			}
			if err := s.repo.UpdateStatus(ctx, tx, r.ID, rentaldomain.StatusExpired, locked.ExpiresAt, now); err != nil {
				return err
			}
			return s.appendEvent(ctx, tx, locked, rentaldomain.ActionExpire,
				rentaldomain.StatusActive, rentaldomain.StatusExpired, locked.TenantAccountID, "expired by sweep")
		})
		if err != nil {
			s.log.Error("rental expiry failed",
				zap.String("rental_id", r.ID.String()),
				zap.Error(err))
			continue
		}
		expired++
		s.notifier.Notify(ctx, r.TenantAccountID, notify.EventRentalExpired, map[string]string{
			"rental_id": r.ID.String(),
		})
	}
	return expired, nil
}

func (s *rentalService) lockRental(ctx context.Context, tx *gorm.DB, rentalID snowflake.ID) (*rentaldomain.SiteSlotRental, error) {
	r, err := s.repo.FindByID(ctx, tx, rentalID, true)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, rentaldomain.ErrNotFound
	}
	return r, nil
}

func (s *rentalService) recordTransition(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.RecordRental(action, result)
}
