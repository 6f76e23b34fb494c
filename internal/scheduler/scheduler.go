// Package scheduler runs the periodic sweeps: scheduled publishes,
// auto-renewals, expiries and the discount reconciliation. Sweeps on shared
// state take a Redis lock so only one instance processes a job at a time.
package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/placehub/placehub/internal/clock"
	ledgerdomain "github.com/placehub/placehub/internal/ledger/domain"
	"github.com/placehub/placehub/internal/observability/metrics"
	placementdomain "github.com/placehub/placehub/internal/placement/domain"
	"github.com/placehub/placehub/internal/ratelimit"
	rentaldomain "github.com/placehub/placehub/internal/rental/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	PlacementSvc placementdomain.Service
	RentalSvc    rentaldomain.Service
	LedgerSvc    ledgerdomain.Service
	Limiter      *ratelimit.PurchaseLimiter `optional:"true"`
	Metrics      *metrics.Metrics           `optional:"true"`
	Config       Config                     `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	placementSvc placementdomain.Service
	rentalSvc    rentaldomain.Service
	ledgerSvc    ledgerdomain.Service
	limiter      *ratelimit.PurchaseLimiter
	metrics      *metrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.PlacementSvc == nil || p.RentalSvc == nil || p.LedgerSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		placementSvc: p.PlacementSvc,
		rentalSvc:    p.RentalSvc,
		ledgerSvc:    p.LedgerSvc,
		limiter:      p.Limiter,
		metrics:      p.Metrics,
	}, nil
}

// runJob wraps one sweep with a timeout, the cross-instance lock and metrics.
// A busy lock means another instance owns the sweep this round.
func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) (int, error)) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	token, acquired, err := s.limiter.TryLockSweep(ctx, name)
	if err != nil {
		s.recordRun(name, "lock_error")
		s.log.Warn("sweep lock failed", zap.String("job", name), zap.Error(err))
		return nil
	}
	if !acquired {
		s.recordRun(name, "skipped")
		return nil
	}
	defer func() {
		if relErr := s.limiter.ReleaseSweep(context.WithoutCancel(ctx), name, token); relErr != nil {
			s.log.Warn("sweep lock release failed", zap.String("job", name), zap.Error(relErr))
		}
	}()

	start := s.clock.Now()
	processed, err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.recordRun(name, "timeout")
			s.log.Warn("job timed out",
				zap.String("job", name),
				zap.Duration("timeout", timeout),
				zap.Int("processed", processed))
			return nil
		}
		s.recordRun(name, "error")
		return err
	}

	s.recordRun(name, "ok")
	if processed > 0 {
		s.log.Info("job completed",
			zap.String("job", name),
			zap.Int("processed", processed),
			zap.Duration("elapsed", elapsed))
	}
	return nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := []struct {
		Name string
		Run  func(context.Context) (int, error)
	}{
		{"placement_publish", s.placementSvc.PublishScheduled},
		{"placement_auto_renewals", s.placementSvc.RunAutoRenewals},
		{"placement_expiry", s.placementSvc.ExpireDue},
		{"rental_auto_renewals", s.rentalSvc.RunAutoRenewals},
		{"rental_expiry", s.rentalSvc.ExpireDue},
		{"discount_sync", s.ledgerSvc.ReconcileAll},
	}

	var err error
	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		if parent.Err() != nil {
			return errors.Join(err, parent.Err())
		}
		if jobErr := s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run); jobErr != nil {
			err = errors.Join(err, jobErr)
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) recordRun(job, result string) {
	s.metrics.RecordSchedulerRun(job, result)
}
