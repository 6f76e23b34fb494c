// Package notify delivers account-facing notifications. The current sink
// writes structured log entries; a mail or webhook sink can replace it behind
// the same interface.
package notify

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Event string

const (
	EventAutoRenewalFailed   Event = "auto_renewal_failed"
	EventAutoRenewalDisabled Event = "auto_renewal_disabled"
	EventPlacementExpired    Event = "placement_expired"
	EventRentalExpired       Event = "rental_expired"
	EventReferralBonus       Event = "referral_bonus"
)

type Notifier interface {
	Notify(ctx context.Context, accountID snowflake.ID, event Event, fields map[string]string)
}

type logNotifier struct {
	log *zap.Logger
}

func New(log *zap.Logger) Notifier {
	return &logNotifier{log: log.Named("notify")}
}

func (n *logNotifier) Notify(_ context.Context, accountID snowflake.ID, event Event, fields map[string]string) {
	zf := make([]zap.Field, 0, len(fields)+2)
	zf = append(zf,
		zap.String("account_id", accountID.String()),
		zap.String("event", string(event)))
	for k, v := range fields {
		zf = append(zf, zap.String(k, v))
	}
	n.log.Info("notification", zf...)
}

var Module = fx.Module("notify",
	fx.Provide(New),
)
