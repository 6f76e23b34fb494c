package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes billing engine counters on the default prometheus registry.
type Metrics struct {
	purchases       *prometheus.CounterVec
	renewals        *prometheus.CounterVec
	rentals         *prometheus.CounterVec
	gatewayRequests *prometheus.CounterVec
	gatewayDuration prometheus.Histogram
	schedulerRuns   *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		purchases: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "placehub_purchases_total",
			Help: "Placement purchase attempts by result.",
		}, []string{"result"}),
		renewals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "placehub_renewals_total",
			Help: "Placement renewals by kind and result.",
		}, []string{"kind", "result"}),
		rentals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "placehub_rental_transitions_total",
			Help: "Slot rental state transitions by action and result.",
		}, []string{"action", "result"}),
		gatewayRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "placehub_gateway_requests_total",
			Help: "Publish gateway calls by result.",
		}, []string{"result"}),
		gatewayDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "placehub_gateway_duration_seconds",
			Help:    "Publish gateway call latency.",
			Buckets: prometheus.DefBuckets,
		}),
		schedulerRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "placehub_scheduler_job_runs_total",
			Help: "Scheduler job executions by job and result.",
		}, []string{"job", "result"}),
	}
}

func (m *Metrics) RecordPurchase(result string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRenewal(kind, result string) {
	if m == nil {
		return
	}
	m.renewals.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) RecordRental(action, result string) {
	if m == nil {
		return
	}
	m.rentals.WithLabelValues(action, result).Inc()
}

func (m *Metrics) RecordGatewayCall(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(result).Inc()
	m.gatewayDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordSchedulerRun(job, result string) {
	if m == nil {
		return
	}
	m.schedulerRuns.WithLabelValues(job, result).Inc()
}
