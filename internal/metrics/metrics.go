package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the ledger. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Registry owns the collectors below; it backs the /metrics endpoint.
	Registry *prometheus.Registry

	ledgerOps         *prometheus.CounterVec
	ledgerOpDuration  *prometheus.HistogramVec
	duplicateWarnings prometheus.Counter
	alertsFired       *prometheus.CounterVec
	notifyFailures    *prometheus.CounterVec
	recurringOutcomes *prometheus.CounterVec
}

// NewMetrics registers all collectors in a private registry, so tests may call it repeatedly.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ledgerOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletwise_ledger_operations_total",
				Help: "Ledger mutations by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		ledgerOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "walletwise_ledger_operation_duration_seconds",
				Help:    "Duration of ledger mutations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		duplicateWarnings: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "walletwise_duplicate_warnings_total",
				Help: "Transactions inserted while similar transactions already existed.",
			},
		),
		alertsFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletwise_budget_alerts_total",
				Help: "Budget alerts fired by level.",
			},
			[]string{"level"},
		),
		notifyFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletwise_notification_failures_total",
				Help: "Swallowed notification delivery failures by channel.",
			},
			[]string{"channel"},
		),
		recurringOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletwise_recurring_rules_total",
				Help: "Recurring rule processing outcomes.",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) ObserveLedgerOp(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.ledgerOps.WithLabelValues(operation, outcome).Inc()
	m.ledgerOpDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) IncrDuplicateWarning() {
	if m == nil {
		return
	}
	m.duplicateWarnings.Inc()
}

func (m *Metrics) IncrAlert(level string) {
	if m == nil {
		return
	}
	m.alertsFired.WithLabelValues(level).Inc()
}

func (m *Metrics) IncrNotifyFailure(channel string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(channel).Inc()
}

func (m *Metrics) IncrRecurring(outcome string) {
	if m == nil {
		return
	}
	m.recurringOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
