package observability

import (
	"time"

	"github.com/boddenberg/networth-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	syncDuration   *prometheus.HistogramVec
	syncOutcomes   *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec
	publishes      prometheus.Counter
	publishedValue *prometheus.GaugeVec
	activeSessions prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		syncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashboard_sync_duration_seconds",
				Help:    "Duration of synchronizer operations (create, delete, refresh).",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		syncOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_sync_operations_total",
				Help: "Synchronizer operations by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_record_store_errors_total",
				Help: "Total failed Record Store calls.",
			},
			[]string{"call"},
		),
		publishes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dashboard_metrics_published_total",
				Help: "Total metrics values published to subscribers.",
			},
		),
		publishedValue: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dashboard_published_total",
				Help: "Totals of the most recently published metrics, by field.",
			},
			[]string{"field"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dashboard_active_sessions",
				Help: "Sessions holding a live synchronizer.",
			},
		),
	}
}

// RecordSync records the duration and outcome of a synchronizer operation.
func (m *Metrics) RecordSync(operation string, d time.Duration, err error) {
	m.syncDuration.WithLabelValues(operation).Observe(d.Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.syncOutcomes.WithLabelValues(operation, outcome).Inc()
}

// IncrStoreError increments the Record Store error counter.
func (m *Metrics) IncrStoreError(call string) {
	m.storeErrors.WithLabelValues(call).Inc()
}

// RecordPublish counts a publish and exposes the published totals.
func (m *Metrics) RecordPublish(metrics domain.Metrics) {
	m.publishes.Inc()
	m.publishedValue.WithLabelValues("income").Set(metrics.TotalIncome.InexactFloat64())
	m.publishedValue.WithLabelValues("expenses").Set(metrics.TotalExpenses.InexactFloat64())
	m.publishedValue.WithLabelValues("assets").Set(metrics.TotalAssets.InexactFloat64())
	m.publishedValue.WithLabelValues("liabilities").Set(metrics.TotalLiabilities.InexactFloat64())
	m.publishedValue.WithLabelValues("net_worth").Set(metrics.NetWorth.InexactFloat64())
}

// SetActiveSessions sets the live session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// Snapshot returns cumulative counters suitable for GET /v1/dashboard/stats.
func (m *Metrics) Snapshot() *domain.SyncStats {
	refreshes := getCounterValue(m.syncOutcomes, "refresh", "success") +
		getCounterValue(m.syncOutcomes, "refresh", "error")

	var storeErrors float64
	for _, call := range []string{"list_transactions", "list_assets_liabilities", "create_transaction", "delete_transaction", "create_asset_liability"} {
		storeErrors += getCounterValue(m.storeErrors, call)
	}

	return &domain.SyncStats{
		Refreshes:         int64(refreshes),
		Publishes:         int64(readValue(m.publishes)),
		StoreErrors:       int64(storeErrors),
		ActiveSessions:    int64(readValue(m.activeSessions)),
		PublishedNetWorth: readValue(m.publishedValue.WithLabelValues("net_worth")),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	return readValue(cv.WithLabelValues(labels...))
}

func readValue(metric prometheus.Metric) float64 {
	m := &dto.Metric{}
	if err := metric.Write(m); err != nil {
		return 0
	}
	switch {
	case m.Counter != nil && m.Counter.Value != nil:
		return *m.Counter.Value
	case m.Gauge != nil && m.Gauge.Value != nil:
		return *m.Gauge.Value
	}
	return 0
}
