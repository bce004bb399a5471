// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// History write metrics
	SnapshotsRecorded    prometheus.Counter
	SnapshotWritesNoop   prometheus.Counter
	AccumulatorOverflows prometheus.Counter

	// Ledger metrics
	LedgerOperations *prometheus.CounterVec
	LedgerErrors     *prometheus.CounterVec

	// Query metrics
	BalanceQueries *prometheus.CounterVec
	QueryDuration  prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Stream metrics
	StreamClients       prometheus.Gauge
	StreamEventsDropped prometheus.Counter

	// Audit sink metrics
	AuditEventsFlushed prometheus.Counter
	AuditFlushErrors   prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "twab_ledger"
	}

	return &Metrics{
		SnapshotsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "snapshots_recorded_total",
			Help:      "Total number of snapshots appended to account histories",
		}),
		SnapshotWritesNoop: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "snapshot_writes_noop_total",
			Help:      "Total number of same-second appends skipped as no-ops",
		}),
		AccumulatorOverflows: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "accumulator_overflows_total",
			Help:      "Total number of appends rejected for accumulator overflow",
		}),
		LedgerOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Total ledger operations by type",
		}, []string{"op"}),
		LedgerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "errors_total",
			Help:      "Total failed ledger operations by type",
		}, []string{"op"}),
		BalanceQueries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "balance_queries_total",
			Help:      "Total balance-at queries by resolution path",
		}, []string{"path"}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "query_duration_seconds",
			Help:      "Balance-at query duration",
			Buckets:   prometheus.DefBuckets,
		}),
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration by backend and operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total database query errors by backend and operation",
		}, []string{"database", "operation"}),
		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connected_clients",
			Help:      "Number of connected websocket stream clients",
		}),
		StreamEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_dropped_total",
			Help:      "Events dropped for slow websocket clients",
		}),
		AuditEventsFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "events_flushed_total",
			Help:      "Snapshot events flushed to the audit sink",
		}),
		AuditFlushErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "flush_errors_total",
			Help:      "Failed audit sink flushes",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSnapshot increments the snapshots recorded counter.
func RecordSnapshot() {
	DefaultMetrics.SnapshotsRecorded.Inc()
}

// RecordSnapshotNoop increments the same-second no-op counter.
func RecordSnapshotNoop() {
	DefaultMetrics.SnapshotWritesNoop.Inc()
}

// RecordOverflow increments the accumulator overflow counter.
func RecordOverflow() {
	DefaultMetrics.AccumulatorOverflows.Inc()
}

// RecordLedgerOp records a ledger operation outcome.
func RecordLedgerOp(op string, err error) {
	DefaultMetrics.LedgerOperations.WithLabelValues(op).Inc()
	if err != nil {
		DefaultMetrics.LedgerErrors.WithLabelValues(op).Inc()
	}
}

// RecordBalanceQuery records a balance-at query and its resolution path.
func RecordBalanceQuery(path string, seconds float64) {
	DefaultMetrics.BalanceQueries.WithLabelValues(path).Inc()
	DefaultMetrics.QueryDuration.Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
