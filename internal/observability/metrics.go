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
	// Ingestion metrics
	SnapshotsIngested *prometheus.CounterVec
	SnapshotsDropped  *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	ProviderLatency   *prometheus.HistogramVec
	WatchlistSize     prometheus.Gauge
	MintsDiscovered   prometheus.Counter

	// Window metrics
	WindowResets prometheus.Counter
	TrackedMints prometheus.Gauge

	// Decision metrics
	Verdicts        *prometheus.CounterVec
	Decisions       *prometheus.CounterVec
	StageFailures   *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	QueueDepth      *prometheus.GaugeVec
	KillSwitchState prometheus.Gauge

	// Ledger metrics
	Transitions     *prometheus.CounterVec
	ActivePositions prometheus.Gauge
	RealizedPnL     prometheus.Gauge

	// Execution metrics
	Orders           *prometheus.CounterVec
	ExecutionLatency *prometheus.HistogramVec

	// Audit metrics
	AuditEvents       *prometheus.CounterVec
	AuditDropped      prometheus.Counter
	AuditWriterErrors *prometheus.CounterVec

	// Solana metrics
	RPCCallLatency *prometheus.HistogramVec
	WSMessages     prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastDecision  prometheus.Gauge
	UptimeSeconds prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_engine"
	}

	return &Metrics{
		// Ingestion metrics
		SnapshotsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "snapshots_ingested_total",
			Help:      "Total number of snapshots accepted into feature windows by source",
		}, []string{"source"}),
		SnapshotsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "snapshots_dropped_total",
			Help:      "Total number of snapshots dropped by reason",
		}, []string{"reason"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "provider_errors_total",
			Help:      "Total number of provider call failures",
		}, []string{"provider"}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "provider_latency_seconds",
			Help:      "Provider call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		WatchlistSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "watchlist_size",
			Help:      "Number of mints currently on the watchlist",
		}),
		MintsDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "mints_discovered_total",
			Help:      "Total number of new mints discovered from launch program logs",
		}),

		// Window metrics
		WindowResets: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "window",
			Name:      "resets_total",
			Help:      "Total number of windows reset after a stale gap",
		}),
		TrackedMints: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "window",
			Name:      "tracked_mints",
			Help:      "Number of mints with retained samples",
		}),

		// Decision metrics
		Verdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "verdicts_total",
			Help:      "Total number of security verdicts by status",
		}, []string{"status"}),
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "decisions_total",
			Help:      "Total number of decisions by action",
		}, []string{"action"}),
		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "stage_failures_total",
			Help:      "Total number of degraded decision cycles by stage",
		}, []string{"stage"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycle_duration_seconds",
			Help:      "Decision cycle duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "queue_depth",
			Help:      "Pending payloads per worker shard",
		}, []string{"shard"}),
		KillSwitchState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "kill_switch_active",
			Help:      "1 when new BUY decisions are halted",
		}),

		// Ledger metrics
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transitions_total",
			Help:      "Total number of position transitions by target state",
		}, []string{"to_state"}),
		ActivePositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "active_positions",
			Help:      "Number of non-terminal positions",
		}),
		RealizedPnL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "realized_pnl",
			Help:      "Sum of realized P&L over closed positions",
		}),

		// Execution metrics
		Orders: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "orders_total",
			Help:      "Total number of submitted orders by side and status",
		}, []string{"side", "status"}),
		ExecutionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "latency_seconds",
			Help:      "Order submission latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"side"}),

		// Audit metrics
		AuditEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "events_total",
			Help:      "Total number of audit events published by kind",
		}, []string{"kind"}),
		AuditDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "dropped_total",
			Help:      "Total number of audit events dropped on a full buffer",
		}),
		AuditWriterErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "writer_errors_total",
			Help:      "Total number of audit writer failures",
		}, []string{"writer"}),

		// Solana metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_messages_total",
			Help:      "Total number of WebSocket notifications received",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastDecision: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_decision_timestamp",
			Help:      "Unix timestamp of the last emitted decision",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSnapshotIngested counts a snapshot accepted into a window.
func RecordSnapshotIngested(source string) {
	DefaultMetrics.SnapshotsIngested.WithLabelValues(source).Inc()
}

// RecordSnapshotDropped counts a rejected or duplicate snapshot.
func RecordSnapshotDropped(reason string) {
	DefaultMetrics.SnapshotsDropped.WithLabelValues(reason).Inc()
}

// RecordProviderCall records provider latency and failures.
func RecordProviderCall(provider string, seconds float64, err error) {
	DefaultMetrics.ProviderLatency.WithLabelValues(provider).Observe(seconds)
	if err != nil {
		DefaultMetrics.ProviderErrors.WithLabelValues(provider).Inc()
	}
}

// RecordWindowReset counts a stale-gap window reset.
func RecordWindowReset() {
	DefaultMetrics.WindowResets.Inc()
}

// RecordVerdict counts a security verdict.
func RecordVerdict(status string) {
	DefaultMetrics.Verdicts.WithLabelValues(status).Inc()
}

// RecordDecision counts a decision and its cycle duration.
func RecordDecision(action string, seconds float64, unixTs int64) {
	DefaultMetrics.Decisions.WithLabelValues(action).Inc()
	DefaultMetrics.CycleDuration.Observe(seconds)
	DefaultMetrics.LastDecision.Set(float64(unixTs))
}

// RecordStageFailure counts a degraded stage.
func RecordStageFailure(stage string) {
	DefaultMetrics.StageFailures.WithLabelValues(stage).Inc()
}

// SetKillSwitch exports the kill switch state.
func SetKillSwitch(active bool) {
	if active {
		DefaultMetrics.KillSwitchState.Set(1)
		return
	}
	DefaultMetrics.KillSwitchState.Set(0)
}

// RecordTransition counts a ledger transition.
func RecordTransition(toState string) {
	DefaultMetrics.Transitions.WithLabelValues(toState).Inc()
}

// UpdateLedgerGauges exports the active position count and realized P&L.
func UpdateLedgerGauges(active int, realizedPnL float64) {
	DefaultMetrics.ActivePositions.Set(float64(active))
	DefaultMetrics.RealizedPnL.Set(realizedPnL)
}

// RecordOrder records an order outcome and its latency.
func RecordOrder(side, status string, seconds float64) {
	DefaultMetrics.Orders.WithLabelValues(side, status).Inc()
	DefaultMetrics.ExecutionLatency.WithLabelValues(side).Observe(seconds)
}

// RecordAuditEvent counts a published audit event.
func RecordAuditEvent(kind string) {
	DefaultMetrics.AuditEvents.WithLabelValues(kind).Inc()
}

// RecordAuditDropped counts an audit event dropped on a full buffer.
func RecordAuditDropped() {
	DefaultMetrics.AuditDropped.Inc()
}

// RecordAuditWriterError counts a failed audit writer call.
func RecordAuditWriterError(writer string) {
	DefaultMetrics.AuditWriterErrors.WithLabelValues(writer).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordWSMessage counts a WebSocket notification.
func RecordWSMessage() {
	DefaultMetrics.WSMessages.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
