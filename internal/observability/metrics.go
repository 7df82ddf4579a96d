package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for CertLedger.
type Metrics struct {
	// --- Core processing ---
	OpsApplied   *prometheus.CounterVec
	OpsRejected  *prometheus.CounterVec
	OpDuration   *prometheus.HistogramVec
	StateHashDur prometheus.Histogram
	CoreEventID  prometheus.Gauge
	CurrentTick  prometheus.Gauge

	// --- Ledger aggregates ---
	TotalFunds        prometheus.Gauge
	TotalInterestPaid prometheus.Gauge
	TotalWithdrawn    prometheus.Gauge
	ReserveRatio      prometheus.Gauge

	// --- Settlement ---
	SettlementInstructions prometheus.Counter
	SettlementFlushes      prometheus.Counter
	SettlementPublishErrs  prometheus.Counter

	// --- Channel & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	ProjectionDrops     prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Idempotency ---
	IdempotencyDuplicates *prometheus.CounterVec

	// --- Ingestion ---
	IngestToApply   *prometheus.HistogramVec
	IngestParseErrs prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchDur      prometheus.Histogram
	PersistBatchSize     prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetry         prometheus.Counter
	PersistLastEventID   prometheus.Gauge

	// --- Projections ---
	ProjectionUpdateDur *prometheus.HistogramVec

	// --- Snapshot & replay ---
	SnapshotTaken       prometheus.Counter
	SnapshotDuration    prometheus.Histogram
	SnapshotSizeBytes   prometheus.Gauge
	SnapshotLastEventID prometheus.Gauge
	ReplayEventsTotal   prometheus.Counter
	ReplayDuration      prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	ingestBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cert_core_ops_applied_total",
			Help: "Operations successfully applied by the core",
		}, []string{"kind"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cert_core_ops_rejected_total",
			Help: "Operations rejected (dedup, decode, validation)",
		}, []string{"kind", "code"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cert_core_op_duration_seconds",
			Help:    "Time to process a single operation",
			Buckets: latencyBuckets,
		}, []string{"kind"}),

		StateHashDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cert_core_state_hash_duration_seconds",
			Help:    "Time to compute the state hash",
			Buckets: latencyBuckets,
		}),

		CoreEventID: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cert_core_event_id",
			Help: "Last assigned event id",
		}),

		CurrentTick: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cert_core_tick",
			Help: "Current tick counter",
		}),

		TotalFunds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cert_ledger_total_funds",
			Help: "Aggregate user-deposited funds in the system",
		}),

		TotalInterestPaid: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cert_ledger_interest_paid_total",
			Help: "Cumulative interest credited to accounts",
		}),

		TotalWithdrawn: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cert_ledger_admin_withdrawn_total",
			Help: "Cumulative privileged withdrawals",
		}),

		ReserveRatio: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cert_ledger_reserve_ratio_bp",
			Help: "Current reserve ratio in basis points",
		}),

		SettlementInstructions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cert_settlement_instructions_total",
			Help: "Settlement instructions queued",
		}),

		SettlementFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cert_settlement_flushes_total",
			Help: "Settlement batches flushed",
		}),

		SettlementPublishErrs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cert_settlement_publish_errors_total",
			Help: "Settlement publish failures",
		}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cert_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cert_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cert_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cert_projection_drops_total",
			Help: "Events dropped due to full projection channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cert_persist_backpressure_total",
			Help: "Times the core blocked on the persist channel",
		}),

		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cert_idempotency_duplicates_total",
			Help: "Duplicate commands caught (lru/postgres)",
		}, []string{"tier"}),

		IngestToApply: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cert_ingest_to_apply_seconds",
			Help:    "NATS receive to core apply complete",
			Buckets: ingestBuckets,
		}, []string{"kind"}),

		IngestParseErrs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cert_ingest_parse_errors_total",
			Help: "Inbound messages rejected by the parser",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cert_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cert_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cert_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cert_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cert_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastEventID: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cert_persist_last_event_id",
			Help: "Last persisted event id",
		}),

		ProjectionUpdateDur: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cert_projection_update_duration_seconds",
			Help:    "Projection table update duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"projection"}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cert_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cert_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cert_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		SnapshotLastEventID: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cert_snapshot_last_event_id",
			Help: "Event id of the last snapshot",
		}),

		ReplayEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cert_replay_events_total",
			Help: "Events replayed on startup",
		}),

		ReplayDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cert_replay_duration_seconds",
			Help: "Total replay time",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cert_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cert_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cert_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
