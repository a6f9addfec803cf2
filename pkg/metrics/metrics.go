package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Storage engine metrics
	DocumentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kotadb_documents_total",
			Help: "Total number of live documents in the store",
		},
	)

	StorageOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kotadb_storage_operations_total",
			Help: "Total number of storage operations by op and outcome",
		},
		[]string{"op", "outcome"},
	)

	StorageOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kotadb_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// WAL metrics
	WALAppendsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kotadb_wal_appends_total",
			Help: "Total number of WAL frames appended",
		},
	)

	WALBytesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kotadb_wal_bytes_written_total",
			Help: "Total number of bytes written to WAL files",
		},
	)

	WALCheckpointsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kotadb_wal_checkpoints_total",
			Help: "Total number of WAL checkpoints performed",
		},
	)

	WALReplayedEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kotadb_wal_replayed_entries",
			Help: "Number of entries replayed from WAL on last open",
		},
	)

	// Primary index metrics
	PrimaryIndexHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kotadb_primary_index_height",
			Help: "Current height of the primary B+ tree index",
		},
	)

	PrimaryIndexEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kotadb_primary_index_entries",
			Help: "Number of live entries in the primary index",
		},
	)

	PrimaryIndexSplits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kotadb_primary_index_splits_total",
			Help: "Total number of leaf/internal page splits",
		},
	)

	// Trigram index metrics
	TrigramPostingsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kotadb_trigram_postings_total",
			Help: "Total number of distinct trigrams indexed",
		},
	)

	TrigramSearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kotadb_trigram_search_duration_seconds",
			Help:    "Time taken to run a trigram search",
			Buckets: prometheus.DefBuckets,
		},
	)

	TrigramFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kotadb_trigram_fallbacks_total",
			Help: "Total number of adaptive-threshold fallback relaxations by rung",
		},
		[]string{"rung"},
	)

	// Wrapper stack metrics
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kotadb_cache_hits_total",
			Help: "Cache hits/misses for the Cached wrapper layer",
		},
		[]string{"outcome"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kotadb_retry_attempts_total",
			Help: "Total retry attempts by the Retryable wrapper layer",
		},
		[]string{"op", "outcome"},
	)

	BufferedFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kotadb_buffered_flushes_total",
			Help: "Total number of buffered-wrapper flushes by trigger",
		},
		[]string{"trigger"},
	)

	BufferedQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kotadb_buffered_queue_depth",
			Help: "Current depth of the buffered wrapper's dirty queue",
		},
	)

	TracedOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kotadb_traced_operation_duration_seconds",
			Help:    "Duration of operations as observed by the Traced wrapper layer",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"component", "op"},
	)

	// Coordinated deletion metrics
	CoordinatedDeletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kotadb_coordinated_deletions_total",
			Help: "Total coordinated deletions by outcome",
		},
		[]string{"outcome"},
	)

	CoordinatedRollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kotadb_coordinated_rollbacks_total",
			Help: "Total coordinated-deletion rollbacks by failing step",
		},
		[]string{"step"},
	)
)

func init() {
	prometheus.MustRegister(DocumentsTotal)
	prometheus.MustRegister(StorageOperationsTotal)
	prometheus.MustRegister(StorageOperationDuration)

	prometheus.MustRegister(WALAppendsTotal)
	prometheus.MustRegister(WALBytesWritten)
	prometheus.MustRegister(WALCheckpointsTotal)
	prometheus.MustRegister(WALReplayedEntries)

	prometheus.MustRegister(PrimaryIndexHeight)
	prometheus.MustRegister(PrimaryIndexEntries)
	prometheus.MustRegister(PrimaryIndexSplits)

	prometheus.MustRegister(TrigramPostingsTotal)
	prometheus.MustRegister(TrigramSearchDuration)
	prometheus.MustRegister(TrigramFallbacksTotal)

	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(BufferedFlushesTotal)
	prometheus.MustRegister(BufferedQueueDepth)
	prometheus.MustRegister(TracedOperationDuration)

	prometheus.MustRegister(CoordinatedDeletionsTotal)
	prometheus.MustRegister(CoordinatedRollbacksTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
