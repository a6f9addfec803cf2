/*
Package metrics provides Prometheus metrics collection and exposition for KotaDB.

The metrics package defines and registers all KotaDB metrics using the Prometheus
client library, providing observability into storage operations, WAL durability,
index shape, and the wrapper stack's caching/retry/buffering behavior. Metrics are
exposed via an HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (document count)     │          │
	│  │  Counter: Monotonic increases (WAL appends)  │          │
	│  │  Histogram: Distributions (operation time)  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Storage: documents, op counts, durations   │          │
	│  │  WAL: appends, bytes, checkpoints, replay   │          │
	│  │  Primary index: height, entries, splits     │          │
	│  │  Trigram index: postings, search, fallback  │          │
	│  │  Wrapper stack: cache, retry, buffer, trace │          │
	│  │  Coordinator: deletions, rollbacks          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Thread-safe for concurrent updates from any wrapper layer

Collector:
  - Polls a StatsSource on a ticker (see collector.go)
  - Keeps gauges current between writes (document count, index shape)
  - Started once by the top-level Database, stopped on Close

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

# Metrics Catalog

Storage metrics:

kotadb_documents_total:
  - Type: Gauge
  - Description: Total number of live documents in the store

kotadb_storage_operations_total{op,outcome}:
  - Type: Counter
  - Description: Storage operations by op (insert/get/update/delete/list_all) and
    outcome (ok/not_found/duplicate/error)

kotadb_storage_operation_duration_seconds{op}:
  - Type: Histogram
  - Description: Storage operation latency

WAL metrics:

kotadb_wal_appends_total:
  - Type: Counter
  - Description: Total WAL frames appended across all instantiations

kotadb_wal_bytes_written_total:
  - Type: Counter
  - Description: Total bytes written to WAL files

kotadb_wal_checkpoints_total:
  - Type: Counter
  - Description: Total WAL checkpoints performed (16 MiB or 5 minutes, whichever
    comes first)

kotadb_wal_replayed_entries:
  - Type: Gauge
  - Description: Number of entries replayed from WAL on the last open

Primary index metrics:

kotadb_primary_index_height / kotadb_primary_index_entries:
  - Type: Gauge
  - Description: Current B+ tree height and live entry count

kotadb_primary_index_splits_total:
  - Type: Counter
  - Description: Total leaf/internal page splits

Trigram index metrics:

kotadb_trigram_postings_total:
  - Type: Gauge
  - Description: Distinct trigrams currently indexed

kotadb_trigram_search_duration_seconds:
  - Type: Histogram
  - Description: Time taken to run a trigram search, including any adaptive
    threshold fallback rungs

kotadb_trigram_fallbacks_total{rung}:
  - Type: Counter
  - Description: Adaptive match-ratio fallback relaxations by rung

Wrapper stack metrics:

kotadb_cache_hits_total{outcome}:
  - Type: Counter
  - Description: Cache hits/misses observed by the Cached layer

kotadb_retry_attempts_total{op,outcome}:
  - Type: Counter
  - Description: Retry attempts made by the Retryable layer

kotadb_buffered_flushes_total{trigger}:
  - Type: Counter
  - Description: Buffered-layer flushes by trigger (size/interval/close/manual)

kotadb_buffered_queue_depth:
  - Type: Gauge
  - Description: Current depth of the Buffered layer's dirty queue

kotadb_traced_operation_duration_seconds{component,op}:
  - Type: Histogram
  - Description: Duration of an operation as observed at the Traced layer,
    covering the full wrapped call chain beneath it

Coordinator metrics:

kotadb_coordinated_deletions_total{outcome}:
  - Type: Counter
  - Description: Coordinated deletions across storage + both indexes, by outcome

kotadb_coordinated_rollbacks_total{step}:
  - Type: Counter
  - Description: Coordinated-deletion rollbacks, labeled by the step that failed

# Usage

Incrementing a counter:

	metrics.StorageOperationsTotal.WithLabelValues("insert", "ok").Inc()

Timing an operation:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TrigramSearchDuration)

Exposing the endpoint:

	http.Handle("/metrics", metrics.Handler())

# Health Checks

See health.go for the companion HealthChecker, which tracks storage/wal/
primary_index/trigram_index readiness independently of the numeric series above
and backs the /health, /ready, and /live HTTP endpoints.
*/
package metrics
