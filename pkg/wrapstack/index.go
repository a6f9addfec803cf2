package wrapstack

import (
	"context"

	"github.com/google/uuid"

	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/kotaerr"
	"github.com/kotadb/kotadb/pkg/log"
	"github.com/kotadb/kotadb/pkg/metrics"
	"github.com/kotadb/kotadb/pkg/pindex"
	"github.com/kotadb/kotadb/pkg/trigram"
)

// The Index side of the wrapper stack omits the Cached layer: spec
// §4.6 describes Cached as "an LRU over document ids for Storage"
// specifically, not a general index cache, so both index wrappers
// below compose Traced -> Validated -> Retryable -> Buffered over the
// base index.

// TrigramStore is the common shape of trigram.TextIndex and
// trigram.BinaryIndex, letting one wrapper type serve whichever
// variant pkg/kotadb's config selects (spec §6.4 use_binary_index).
type TrigramStore interface {
	Insert(document.ValidatedDocumentId, string) error
	Delete(document.ValidatedDocumentId) error
	Search(trigram.Query) []uuid.UUID
	Flush() error
	Sync() error
	Close() error
	TrigramPostingCount() int
}

var (
	_ TrigramStore = (*trigram.TextIndex)(nil)
	_ TrigramStore = (*trigram.BinaryIndex)(nil)
)

// WrappedTrigramIndex composes Traced/Validated/Retryable/Buffered
// around a TrigramStore.
type WrappedTrigramIndex struct {
	inner   TrigramStore
	traceID string
	policy  RetryPolicy
	buf     *indexBuffer
}

// NewWrappedTrigramIndex wraps base per the fixed composition.
func NewWrappedTrigramIndex(base TrigramStore, opts StorageOptions) *WrappedTrigramIndex {
	if opts.RetryPolicy.MaxAttempts == 0 {
		opts.RetryPolicy = DefaultRetryPolicy
	}
	return &WrappedTrigramIndex{
		inner:   base,
		traceID: uuid.NewString(),
		policy:  opts.RetryPolicy,
		buf:     newIndexBuffer(opts.BufferedOptions),
	}
}

func (w *WrappedTrigramIndex) traced(op string, fn func() error) error {
	timer := metrics.NewTimer()
	logger := log.WithTraceID(w.traceID).With().Str("op", op).Str("component", "trigram").Logger()
	err := retryDoErr(context.Background(), w.policy, op, fn)
	timer.ObserveDurationVec(metrics.TracedOperationDuration, "trigram", op)
	if err != nil {
		err = kotaerr.WithTraceID(err, w.traceID)
		logger.Error().Err(err).Msg("operation failed")
	}
	return err
}

// Insert validates id/text before delegating (spec §4.6 "Validated").
func (w *WrappedTrigramIndex) Insert(id document.ValidatedDocumentId, text string) error {
	if id.IsZero() {
		return kotaerr.NewInvalidInput("trigram.insert", "document id must not be zero")
	}
	err := w.traced("insert", func() error { return w.inner.Insert(id, text) })
	if err == nil && w.buf.trigger() {
		return w.Flush()
	}
	return err
}

func (w *WrappedTrigramIndex) Delete(id document.ValidatedDocumentId) error {
	if id.IsZero() {
		return kotaerr.NewInvalidInput("trigram.delete", "document id must not be zero")
	}
	err := w.traced("delete", func() error { return w.inner.Delete(id) })
	if err == nil && w.buf.trigger() {
		return w.Flush()
	}
	return err
}

// Search passes straight through, traced but not buffered (reads are
// never deferred).
func (w *WrappedTrigramIndex) Search(q trigram.Query) []uuid.UUID {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TrigramSearchDuration)
	return w.inner.Search(q)
}

func (w *WrappedTrigramIndex) Flush() error {
	w.buf.reset()
	return w.traced("flush", w.inner.Flush)
}
func (w *WrappedTrigramIndex) Sync() error { return w.traced("sync", w.inner.Sync) }
func (w *WrappedTrigramIndex) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.inner.Close()
}
func (w *WrappedTrigramIndex) TrigramPostingCount() int { return w.inner.TrigramPostingCount() }

// PrimaryStore is the shape of pindex.PrimaryIndex the wrapper
// targets.
type PrimaryStore interface {
	Insert(document.ValidatedPath, document.ValidatedDocumentId) error
	Delete(document.ValidatedPath) error
	Lookup(string) (document.ValidatedDocumentId, error)
	Search(string) ([]document.ValidatedDocumentId, error)
	Flush() error
	Sync() error
	Close() error
	PrimaryIndexStats() (int, int)
}

var _ PrimaryStore = (*pindex.PrimaryIndex)(nil)

// WrappedPrimaryIndex composes Traced/Validated/Retryable/Buffered
// around a PrimaryStore.
type WrappedPrimaryIndex struct {
	inner   PrimaryStore
	traceID string
	policy  RetryPolicy
	buf     *indexBuffer
}

func NewWrappedPrimaryIndex(base PrimaryStore, opts StorageOptions) *WrappedPrimaryIndex {
	if opts.RetryPolicy.MaxAttempts == 0 {
		opts.RetryPolicy = DefaultRetryPolicy
	}
	return &WrappedPrimaryIndex{
		inner:   base,
		traceID: uuid.NewString(),
		policy:  opts.RetryPolicy,
		buf:     newIndexBuffer(opts.BufferedOptions),
	}
}

func (w *WrappedPrimaryIndex) traced(op string, fn func() error) error {
	timer := metrics.NewTimer()
	logger := log.WithTraceID(w.traceID).With().Str("op", op).Str("component", "primary_index").Logger()
	err := retryDoErr(context.Background(), w.policy, op, fn)
	timer.ObserveDurationVec(metrics.TracedOperationDuration, "primary_index", op)
	if err != nil {
		err = kotaerr.WithTraceID(err, w.traceID)
		logger.Error().Err(err).Msg("operation failed")
	}
	return err
}

func (w *WrappedPrimaryIndex) Insert(path document.ValidatedPath, id document.ValidatedDocumentId) error {
	if id.IsZero() {
		return kotaerr.NewInvalidInput("primary_index.insert", "document id must not be zero")
	}
	if _, err := document.NewValidatedPath(path.String()); err != nil {
		return err
	}
	err := w.traced("insert", func() error { return w.inner.Insert(path, id) })
	if err == nil && w.buf.trigger() {
		return w.Flush()
	}
	return err
}

func (w *WrappedPrimaryIndex) Delete(path document.ValidatedPath) error {
	err := w.traced("delete", func() error { return w.inner.Delete(path) })
	if err == nil && w.buf.trigger() {
		return w.Flush()
	}
	return err
}

func (w *WrappedPrimaryIndex) Lookup(path string) (document.ValidatedDocumentId, error) {
	return retryDo(context.Background(), w.policy, "lookup", func() (document.ValidatedDocumentId, error) {
		return w.inner.Lookup(path)
	})
}

func (w *WrappedPrimaryIndex) Search(query string) ([]document.ValidatedDocumentId, error) {
	return retryDo(context.Background(), w.policy, "search", func() ([]document.ValidatedDocumentId, error) {
		return w.inner.Search(query)
	})
}

func (w *WrappedPrimaryIndex) Flush() error {
	w.buf.reset()
	return w.traced("flush", w.inner.Flush)
}
func (w *WrappedPrimaryIndex) Sync() error  { return w.traced("sync", w.inner.Sync) }
func (w *WrappedPrimaryIndex) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.inner.Close()
}
func (w *WrappedPrimaryIndex) PrimaryIndexStats() (int, int) { return w.inner.PrimaryIndexStats() }

// indexBuffer is the Buffered layer's item-count trigger for indices:
// unlike BufferedStorage, index mutations carry no byte payload worth
// batching on size, only a periodic-flush-on-count policy.
type indexBuffer struct {
	maxItems int
	count    int
}

func newIndexBuffer(opts BufferedOptions) *indexBuffer {
	max := opts.MaxItems
	if max <= 0 {
		max = DefaultBufferedOptions.MaxItems
	}
	return &indexBuffer{maxItems: max}
}

func (b *indexBuffer) trigger() bool {
	b.count++
	if b.count >= b.maxItems {
		return true
	}
	return false
}

func (b *indexBuffer) reset() { b.count = 0 }
