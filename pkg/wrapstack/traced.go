package wrapstack

import (
	"github.com/google/uuid"

	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/kotaerr"
	"github.com/kotadb/kotadb/pkg/log"
	"github.com/kotadb/kotadb/pkg/metrics"
	"github.com/kotadb/kotadb/pkg/storage"
)

// TracedStorage is the outermost layer of the storage wrapper stack: it
// assigns a per-handle trace id, logs and times every operation, and
// stamps that trace id onto any *kotaerr.Error that comes back (spec
// §4.6 "Traced").
type TracedStorage struct {
	inner   storage.Store
	handle  string
	logger  func() string
	traceID string
}

// NewTracedStorage wraps inner with a fresh per-handle trace id.
func NewTracedStorage(inner storage.Store) *TracedStorage {
	return &TracedStorage{inner: inner, traceID: uuid.NewString()}
}

func (t *TracedStorage) traced(op string, fn func() error) error {
	timer := metrics.NewTimer()
	logger := log.WithTraceID(t.traceID).With().Str("op", op).Logger()
	logger.Debug().Msg("operation start")

	err := fn()
	timer.ObserveDurationVec(metrics.TracedOperationDuration, "storage", op)
	if err != nil {
		err = kotaerr.WithTraceID(err, t.traceID)
		logger.Error().Err(err).Msg("operation failed")
		return err
	}
	logger.Debug().Msg("operation complete")
	return nil
}

func (t *TracedStorage) Insert(doc document.Document) error {
	return t.traced("insert", func() error { return t.inner.Insert(doc) })
}

func (t *TracedStorage) Get(id document.ValidatedDocumentId) (document.Document, error) {
	var out document.Document
	err := t.traced("get", func() error {
		var innerErr error
		out, innerErr = t.inner.Get(id)
		return innerErr
	})
	return out, err
}

func (t *TracedStorage) Update(doc document.Document) error {
	return t.traced("update", func() error { return t.inner.Update(doc) })
}

func (t *TracedStorage) Delete(id document.ValidatedDocumentId) error {
	return t.traced("delete", func() error { return t.inner.Delete(id) })
}

func (t *TracedStorage) ListAll() ([]document.Document, error) {
	var out []document.Document
	err := t.traced("list_all", func() error {
		var innerErr error
		out, innerErr = t.inner.ListAll()
		return innerErr
	})
	return out, err
}

func (t *TracedStorage) Flush() error { return t.traced("flush", t.inner.Flush) }
func (t *TracedStorage) Sync() error  { return t.traced("sync", t.inner.Sync) }
func (t *TracedStorage) Close() error { return t.traced("close", t.inner.Close) }

// TraceID returns the handle's trace id, mainly for tests and logging
// correlation at the call site.
func (t *TracedStorage) TraceID() string { return t.traceID }
