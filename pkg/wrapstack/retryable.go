package wrapstack

import (
	"context"

	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/storage"
)

// RetryableStorage catches IO(transient) errors and retries with
// exponential backoff + jitter (spec §4.6 "Retryable"). Every other
// kind — validation, not-found, duplicate, IO(permanent) — passes
// through on the first attempt.
type RetryableStorage struct {
	inner  storage.Store
	policy RetryPolicy
}

func NewRetryableStorage(inner storage.Store, policy RetryPolicy) *RetryableStorage {
	return &RetryableStorage{inner: inner, policy: policy}
}

func (r *RetryableStorage) Insert(doc document.Document) error {
	return retryDoErr(context.Background(), r.policy, "insert", func() error { return r.inner.Insert(doc) })
}

func (r *RetryableStorage) Get(id document.ValidatedDocumentId) (document.Document, error) {
	return retryDo(context.Background(), r.policy, "get", func() (document.Document, error) { return r.inner.Get(id) })
}

func (r *RetryableStorage) Update(doc document.Document) error {
	return retryDoErr(context.Background(), r.policy, "update", func() error { return r.inner.Update(doc) })
}

func (r *RetryableStorage) Delete(id document.ValidatedDocumentId) error {
	return retryDoErr(context.Background(), r.policy, "delete", func() error { return r.inner.Delete(id) })
}

func (r *RetryableStorage) ListAll() ([]document.Document, error) {
	return retryDo(context.Background(), r.policy, "list_all", func() ([]document.Document, error) { return r.inner.ListAll() })
}

func (r *RetryableStorage) Flush() error {
	return retryDoErr(context.Background(), r.policy, "flush", r.inner.Flush)
}

func (r *RetryableStorage) Sync() error {
	return retryDoErr(context.Background(), r.policy, "sync", r.inner.Sync)
}

func (r *RetryableStorage) Close() error { return r.inner.Close() }
