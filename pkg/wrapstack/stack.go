package wrapstack

import "github.com/kotadb/kotadb/pkg/storage"

// StorageOptions configures the composed stack built by
// NewStorageStack.
type StorageOptions struct {
	CacheCapacity   int
	RetryPolicy     RetryPolicy
	BufferedOptions BufferedOptions
}

// DefaultStorageOptions mirrors the wrapper stack's stated defaults.
var DefaultStorageOptions = StorageOptions{
	CacheCapacity:   DefaultCacheCapacity,
	RetryPolicy:     DefaultRetryPolicy,
	BufferedOptions: DefaultBufferedOptions,
}

// NewStorageStack composes the fixed wrapper chain (spec §4.6):
//
//	Traced -> Validated -> Retryable -> Cached -> Buffered -> base
//
// and returns it as an opaque storage.Store, the module's equivalent
// of `create_wrapped_storage`. Every storage instance pkg/kotadb opens
// goes through this factory so CLI, background workers, and any future
// API surface all get the same guarantees.
func NewStorageStack(base storage.Store, opts StorageOptions) storage.Store {
	if opts.RetryPolicy.MaxAttempts == 0 {
		opts.RetryPolicy = DefaultRetryPolicy
	}
	if opts.CacheCapacity == 0 {
		opts.CacheCapacity = DefaultCacheCapacity
	}

	buffered := NewBufferedStorage(base, opts.BufferedOptions)
	cached := NewCachedStorage(buffered, opts.CacheCapacity)
	retryable := NewRetryableStorage(cached, opts.RetryPolicy)
	validated := NewValidatedStorage(retryable)
	traced := NewTracedStorage(validated)
	return traced
}
