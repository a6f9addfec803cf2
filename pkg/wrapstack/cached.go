package wrapstack

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/google/uuid"

	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/metrics"
	"github.com/kotadb/kotadb/pkg/storage"
)

// DefaultCacheCapacity is spec §4.6's stated default LRU size.
const DefaultCacheCapacity = 1000

// CachedStorage is an LRU over document ids (spec §4.6 "Cached"),
// invalidated on insert/update/delete and recording hit/miss counters.
type CachedStorage struct {
	inner storage.Store
	cache *lru.Cache[uuid.UUID, document.Document]
}

// NewCachedStorage wraps inner with an LRU of the given capacity
// (spec §6.4 cache_capacity; 0 or negative falls back to
// DefaultCacheCapacity).
func NewCachedStorage(inner storage.Store, capacity int) *CachedStorage {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	cache, err := lru.New[uuid.UUID, document.Document](capacity)
	if err != nil {
		// Only returns an error for a non-positive size, already guarded above.
		panic(err)
	}
	return &CachedStorage{inner: inner, cache: cache}
}

func (c *CachedStorage) Insert(doc document.Document) error {
	if err := c.inner.Insert(doc); err != nil {
		return err
	}
	c.cache.Remove(doc.ID().UUID())
	return nil
}

func (c *CachedStorage) Get(id document.ValidatedDocumentId) (document.Document, error) {
	if doc, ok := c.cache.Get(id.UUID()); ok {
		metrics.CacheHitsTotal.WithLabelValues("hit").Inc()
		return doc, nil
	}
	metrics.CacheHitsTotal.WithLabelValues("miss").Inc()
	doc, err := c.inner.Get(id)
	if err != nil {
		return doc, err
	}
	c.cache.Add(id.UUID(), doc)
	return doc, nil
}

func (c *CachedStorage) Update(doc document.Document) error {
	if err := c.inner.Update(doc); err != nil {
		return err
	}
	c.cache.Remove(doc.ID().UUID())
	return nil
}

func (c *CachedStorage) Delete(id document.ValidatedDocumentId) error {
	if err := c.inner.Delete(id); err != nil {
		return err
	}
	c.cache.Remove(id.UUID())
	return nil
}

func (c *CachedStorage) ListAll() ([]document.Document, error) { return c.inner.ListAll() }
func (c *CachedStorage) Flush() error                          { return c.inner.Flush() }
func (c *CachedStorage) Sync() error                           { return c.inner.Sync() }
func (c *CachedStorage) Close() error                          { return c.inner.Close() }

// Len reports the number of documents currently cached, for tests and
// metrics.
func (c *CachedStorage) Len() int { return c.cache.Len() }
