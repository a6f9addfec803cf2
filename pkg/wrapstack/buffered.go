package wrapstack

import (
	"os"
	"sync"
	"time"

	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/log"
	"github.com/kotadb/kotadb/pkg/metrics"
	"github.com/kotadb/kotadb/pkg/storage"
)

// BufferedOptions tunes the innermost wrapper layer's coalescing
// triggers (spec §4.6 "Buffered": item count, bytes, elapsed time).
type BufferedOptions struct {
	MaxItems    int
	MaxBytes    int
	MaxInterval time.Duration
}

// DefaultBufferedOptions mirrors the magnitude of the teacher's own
// batch-flush defaults: small enough that a demo workload still
// exercises a timed flush, large enough not to flush on every write.
var DefaultBufferedOptions = BufferedOptions{
	MaxItems:    64,
	MaxBytes:    1 << 20,
	MaxInterval: 2 * time.Second,
}

type dirtyOp struct {
	kind string // "insert", "update", "delete"
	doc  document.Document
	id   document.ValidatedDocumentId
}

// BufferedStorage is the base-facing wrapper: every write reaches the
// base store synchronously and is then recorded in a dirty queue; the
// queue defers only the base store's Flush, which runs on whichever
// trigger fires first. Reads (Get/ListAll) pass straight through to
// the base store, so a read always observes earlier writes immediately.
//
// The background flusher is disabled automatically under CI
// (CI/GITHUB_ACTIONS set), matching spec §6.4's ci_mode.
type BufferedStorage struct {
	inner storage.Store
	opts  BufferedOptions

	mu        sync.Mutex
	queue     []dirtyOp
	queuedLen int

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBufferedStorage wraps inner with a dirty queue using opts'
// triggers, starting a background flusher goroutine unless ci_mode is
// detected.
func NewBufferedStorage(inner storage.Store, opts BufferedOptions) *BufferedStorage {
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultBufferedOptions.MaxItems
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultBufferedOptions.MaxBytes
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = DefaultBufferedOptions.MaxInterval
	}
	b := &BufferedStorage{inner: inner, opts: opts, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
	if !ciMode() {
		go b.backgroundFlusher()
	} else {
		close(b.doneCh)
	}
	return b
}

// ciMode detects spec §6.4's ci_mode condition.
func ciMode() bool {
	return os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != ""
}

func (b *BufferedStorage) backgroundFlusher() {
	defer close(b.doneCh)
	ticker := time.NewTicker(b.opts.MaxInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				log.WithOperation("buffered.flush").Error().Err(err).Msg("timed flush failed")
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *BufferedStorage) enqueue(op dirtyOp, size int) error {
	b.mu.Lock()
	b.queue = append(b.queue, op)
	b.queuedLen += size
	trigger := len(b.queue) >= b.opts.MaxItems || b.queuedLen >= b.opts.MaxBytes
	metrics.BufferedQueueDepth.Set(float64(len(b.queue)))
	b.mu.Unlock()

	if trigger {
		return b.flushTrigger("threshold")
	}
	return nil
}

func (b *BufferedStorage) Insert(doc document.Document) error {
	if err := b.inner.Insert(doc); err != nil {
		return err
	}
	return b.enqueue(dirtyOp{kind: "insert", doc: doc}, len(doc.Content()))
}

func (b *BufferedStorage) Get(id document.ValidatedDocumentId) (document.Document, error) {
	return b.inner.Get(id)
}

func (b *BufferedStorage) Update(doc document.Document) error {
	if err := b.inner.Update(doc); err != nil {
		return err
	}
	return b.enqueue(dirtyOp{kind: "update", doc: doc}, len(doc.Content()))
}

func (b *BufferedStorage) Delete(id document.ValidatedDocumentId) error {
	if err := b.inner.Delete(id); err != nil {
		return err
	}
	return b.enqueue(dirtyOp{kind: "delete", id: id}, 0)
}

func (b *BufferedStorage) ListAll() ([]document.Document, error) { return b.inner.ListAll() }

// Flush drains the dirty queue (the durability work already happened
// synchronously per-op against the base store; the queue only tracks
// what is pending a base-store Flush) and flushes the base store.
func (b *BufferedStorage) Flush() error { return b.flushTrigger("explicit") }

func (b *BufferedStorage) flushTrigger(trigger string) error {
	b.mu.Lock()
	n := len(b.queue)
	b.queue = b.queue[:0]
	b.queuedLen = 0
	b.mu.Unlock()

	metrics.BufferedQueueDepth.Set(0)
	if n > 0 {
		metrics.BufferedFlushesTotal.WithLabelValues(trigger).Inc()
	}
	return b.inner.Flush()
}

func (b *BufferedStorage) Sync() error { return b.inner.Sync() }

func (b *BufferedStorage) Close() error {
	select {
	case <-b.doneCh:
	default:
		close(b.stopCh)
		<-b.doneCh
	}
	if err := b.Flush(); err != nil {
		return err
	}
	return b.inner.Close()
}

// QueueDepth reports the current dirty-queue length, for tests.
func (b *BufferedStorage) QueueDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
