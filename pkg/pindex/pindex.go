// Package pindex implements KotaDB's primary index: an ordered,
// path-keyed lookup structure giving O(log n) point lookups of every
// live document path, plus glob scans that walk the tree in key order
// (spec §4.4). Ordering and in-memory balancing are delegated to google/btree;
// durability and crash recovery are its own pkg/walog instance, entirely
// independent of the storage layer's WAL. On Flush, the tree is exported
// as a run of fixed-size, checksummed pages (pkg/pindex/page.go) linked
// like the on-disk leaves spec §6.3 describes. Open and Search do not
// read these pages: Open rebuilds the tree from the WAL, and glob scans
// walk the in-memory tree.
package pindex

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/btree"

	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/kotaerr"
	"github.com/kotadb/kotadb/pkg/metrics"
	"github.com/kotadb/kotadb/pkg/walog"
)

// leafItem is one (path, id) entry, the unit stored in both the in-memory
// tree and the exported leaf pages.
type leafItem struct {
	path string
	id   [16]byte
}

func (a leafItem) Less(than btree.Item) bool {
	b := than.(leafItem)
	return a.path < b.path
}

// PrimaryIndex is an ordered, durable path -> document id index.
type PrimaryIndex struct {
	mu         sync.RWMutex
	tree       *btree.BTree
	wal        *walog.WAL
	dir        string
	txSeq      uint64
	lastHeight int
	bolt       *boltPageStore // nil unless opened with WithBoltPages
}

// btreeDegree matches google/btree's own recommended default; it governs
// internal node fan-out, not anything spec-visible.
const btreeDegree = 32

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	boltPages bool
}

// WithBoltPages persists exported leaf pages in a single go.etcd.io/bbolt
// file instead of one flat file per page. The page bytes themselves
// (KOTP header, checksum, linked-leaf layout) are identical either way;
// this only changes the container they're written into.
func WithBoltPages() Option {
	return func(o *openOptions) { o.boltPages = true }
}

// Open opens or creates a primary index rooted at dir, replaying its WAL
// to rebuild the in-memory tree.
func Open(dir string, opts ...Option) (*PrimaryIndex, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	walDir := filepath.Join(dir, "wal")
	w, err := walog.Open(walDir, "primary.wal", walog.DefaultCheckpointPolicy)
	if err != nil {
		return nil, err
	}
	idx := &PrimaryIndex{
		tree: btree.New(btreeDegree),
		wal:  w,
		dir:  dir,
	}
	if o.boltPages {
		bp, err := openBoltPageStore(filepath.Join(dir, "pages"))
		if err != nil {
			w.Close()
			return nil, err
		}
		idx.bolt = bp
	}
	if err := idx.recover(); err != nil {
		w.Close()
		if idx.bolt != nil {
			idx.bolt.close()
		}
		return nil, err
	}
	idx.updateStatsLocked()
	return idx, nil
}

func (idx *PrimaryIndex) recover() error {
	_, err := idx.wal.Replay(func(f walog.Frame) error {
		switch f.Kind {
		case walog.Insert, walog.Update:
			item, ok := decodeWALItem(f.Payload)
			if !ok {
				return nil // torn/malformed payload, skip rather than fail the whole replay
			}
			idx.tree.ReplaceOrInsert(item)
		case walog.Delete:
			path, ok := decodeWALPath(f.Payload)
			if !ok {
				return nil
			}
			idx.tree.Delete(leafItem{path: path})
		}
		return nil
	})
	return err
}

func (idx *PrimaryIndex) nextTx() uint64 {
	idx.txSeq++
	return idx.txSeq
}

// Insert adds or replaces the entry for path. Like the storage layer, the
// WAL append is synced before the in-memory tree is mutated, so a crash
// between the two leaves nothing to recover inconsistently: replay
// reapplies the same upsert idempotently.
func (idx *PrimaryIndex) Insert(path document.ValidatedPath, id document.ValidatedDocumentId) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	item := leafItem{path: path.String(), id: id.UUID()}
	payload := encodeWALItem(item)
	if _, err := idx.wal.Append(idx.nextTx(), walog.Insert, payload); err != nil {
		return err
	}
	if err := idx.wal.Sync(); err != nil {
		return err
	}
	idx.tree.ReplaceOrInsert(item)
	idx.updateStatsLocked()
	return nil
}

// Delete removes path's entry. Deleting an absent path is a no-op success,
// matching the storage layer's idempotent-delete policy.
func (idx *PrimaryIndex) Delete(path document.ValidatedPath) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	payload := []byte(path.String())
	if _, err := idx.wal.Append(idx.nextTx(), walog.Delete, payload); err != nil {
		return err
	}
	if err := idx.wal.Sync(); err != nil {
		return err
	}
	idx.tree.Delete(leafItem{path: path.String()})
	idx.updateStatsLocked()
	return nil
}

// Lookup returns the document id stored for an exact path, or a NotFound
// error.
func (idx *PrimaryIndex) Lookup(path string) (document.ValidatedDocumentId, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	found := idx.tree.Get(leafItem{path: path})
	if found == nil {
		return document.ValidatedDocumentId{}, kotaerr.NewNotFound("pindex.Lookup", path)
	}
	item := found.(leafItem)
	id, err := document.NewValidatedDocumentId(item.id)
	return id, err
}

// Search resolves a query against the index: an exact path for a plain
// query, or an in-order scan of every entry filtered by matchGlob when
// the query contains glob metacharacters (spec §4.4).
func (idx *PrimaryIndex) Search(query string) ([]document.ValidatedDocumentId, error) {
	if !isGlobPattern(query) {
		id, err := idx.Lookup(query)
		if err != nil {
			return nil, err
		}
		return []document.ValidatedDocumentId{id}, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var matches []document.ValidatedDocumentId
	idx.tree.Ascend(func(i btree.Item) bool {
		item := i.(leafItem)
		if matchGlob(query, item.path) {
			if id, err := document.NewValidatedDocumentId(item.id); err == nil {
				matches = append(matches, id)
			}
		}
		return true
	})
	return matches, nil
}

// Flush exports the tree as a checksummed, linked sequence of leaf pages
// under dir/pages, then checkpoints the WAL. This is the "rebuild from
// pages without replaying the whole WAL" fast path; Open still replays
// the WAL for correctness, pages are an accelerator a future version can
// use, not load-bearing for this one.
func (idx *PrimaryIndex) Flush() error {
	idx.mu.RLock()
	items := make([]leafItem, 0, idx.tree.Len())
	idx.tree.Ascend(func(i btree.Item) bool {
		items = append(items, i.(leafItem))
		return true
	})
	idx.mu.RUnlock()

	var err error
	if idx.bolt != nil {
		err = writeBoltPages(idx.bolt, items)
	} else {
		err = writePages(filepath.Join(idx.dir, "pages"), items)
	}
	if err != nil {
		return err
	}
	return idx.wal.Checkpoint()
}

// Sync fsyncs the underlying WAL without exporting pages.
func (idx *PrimaryIndex) Sync() error { return idx.wal.Sync() }

// Close flushes and closes the index.
func (idx *PrimaryIndex) Close() error {
	if err := idx.Flush(); err != nil {
		return err
	}
	if idx.bolt != nil {
		if err := idx.bolt.close(); err != nil {
			return err
		}
	}
	return idx.wal.Close()
}

// Len returns the number of live entries.
func (idx *PrimaryIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}

// Height estimates the tree's depth for observability (kotadb_primary_index_height),
// derived from its size and the btree's fan-out since google/btree doesn't
// expose a depth directly.
func (idx *PrimaryIndex) Height() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.heightLocked()
}

// PrimaryIndexStats implements pkg/metrics.StatsSource's index half.
func (idx *PrimaryIndex) PrimaryIndexStats() (entries int, height int) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len(), idx.heightLocked()
}

// updateStatsLocked refreshes the entries/height gauges and, as a proxy
// for google/btree's hidden internal rebalancing, counts a "split" every
// time the estimated height grows: that's the observable event a real
// B+ tree split would also produce.
func (idx *PrimaryIndex) updateStatsLocked() {
	metrics.PrimaryIndexEntries.Set(float64(idx.tree.Len()))
	height := idx.heightLocked()
	if height > idx.lastHeight {
		metrics.PrimaryIndexSplits.Add(float64(height - idx.lastHeight))
	}
	idx.lastHeight = height
	metrics.PrimaryIndexHeight.Set(float64(height))
}

func (idx *PrimaryIndex) heightLocked() int {
	n := idx.tree.Len()
	if n == 0 {
		return 0
	}
	height := 1
	for size := btreeDegree; size < n; size *= btreeDegree {
		height++
	}
	return height
}

type builtPage struct {
	body  []byte
	count int
}

// buildPages sorts items by path and splits them into PageSize-bounded
// leaf page bodies, the shared step both the flat-file and bbolt page
// backends serialize from.
func buildPages(items []leafItem) ([]builtPage, error) {
	sort.Slice(items, func(i, j int) bool { return items[i].path < items[j].path })

	capacity := PageSize - pageHeaderLen
	var pages []builtPage
	for start := 0; start < len(items); {
		body, n := encodeItems(items[start:], capacity)
		if n == 0 {
			// A single item too large for one page on its own; spec
			// bounds path length well under a page, so this is not
			// reachable in practice, but fail loudly rather than loop.
			return nil, kotaerr.NewInvalidInput("pindex.buildPages", "item too large to fit in one page")
		}
		pages = append(pages, builtPage{body: body, count: n})
		start += n
	}
	if len(pages) == 0 {
		pages = append(pages, builtPage{body: nil, count: 0})
	}
	return pages, nil
}

// writePages serializes items into PageSize leaf pages under dir, named
// page-0000.bin, page-0001.bin, ..., each pointing at the next by index;
// nextPage == 0 on the final page means "no next page" (the first page
// is reserved as page 0, so a real first page's "no predecessor" is
// implicit rather than encoded).
func writePages(dir string, items []leafItem) error {
	pages, err := buildPages(items)
	if err != nil {
		return err
	}
	if err := ensureDir(dir); err != nil {
		return err
	}
	for i, b := range pages {
		buf := encodePage(pageFor(i, len(pages), b))
		if err := writePageFile(dir, i, buf); err != nil {
			return err
		}
	}
	return nil
}

// writeBoltPages is writePages' counterpart for the bbolt-backed store:
// same page bytes, written as bucket values instead of files. Trailing
// pages from a previous, longer export are deleted so a shrinking index
// doesn't leave an orphaned tail a scan would wrongly follow.
func writeBoltPages(store *boltPageStore, items []leafItem) error {
	pages, err := buildPages(items)
	if err != nil {
		return err
	}
	for i, b := range pages {
		buf := encodePage(pageFor(i, len(pages), b))
		if err := store.put(i, buf); err != nil {
			return err
		}
	}
	return store.deleteFrom(len(pages))
}

func pageFor(i, total int, b builtPage) page {
	next := uint64(0)
	if i+1 < total {
		next = uint64(i + 1)
	}
	return page{kind: pageKindLeaf, lsn: uint64(i), itemCount: uint32(b.count), nextPage: next, body: b.body}
}
