package trigram

import (
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/metrics"
	"github.com/kotadb/kotadb/pkg/walog"
)

// defaultCompactionThreshold is the tombstone-density fraction that
// triggers a background compaction (spec §4.5 "binary variant defers
// physical removal to a background compaction pass").
const defaultCompactionThreshold = 0.3

// BinaryIndex is the compact trigram index variant: deletes only
// tombstone their id instead of rewriting every posting list
// immediately, and the committed state is periodically exported to a
// memory-mapped KOTRG sidecar file (sidecar.go) for cold-scan
// diagnostics. Like TextIndex, the in-memory postings/trigrams/stats
// maps rebuilt from the WAL on Open remain the authoritative state;
// the sidecar is an accelerator, never the sole record (the same
// relationship pkg/pindex's page export has to its own WAL).
type BinaryIndex struct {
	mu       sync.RWMutex
	wal      *walog.WAL
	postings map[string][]Posting
	stats    map[uuid.UUID]docStats
	trigrams map[uuid.UUID][]string
	txSeq    uint64

	tombstoned     map[uuid.UUID]bool
	tombstoneCount int
	totalDocs      int
	compacting     bool

	dir                 string
	CompactionThreshold float64
	AggressiveFallback  bool
}

// OpenBinary opens or creates a binary trigram index rooted at dir.
func OpenBinary(dir string) (*BinaryIndex, error) {
	w, err := walog.Open(filepath.Join(dir, "wal"), "trigram-binary.wal", walog.DefaultCheckpointPolicy)
	if err != nil {
		return nil, err
	}
	idx := &BinaryIndex{
		wal:                 w,
		postings:            make(map[string][]Posting),
		stats:               make(map[uuid.UUID]docStats),
		trigrams:            make(map[uuid.UUID][]string),
		tombstoned:          make(map[uuid.UUID]bool),
		dir:                 dir,
		CompactionThreshold: defaultCompactionThreshold,
	}
	if err := idx.recover(); err != nil {
		w.Close()
		return nil, err
	}
	idx.updateStatsLocked()
	return idx, nil
}

func (idx *BinaryIndex) recover() error {
	_, err := idx.wal.Replay(func(f walog.Frame) error {
		switch f.Kind {
		case walog.Insert, walog.Update:
			rec, ok := decodeWALRecord(f.Payload)
			if !ok {
				return nil
			}
			idx.applyInsertLocked(rec.id, rec.text)
		case walog.Delete:
			id, ok := decodeWALDeleteID(f.Payload)
			if !ok {
				return nil
			}
			idx.applyTombstoneLocked(id)
		}
		return nil
	})
	return err
}

func (idx *BinaryIndex) nextTx() uint64 {
	idx.txSeq++
	return idx.txSeq
}

// Insert indexes text under id. Re-inserting a previously tombstoned
// or previously indexed id clears its tombstone and rewrites its
// posting entries in place, the same as TextIndex.
func (idx *BinaryIndex) Insert(id document.ValidatedDocumentId, text string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	payload := encodeWALRecord(walRecord{id: id.UUID(), text: text})
	if _, err := idx.wal.Append(idx.nextTx(), walog.Insert, payload); err != nil {
		return err
	}
	if err := idx.wal.Sync(); err != nil {
		return err
	}
	idx.applyInsertLocked(id.UUID(), text)
	idx.updateStatsLocked()
	return nil
}

func (idx *BinaryIndex) applyInsertLocked(id uuid.UUID, text string) {
	if idx.tombstoned[id] {
		delete(idx.tombstoned, id)
		idx.tombstoneCount--
	}
	if _, existed := idx.trigrams[id]; !existed {
		idx.totalDocs++
	}
	idx.removePostingsLocked(id)

	norm := normalize(text)
	trigramList := extractTrigrams(norm)
	freq := make(map[string]int, len(trigramList))
	for _, t := range trigramList {
		freq[t]++
	}
	unique := make([]string, 0, len(freq))
	for t, f := range freq {
		idx.postings[t] = append(idx.postings[t], Posting{ID: id, Freq: uint16(f)})
		unique = append(unique, t)
	}
	idx.trigrams[id] = unique
	idx.stats[id] = docStats{wordCount: wordCount(norm), preview: preview(text, 200)}
}

// Delete marks id tombstoned without touching its posting entries
// (spec §4.5 binary variant). Deleting an absent id is a no-op
// success. Crossing CompactionThreshold queues a background
// compaction.
func (idx *BinaryIndex) Delete(id document.ValidatedDocumentId) error {
	idx.mu.Lock()

	payload := encodeWALDeleteID(id.UUID())
	if _, err := idx.wal.Append(idx.nextTx(), walog.Delete, payload); err != nil {
		idx.mu.Unlock()
		return err
	}
	if err := idx.wal.Sync(); err != nil {
		idx.mu.Unlock()
		return err
	}
	idx.applyTombstoneLocked(id.UUID())
	idx.updateStatsLocked()
	needsCompaction := idx.shouldCompactLocked()
	idx.mu.Unlock()

	if needsCompaction {
		go idx.compact()
	}
	return nil
}

func (idx *BinaryIndex) applyTombstoneLocked(id uuid.UUID) {
	if _, ok := idx.trigrams[id]; !ok {
		return
	}
	if !idx.tombstoned[id] {
		idx.tombstoned[id] = true
		idx.tombstoneCount++
	}
}

func (idx *BinaryIndex) shouldCompactLocked() bool {
	if idx.compacting || idx.totalDocs == 0 {
		return false
	}
	return float64(idx.tombstoneCount)/float64(idx.totalDocs) >= idx.CompactionThreshold
}

// compact physically rewrites postings/trigrams/stats to drop every
// tombstoned id, then clears the tombstone set. It runs as a
// background goroutine triggered from Delete; callers that need a
// synchronous compaction use CompactNow, and Flush (and so Close) runs
// the same compaction inline.
func (idx *BinaryIndex) compact() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.compactLocked()
}

// CompactNow runs compaction synchronously regardless of tombstone
// density. Flush runs the same compaction (compactLocked) before
// exporting the sidecar so the on-disk file never carries tombstoned
// postings.
func (idx *BinaryIndex) CompactNow() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.compactLocked()
}

func (idx *BinaryIndex) compactLocked() {
	if idx.compacting {
		return
	}
	idx.compacting = true
	defer func() { idx.compacting = false }()

	if idx.tombstoneCount == 0 {
		return
	}
	for id := range idx.tombstoned {
		idx.removePostingsLocked(id)
		delete(idx.stats, id)
		delete(idx.trigrams, id)
		idx.totalDocs--
	}
	idx.tombstoned = make(map[uuid.UUID]bool)
	idx.tombstoneCount = 0
}

func (idx *BinaryIndex) removePostingsLocked(id uuid.UUID) {
	for _, t := range idx.trigrams[id] {
		list := idx.postings[t]
		for i, p := range list {
			if p.ID == id {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(idx.postings, t)
		} else {
			idx.postings[t] = list
		}
	}
}

// Search resolves query against the index, skipping tombstoned ids
// that have not yet been physically compacted away.
func (idx *BinaryIndex) Search(query Query) []uuid.UUID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := extractTrigrams(normalize(query.Text()))
	if len(terms) == 0 {
		return nil
	}
	unique := dedupe(terms)

	cands := make(map[uuid.UUID]*candidate)
	for _, t := range unique {
		for _, p := range idx.postings[t] {
			if idx.tombstoned[p.ID] {
				continue
			}
			c, ok := cands[p.ID]
			if !ok {
				c = &candidate{id: p.ID}
				cands[p.ID] = c
			}
			c.hits++
			c.termFreq += int(p.Freq)
		}
	}

	ranked := rankCandidates(cands, idx.stats, len(unique), idx.AggressiveFallback)
	limit := query.Limit
	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]uuid.UUID, limit)
	for i := 0; i < limit; i++ {
		out[i] = ranked[i].id
	}
	return out
}

// sidecarPath returns the location of the mmap-backed KOTRG export.
func (idx *BinaryIndex) sidecarPath() string {
	return filepath.Join(idx.dir, "postings.kotrg")
}

// Flush compacts away any pending tombstones, writes the current
// postings to the KOTRG sidecar file, and checkpoints the WAL.
func (idx *BinaryIndex) Flush() error {
	idx.mu.Lock()
	idx.compactLocked()
	snapshot := make(map[string][]Posting, len(idx.postings))
	for t, list := range idx.postings {
		snapshot[t] = append([]Posting(nil), list...)
	}
	idx.mu.Unlock()

	if err := writeSidecar(idx.sidecarPath(), snapshot); err != nil {
		return err
	}
	return idx.wal.Checkpoint()
}

// Sync fsyncs the WAL without checkpointing or exporting the sidecar.
func (idx *BinaryIndex) Sync() error { return idx.wal.Sync() }

// Close flushes and closes the index.
func (idx *BinaryIndex) Close() error {
	if err := idx.Flush(); err != nil {
		return err
	}
	return idx.wal.Close()
}

// VerifySidecar memory-maps the last exported sidecar file and
// validates its magic and that its directory fits within the file,
// returning the number of trigrams it describes. The posting runs are
// not checked. It is a read-only integrity check; it does not feed the
// live index.
func (idx *BinaryIndex) VerifySidecar() (trigramCount int, err error) {
	data, dir, err := mmapSidecar(idx.sidecarPath())
	if err != nil {
		return 0, err
	}
	defer munmapSidecar(data)
	return len(dir), nil
}

// TrigramPostingCount returns the number of live (non-tombstoned)
// postings, satisfying pkg/metrics.StatsSource.
func (idx *BinaryIndex) TrigramPostingCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.postingCountLocked()
}

func (idx *BinaryIndex) postingCountLocked() int {
	n := 0
	for _, list := range idx.postings {
		for _, p := range list {
			if !idx.tombstoned[p.ID] {
				n++
			}
		}
	}
	return n
}

func (idx *BinaryIndex) updateStatsLocked() {
	metrics.TrigramPostingsTotal.Set(float64(idx.postingCountLocked()))
}
