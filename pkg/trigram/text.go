// Package trigram implements KotaDB's inverted trigram content index in
// two interchangeable variants — TextIndex (dense, in-memory, the
// authoritative implementation) and BinaryIndex (compact: deletes are
// tombstoned and compacted later, and Flush exports a sidecar file that
// is memory-mapped only for verification; its live postings are
// in-memory maps as well) — selected at database open time (spec §4.5). Both
// share the adaptive match-ratio ranking in ranking.go and each owns an
// independent pkg/walog instance for durability, exactly like the
// primary index does.
package trigram

import (
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/metrics"
	"github.com/kotadb/kotadb/pkg/walog"
)

// TextIndex is the dense in-memory trigram index.
type TextIndex struct {
	mu       sync.RWMutex
	wal      *walog.WAL
	postings map[string][]Posting
	stats    map[uuid.UUID]docStats
	trigrams map[uuid.UUID][]string // id -> its own trigram set, for delete/rewrite
	txSeq    uint64

	AggressiveFallback bool
}

// Open opens or creates a text trigram index rooted at dir, replaying
// its WAL to rebuild the in-memory postings.
func Open(dir string) (*TextIndex, error) {
	w, err := walog.Open(filepath.Join(dir, "wal"), "trigram.wal", walog.DefaultCheckpointPolicy)
	if err != nil {
		return nil, err
	}
	idx := &TextIndex{
		wal:      w,
		postings: make(map[string][]Posting),
		stats:    make(map[uuid.UUID]docStats),
		trigrams: make(map[uuid.UUID][]string),
	}
	if err := idx.recover(); err != nil {
		w.Close()
		return nil, err
	}
	idx.updateStatsLocked()
	return idx, nil
}

func (idx *TextIndex) recover() error {
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
			idx.applyDeleteLocked(id)
		}
		return nil
	})
	return err
}

func (idx *TextIndex) nextTx() uint64 {
	idx.txSeq++
	return idx.txSeq
}

// Insert indexes text (title and content already concatenated by the
// caller per spec §4.5 step 2) under id, replacing any prior entry for
// the same id.
func (idx *TextIndex) Insert(id document.ValidatedDocumentId, text string) error {
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

func (idx *TextIndex) applyInsertLocked(id uuid.UUID, text string) {
	idx.removePostingsLocked(id)

	norm := normalize(text)
	trigrams := extractTrigrams(norm)
	freq := make(map[string]int, len(trigrams))
	for _, t := range trigrams {
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

// Delete removes every posting referencing id (spec §4.5 "Deletion").
// Deleting an absent id is a no-op success.
func (idx *TextIndex) Delete(id document.ValidatedDocumentId) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	payload := encodeWALDeleteID(id.UUID())
	if _, err := idx.wal.Append(idx.nextTx(), walog.Delete, payload); err != nil {
		return err
	}
	if err := idx.wal.Sync(); err != nil {
		return err
	}
	idx.applyDeleteLocked(id.UUID())
	idx.updateStatsLocked()
	return nil
}

func (idx *TextIndex) applyDeleteLocked(id uuid.UUID) {
	idx.removePostingsLocked(id)
	delete(idx.stats, id)
	delete(idx.trigrams, id)
}

// removePostingsLocked rewrites every posting list id currently appears
// in, dropping its entry (spec §4.5 "every posting containing id is
// rewritten without it").
func (idx *TextIndex) removePostingsLocked(id uuid.UUID) {
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

// Search resolves query's trigrams against the index and returns
// matching document ids ranked per spec §4.5 step 5, truncated to
// query.Limit.
func (idx *TextIndex) Search(query Query) []uuid.UUID {
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

func dedupe(ts []string) []string {
	seen := make(map[string]bool, len(ts))
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Flush syncs the WAL and checkpoints it; the text index has no
// separate on-disk export (it is rebuilt by WAL replay on Open), unlike
// the binary variant's mmap sidecar.
func (idx *TextIndex) Flush() error {
	return idx.wal.Checkpoint()
}

// Sync fsyncs the WAL without checkpointing.
func (idx *TextIndex) Sync() error { return idx.wal.Sync() }

// Close flushes and closes the index.
func (idx *TextIndex) Close() error {
	if err := idx.Flush(); err != nil {
		return err
	}
	return idx.wal.Close()
}

// TrigramPostingCount returns the number of live postings across every
// trigram, satisfying pkg/metrics.StatsSource.
func (idx *TextIndex) TrigramPostingCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.postingCountLocked()
}

func (idx *TextIndex) postingCountLocked() int {
	n := 0
	for _, list := range idx.postings {
		n += len(list)
	}
	return n
}

func (idx *TextIndex) updateStatsLocked() {
	metrics.TrigramPostingsTotal.Set(float64(idx.postingCountLocked()))
}
