// Package coordinator implements CoordinatedDeletion (spec §4.7): the
// best-effort, rollback-journaled protocol for removing a document
// from all three stores it lives in.
package coordinator

import (
	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/kotaerr"
	"github.com/kotadb/kotadb/pkg/log"
	"github.com/kotadb/kotadb/pkg/metrics"
	"github.com/kotadb/kotadb/pkg/pindex"
	"github.com/kotadb/kotadb/pkg/storage"
	"github.com/kotadb/kotadb/pkg/trigram"
	"github.com/kotadb/kotadb/pkg/wrapstack"
)

var (
	_ Storage      = (storage.Store)(nil)
	_ Storage      = (*wrapstack.TracedStorage)(nil)
	_ PrimaryIndex = (*pindex.PrimaryIndex)(nil)
	_ PrimaryIndex = (*wrapstack.WrappedPrimaryIndex)(nil)
	_ TrigramIndex = (*trigram.TextIndex)(nil)
	_ TrigramIndex = (*trigram.BinaryIndex)(nil)
	_ TrigramIndex = (*wrapstack.WrappedTrigramIndex)(nil)
)

// Storage is the subset of the storage contract CoordinatedDeletion
// needs.
type Storage interface {
	Get(document.ValidatedDocumentId) (document.Document, error)
	Delete(document.ValidatedDocumentId) error
}

// PrimaryIndex is the subset of the primary index's contract
// CoordinatedDeletion needs.
type PrimaryIndex interface {
	Insert(document.ValidatedPath, document.ValidatedDocumentId) error
	Delete(document.ValidatedPath) error
}

// TrigramIndex is the subset of either trigram index variant's
// contract CoordinatedDeletion needs.
type TrigramIndex interface {
	Insert(document.ValidatedDocumentId, string) error
	Delete(document.ValidatedDocumentId) error
}

// CoordinatedDeletion removes a document from the trigram index, the
// primary index, and storage, in that order, with best-effort rollback
// on failure (spec §4.7).
type CoordinatedDeletion struct {
	storage Storage
	primary PrimaryIndex
	trigram TrigramIndex
}

// New builds a CoordinatedDeletion over the three already-wrapped
// store handles.
func New(storage Storage, primary PrimaryIndex, trigram TrigramIndex) *CoordinatedDeletion {
	return &CoordinatedDeletion{storage: storage, primary: primary, trigram: trigram}
}

// snapshot captures the minimum state needed to reconstruct a
// document's entry in the trigram and primary indices: its path (for
// the primary index key) and the title+content text that
// deterministically reproduces its trigram postings (for the trigram
// index). Both indices derive their entries from exactly this data on
// a normal Insert, so replaying it back through Insert on rollback
// reconstructs byte-identical state — a separately tracked list of
// trigrams would duplicate information already recoverable from the
// document the lookup in step 1 already had to fetch.
type snapshot struct {
	id   document.ValidatedDocumentId
	path document.ValidatedPath
	text string
}

func indexableText(doc document.Document) string {
	return doc.Title().String() + "\n" + string(doc.Content())
}

// Delete runs the coordinated-deletion protocol for id.
func (c *CoordinatedDeletion) Delete(id document.ValidatedDocumentId) error {
	doc, err := c.storage.Get(id)
	if err != nil {
		return err
	}
	snap := snapshot{id: id, path: doc.Path(), text: indexableText(doc)}

	if err := c.trigram.Delete(id); err != nil {
		return c.fail("trigram", err, snap, false, false)
	}
	if err := c.primary.Delete(snap.path); err != nil {
		return c.fail("primary", err, snap, true, false)
	}
	if err := c.storage.Delete(id); err != nil {
		return c.fail("storage", err, snap, true, true)
	}

	metrics.CoordinatedDeletionsTotal.WithLabelValues("success").Inc()
	return nil
}

// fail applies the rollback journal in reverse — re-inserting into
// every store that had already succeeded, in the opposite order they
// were deleted — then returns a CoordinationFailure naming the step
// that failed.
func (c *CoordinatedDeletion) fail(step string, cause error, snap snapshot, rollbackTrigram, rollbackPrimary bool) error {
	logger := log.WithOperation("coordinated_delete").With().Str("step", step).Str("document_id", snap.id.String()).Logger()

	if rollbackPrimary {
		if err := c.primary.Insert(snap.path, snap.id); err != nil {
			logger.Error().Err(err).Msg("rollback: failed to reinsert into primary index")
		}
	}
	if rollbackTrigram {
		if err := c.trigram.Insert(snap.id, snap.text); err != nil {
			logger.Error().Err(err).Msg("rollback: failed to reinsert into trigram index")
		}
	}

	metrics.CoordinatedRollbacksTotal.WithLabelValues(step).Inc()
	metrics.CoordinatedDeletionsTotal.WithLabelValues("failed").Inc()

	logger.Error().Err(cause).Msg("coordinated deletion failed, rollback applied")
	return kotaerr.NewCoordinationFailure("coordinated_delete", step, cause, snap.id.String())
}
