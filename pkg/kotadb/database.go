// Package kotadb wires storage, the primary index, the trigram index,
// and coordinated deletion into a single handle, applying the fixed
// wrapper-stack composition (spec §4.6) uniformly across all three.
package kotadb

import (
	"path/filepath"

	"github.com/kotadb/kotadb/pkg/config"
	"github.com/kotadb/kotadb/pkg/coordinator"
	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/kotaerr"
	"github.com/kotadb/kotadb/pkg/metrics"
	"github.com/kotadb/kotadb/pkg/pindex"
	"github.com/kotadb/kotadb/pkg/sanitize"
	"github.com/kotadb/kotadb/pkg/storage"
	"github.com/kotadb/kotadb/pkg/trigram"
	"github.com/kotadb/kotadb/pkg/wrapstack"
)

// Database is KotaDB's single entry point: every operation routes
// through the wrapped storage/primary/trigram handles and, for
// deletion, the coordinator.
type Database struct {
	cfg config.Config

	storage storage.Store
	primary *wrapstack.WrappedPrimaryIndex
	trigram *wrapstack.WrappedTrigramIndex
	del     *coordinator.CoordinatedDeletion

	metricsCollector *metrics.Collector
}

// Open constructs a Database rooted at cfg.DataDir, selecting the
// trigram index variant and wrapper-stack tuning cfg specifies.
func Open(cfg config.Config) (*Database, error) {
	storageOpts := wrapstack.StorageOptions{
		CacheCapacity: cfg.CacheCapacity,
		RetryPolicy: wrapstack.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
		BufferedOptions: wrapstack.DefaultBufferedOptions,
	}

	baseStore, err := storage.Open(filepath.Join(cfg.DataDir, "documents"))
	if err != nil {
		return nil, err
	}
	wrappedStorage := wrapstack.NewStorageStack(baseStore, storageOpts)

	var pindexOpts []pindex.Option
	if cfg.UseBinaryIndex {
		pindexOpts = append(pindexOpts, pindex.WithBoltPages())
	}
	basePrimary, err := pindex.Open(filepath.Join(cfg.DataDir, "pindex"), pindexOpts...)
	if err != nil {
		wrappedStorage.Close()
		return nil, err
	}
	wrappedPrimary := wrapstack.NewWrappedPrimaryIndex(basePrimary, storageOpts)

	trigramStore, err := openTrigramStore(cfg)
	if err != nil {
		wrappedStorage.Close()
		wrappedPrimary.Close()
		return nil, err
	}
	wrappedTrigram := wrapstack.NewWrappedTrigramIndex(trigramStore, storageOpts)

	db := &Database{
		cfg:     cfg,
		storage: wrappedStorage,
		primary: wrappedPrimary,
		trigram: wrappedTrigram,
		del:     coordinator.New(wrappedStorage, wrappedPrimary, wrappedTrigram),
	}
	db.metricsCollector = metrics.NewCollector(db)
	db.metricsCollector.Start()
	return db, nil
}

func openTrigramStore(cfg config.Config) (wrapstack.TrigramStore, error) {
	dir := filepath.Join(cfg.DataDir, "trigram")
	if cfg.UseBinaryIndex {
		idx, err := trigram.OpenBinary(dir)
		if err != nil {
			return nil, err
		}
		idx.AggressiveFallback = cfg.AggressiveTrigramThresholds
		return idx, nil
	}
	idx, err := trigram.Open(dir)
	if err != nil {
		return nil, err
	}
	idx.AggressiveFallback = cfg.AggressiveTrigramThresholds
	return idx, nil
}

func (db *Database) sanitizeOpts() sanitize.Options {
	return sanitize.Options{StrictMode: db.cfg.StrictSanitization, MaxTerms: db.cfg.MaxQueryTerms}
}

// Insert stores doc and indexes it by path and content. Each store
// commits independently through its own WAL; Insert is not
// coordinated the way Delete is (spec §4.7 scopes coordination to
// deletion specifically), since a document visible in storage but not
// yet indexed is a transient state every reader already tolerates
// between the three Insert calls, not a corruption.
func (db *Database) Insert(doc document.Document) error {
	if err := db.storage.Insert(doc); err != nil {
		return err
	}
	if err := db.primary.Insert(doc.Path(), doc.ID()); err != nil {
		return err
	}
	return db.trigram.Insert(doc.ID(), indexableText(doc))
}

// Get returns the document stored under id.
func (db *Database) Get(id document.ValidatedDocumentId) (document.Document, error) {
	return db.storage.Get(id)
}

// Delete runs coordinated deletion across all three stores.
func (db *Database) Delete(id document.ValidatedDocumentId) error {
	return db.del.Delete(id)
}

// Search runs raw through the standard sanitization pipeline, then
// the trigram index, resolving hits back to full documents via
// storage. Hits whose document has since been removed (but not yet
// compacted out of the trigram index) are silently skipped. A literal
// "*" query bypasses the trigram index entirely (its postings are
// keyed on alphanumeric trigrams and can never match "*") and instead
// returns up to limit documents directly from storage.
func (db *Database) Search(raw string, limit int) ([]document.Document, error) {
	query, err := document.NewValidatedSearchQuery(raw, db.sanitizeOpts())
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = sanitize.DefaultMaxTerms
	}

	if query.IsWildcard() {
		return db.wildcardResults(limit)
	}

	ids := db.trigram.Search(trigram.Query{Terms: query.Terms(), Limit: limit})

	docs := make([]document.Document, 0, len(ids))
	for _, rawID := range ids {
		if len(docs) >= limit {
			break
		}
		id, err := document.NewValidatedDocumentId(rawID)
		if err != nil {
			continue
		}
		doc, err := db.storage.Get(id)
		if err != nil {
			if kind, ok := kotaerr.KindOf(err); ok && kind == kotaerr.NotFound {
				continue
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// wildcardResults returns up to limit documents straight from storage,
// for the explicit "*" query spec §4.2 step 9 requires to always
// succeed rather than fail the "empty after sanitization" check.
func (db *Database) wildcardResults(limit int) ([]document.Document, error) {
	all, err := db.storage.ListAll()
	if err != nil {
		return nil, err
	}
	if limit > len(all) {
		limit = len(all)
	}
	return all[:limit], nil
}

// SearchPath runs a path-aware sanitization pass, then a glob scan
// over the primary index, resolving hits back to full documents.
func (db *Database) SearchPath(pattern string) ([]document.Document, error) {
	sanitized, err := sanitize.SanitizePathAware(pattern, db.sanitizeOpts())
	if err != nil {
		return nil, err
	}
	ids, err := db.primary.Search(sanitized.Text)
	if err != nil {
		return nil, err
	}
	docs := make([]document.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := db.storage.Get(id)
		if err != nil {
			if kind, ok := kotaerr.KindOf(err); ok && kind == kotaerr.NotFound {
				continue
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Flush forces all three stores to flush their buffered writes.
func (db *Database) Flush() error {
	if err := db.storage.Flush(); err != nil {
		return err
	}
	if err := db.primary.Flush(); err != nil {
		return err
	}
	return db.trigram.Flush()
}

// Close flushes and releases every underlying store.
func (db *Database) Close() error {
	if db.metricsCollector != nil {
		db.metricsCollector.Stop()
	}
	errs := make([]error, 0, 3)
	errs = append(errs, db.trigram.Close())
	errs = append(errs, db.primary.Close())
	errs = append(errs, db.storage.Close())
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// DocumentCount implements metrics.StatsSource.
func (db *Database) DocumentCount() int {
	docs, err := db.storage.ListAll()
	if err != nil {
		return 0
	}
	return len(docs)
}

// PrimaryIndexStats implements metrics.StatsSource.
func (db *Database) PrimaryIndexStats() (entries int, height int) {
	return db.primary.PrimaryIndexStats()
}

// TrigramPostingCount implements metrics.StatsSource.
func (db *Database) TrigramPostingCount() int {
	return db.trigram.TrigramPostingCount()
}

func indexableText(doc document.Document) string {
	return doc.Title().String() + "\n" + string(doc.Content())
}

var _ metrics.StatsSource = (*Database)(nil)
