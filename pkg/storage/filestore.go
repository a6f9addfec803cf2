package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/kotaerr"
	"github.com/kotadb/kotadb/pkg/log"
	"github.com/kotadb/kotadb/pkg/metrics"
	"github.com/kotadb/kotadb/pkg/walog"
)

const (
	documentsSubdir = "documents"
	metaSubdir      = "meta"
	walSubdir       = "wal"
	indicesSubdir   = "indices"
	walFileName     = "current.wal"
)

// FileStore is the base of the wrapper stack's Storage side (spec §4.3):
// one payload file and one JSON sidecar per document, guarded by a single
// reader-writer lock, backed by an independent pkg/walog instance.
type FileStore struct {
	dir          string
	documentsDir string
	metaDir      string

	wal *walog.WAL

	mu   sync.RWMutex
	docs map[uuid.UUID]document.Metadata

	txSeq uint64
}

var _ Store = (*FileStore)(nil)

// Open creates (if necessary) documents/, meta/, wal/, indices/ under
// dir, loads the metadata cache, and replays the whole WAL from its
// first frame; checkpoint frames do not shorten the scan. Corrupt
// metadata sidecars are quarantined, not dropped.
func Open(dir string) (*FileStore, error) {
	documentsDir := filepath.Join(dir, documentsSubdir)
	metaDir := filepath.Join(dir, metaSubdir)
	walDir := filepath.Join(dir, walSubdir)
	indicesDir := filepath.Join(dir, indicesSubdir)

	for _, d := range []string{documentsDir, metaDir, walDir, indicesDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, kotaerr.NewIOPermanent("storage.Open", err)
		}
	}

	fs := &FileStore{
		dir:          dir,
		documentsDir: documentsDir,
		metaDir:      metaDir,
		docs:         make(map[uuid.UUID]document.Metadata),
	}

	if err := fs.loadMetadataCache(); err != nil {
		return nil, err
	}

	wal, err := walog.Open(walDir, walFileName, walog.DefaultCheckpointPolicy)
	if err != nil {
		return nil, err
	}
	fs.wal = wal

	if err := fs.recoverFromWAL(); err != nil {
		wal.Close()
		return nil, err
	}

	return fs, nil
}

func (fs *FileStore) loadMetadataCache() error {
	entries, err := os.ReadDir(fs.metaDir)
	if err != nil {
		return kotaerr.NewIOPermanent("storage.Open", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(fs.metaDir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			log.WithComponent("storage").Warn().Err(err).Str("file", path).Msg("failed to read metadata sidecar, quarantining")
			fs.quarantine(path)
			continue
		}
		var meta document.Metadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			log.WithComponent("storage").Warn().Err(err).Str("file", path).Msg("malformed metadata sidecar, quarantining")
			fs.quarantine(path)
			continue
		}
		fs.docs[meta.ID.UUID()] = meta
	}
	return nil
}

func (fs *FileStore) quarantine(path string) {
	if err := os.Rename(path, path+".corrupt"); err != nil {
		log.WithComponent("storage").Error().Err(err).Str("file", path).Msg("failed to quarantine corrupt sidecar")
	}
}

// recoverFromWAL replays every frame in the WAL from the start of the
// file, including frames written before a checkpoint, and re-applies any mutation whose effect is not already visible in the
// metadata cache: this is what makes scenario 6 ("WAL fsync succeeded,
// crash before metadata write") recoverable.
func (fs *FileStore) recoverFromWAL() error {
	_, err := fs.wal.Replay(func(frame walog.Frame) error {
		switch frame.Kind {
		case walog.Insert, walog.Update:
			rec, err := decodeRecord(frame.Payload)
			if err != nil {
				log.WithComponent("storage").Warn().Err(err).Msg("skipping unreadable WAL record during replay")
				return nil
			}
			fs.replayUpsert(rec)
		case walog.Delete:
			rec, err := decodeRecord(frame.Payload)
			if err != nil {
				return nil
			}
			id, err := uuid.Parse(rec.ID)
			if err != nil {
				return nil
			}
			fs.replayDelete(id)
		}
		return nil
	})
	return err
}

func (fs *FileStore) replayUpsert(rec record) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return
	}
	if existing, ok := fs.docs[id]; ok {
		if existing.Hash == hashHexOf(rec.Payload) {
			return // already consistent
		}
	}
	payloadPath := fs.payloadPath(id)
	if err := os.WriteFile(payloadPath, rec.Payload, 0o644); err != nil {
		log.WithComponent("storage").Error().Err(err).Str("id", rec.ID).Msg("failed to rewrite payload during WAL replay")
		return
	}
	meta := document.Metadata{
		PayloadPath: payloadPath,
		LogicalPath: rec.LogicalPath,
		Title:       rec.Title,
		Size:        int64(len(rec.Payload)),
		Created:     rec.Created,
		Updated:     rec.Updated,
		Hash:        hashHexOf(rec.Payload),
		Tags:        rec.Tags,
	}
	if err := meta.ID.UnmarshalText([]byte(rec.ID)); err != nil {
		return
	}
	fs.writeMetaFile(id, meta)
	fs.docs[id] = meta
}

func (fs *FileStore) replayDelete(id uuid.UUID) {
	delete(fs.docs, id)
	os.Remove(fs.payloadPath(id))
	os.Remove(fs.metaPath(id))
}

func (fs *FileStore) payloadPath(id uuid.UUID) string {
	return filepath.Join(fs.documentsDir, id.String()+".md")
}

func (fs *FileStore) metaPath(id uuid.UUID) string {
	return filepath.Join(fs.metaDir, id.String()+".json")
}

func (fs *FileStore) writeMetaFile(id uuid.UUID, meta document.Metadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return kotaerr.NewIOTransient("storage.writeMetaFile", err)
	}
	if err := os.WriteFile(fs.metaPath(id), raw, 0o644); err != nil {
		return kotaerr.NewIOTransient("storage.writeMetaFile", err)
	}
	return nil
}

// Insert implements Store.
func (fs *FileStore) Insert(doc document.Document) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := doc.ID().UUID()
	if _, exists := fs.docs[id]; exists {
		metrics.StorageOperationsTotal.WithLabelValues("insert", "duplicate").Inc()
		return kotaerr.NewDuplicateId("storage.Insert", doc.ID().String())
	}

	payload, err := fs.buildPayload(doc)
	if err != nil {
		return err
	}

	rec := toRecord(doc, payload)
	if _, err := fs.wal.Append(fs.nextTx(), walog.Insert, encodeRecord(rec)); err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("insert", "error").Inc()
		return err
	}
	if err := fs.wal.Sync(); err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("insert", "error").Inc()
		return err
	}

	if err := os.WriteFile(fs.payloadPath(id), payload, 0o644); err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("insert", "error").Inc()
		return kotaerr.NewIOTransient("storage.Insert", err, doc.ID().String())
	}
	meta := doc.ToMetadata(fs.payloadPath(id))
	meta.Size = int64(len(payload))
	meta.Hash = hashHexOf(payload)
	if err := fs.writeMetaFile(id, meta); err != nil {
		return err
	}
	fs.docs[id] = meta
	metrics.DocumentsTotal.Set(float64(len(fs.docs)))
	metrics.StorageOperationsTotal.WithLabelValues("insert", "ok").Inc()
	return nil
}

// buildPayload applies the frontmatter policy: prepend a normalized
// block when tags are present and the content has no well-formed header
// already.
func (fs *FileStore) buildPayload(doc document.Document) ([]byte, error) {
	content := doc.Content()
	if len(doc.Tags()) == 0 {
		return content, nil
	}
	if _, _, ok := splitFrontmatter(content); ok {
		return content, nil
	}
	tags := make([]string, 0, len(doc.Tags()))
	for _, t := range doc.Tags() {
		tags = append(tags, t.String())
	}
	fm := frontmatter{
		Title:   doc.Title().String(),
		Tags:    tags,
		Created: doc.Timestamps().Created().Millis(),
		Updated: doc.Timestamps().Updated().Millis(),
	}
	return withFrontmatter(fm, content)
}

func toRecord(doc document.Document, payload []byte) record {
	tags := make([]string, 0, len(doc.Tags()))
	for _, t := range doc.Tags() {
		tags = append(tags, t.String())
	}
	return record{
		ID:          doc.ID().String(),
		LogicalPath: doc.Path().String(),
		Title:       doc.Title().String(),
		Payload:     payload,
		Tags:        tags,
		Created:     doc.Timestamps().Created().Millis(),
		Updated:     doc.Timestamps().Updated().Millis(),
	}
}

func (fs *FileStore) nextTx() uint64 {
	return atomic.AddUint64(&fs.txSeq, 1)
}

// Get implements Store.
func (fs *FileStore) Get(id document.ValidatedDocumentId) (document.Document, error) {
	fs.mu.RLock()
	meta, ok := fs.docs[id.UUID()]
	fs.mu.RUnlock()
	if !ok {
		metrics.StorageOperationsTotal.WithLabelValues("get", "not_found").Inc()
		return document.Document{}, kotaerr.NewNotFound("storage.Get", id.String())
	}

	raw, err := os.ReadFile(meta.PayloadPath)
	if err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("get", "error").Inc()
		return document.Document{}, kotaerr.NewIOTransient("storage.Get", err, id.String())
	}

	body := raw
	tags := meta.Tags
	if fm, stripped, ok := splitFrontmatter(raw); ok {
		body = stripped
		if !sameTags(fm.Tags, meta.Tags) {
			log.WithDocumentID(id.String()).Warn().
				Strs("frontmatter_tags", fm.Tags).
				Strs("sidecar_tags", meta.Tags).
				Msg("frontmatter/sidecar tag mismatch, sidecar wins")
		}
	}

	if hashHexOf(raw) != meta.Hash {
		log.WithDocumentID(id.String()).Error().Msg("payload hash mismatch against metadata sidecar")
	}

	doc, err := rebuildDocument(meta, body, tags)
	if err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("get", "error").Inc()
		return document.Document{}, kotaerr.NewCorruption("storage.Get", "failed to rebuild document from metadata", err, id.String())
	}
	metrics.StorageOperationsTotal.WithLabelValues("get", "ok").Inc()
	return doc, nil
}

func sameTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, t := range a {
		seen[t] = true
	}
	for _, t := range b {
		if !seen[t] {
			return false
		}
	}
	return true
}

func rebuildDocument(meta document.Metadata, body []byte, tags []string) (document.Document, error) {
	path, err := document.NewValidatedPath(meta.LogicalPath)
	if err != nil {
		return document.Document{}, err
	}
	title, err := document.NewValidatedTitle(meta.Title)
	if err != nil {
		return document.Document{}, err
	}
	created, err := document.NewValidatedTimestamp(meta.Created)
	if err != nil {
		return document.Document{}, err
	}
	updated, err := document.NewValidatedTimestamp(meta.Updated)
	if err != nil {
		return document.Document{}, err
	}
	ts, err := document.NewTimestampPair(created, updated)
	if err != nil {
		return document.Document{}, err
	}
	validTags := make([]document.ValidatedTag, 0, len(tags))
	for _, t := range tags {
		vt, err := document.NewValidatedTag(t)
		if err == nil {
			validTags = append(validTags, vt)
		}
	}
	return document.NewBuilder().
		WithId(meta.ID).
		WithPath(path).
		WithTitle(title).
		WithContent(body).
		WithTags(validTags).
		WithTimestamps(ts).
		WithEmbedding(meta.Embedding).
		IntoPersisted()
}

// Update implements Store.
func (fs *FileStore) Update(doc document.Document) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := doc.ID().UUID()
	if _, exists := fs.docs[id]; !exists {
		metrics.StorageOperationsTotal.WithLabelValues("update", "not_found").Inc()
		return kotaerr.NewNotFound("storage.Update", doc.ID().String())
	}

	payload, err := fs.buildPayload(doc)
	if err != nil {
		return err
	}
	rec := toRecord(doc, payload)
	if _, err := fs.wal.Append(fs.nextTx(), walog.Update, encodeRecord(rec)); err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("update", "error").Inc()
		return err
	}
	if err := fs.wal.Sync(); err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("update", "error").Inc()
		return err
	}

	if err := os.WriteFile(fs.payloadPath(id), payload, 0o644); err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("update", "error").Inc()
		return kotaerr.NewIOTransient("storage.Update", err, doc.ID().String())
	}
	meta := doc.ToMetadata(fs.payloadPath(id))
	meta.Size = int64(len(payload))
	meta.Hash = hashHexOf(payload)
	if err := fs.writeMetaFile(id, meta); err != nil {
		return err
	}
	fs.docs[id] = meta
	metrics.StorageOperationsTotal.WithLabelValues("update", "ok").Inc()
	return nil
}

// Delete implements Store. A delete of an id with no live entry is a
// successful no-op (kotaerr table: NotFound is treated as success by
// delete), matching the idempotence spec §4.4 requires of the primary
// index too.
func (fs *FileStore) Delete(id document.ValidatedDocumentId) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	uid := id.UUID()
	if _, exists := fs.docs[uid]; !exists {
		metrics.StorageOperationsTotal.WithLabelValues("delete", "ok").Inc()
		return nil
	}

	rec := record{ID: id.String()}
	if _, err := fs.wal.Append(fs.nextTx(), walog.Delete, encodeRecord(rec)); err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("delete", "error").Inc()
		return err
	}
	if err := fs.wal.Sync(); err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("delete", "error").Inc()
		return err
	}

	os.Remove(fs.payloadPath(uid))
	os.Remove(fs.metaPath(uid))
	delete(fs.docs, uid)
	metrics.DocumentsTotal.Set(float64(len(fs.docs)))
	metrics.StorageOperationsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

// ListAll implements Store, returning a snapshot independent of
// concurrent writers: the id list is copied under the read lock, then
// each document is reconstructed without holding the lock.
func (fs *FileStore) ListAll() ([]document.Document, error) {
	fs.mu.RLock()
	ids := make([]document.ValidatedDocumentId, 0, len(fs.docs))
	for uid := range fs.docs {
		vid, _ := document.NewValidatedDocumentId(uid)
		ids = append(ids, vid)
	}
	fs.mu.RUnlock()

	docs := make([]document.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := fs.Get(id)
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Path().String() < docs[j].Path().String()
	})
	return docs, nil
}

// Flush implements Store: drains the WAL's write buffer without fsync.
func (fs *FileStore) Flush() error {
	return fs.wal.Flush()
}

// Sync implements Store: fsyncs the WAL. Payload/metadata files are
// opened, written, and closed per operation, so there are no pending
// file handles to sync separately.
func (fs *FileStore) Sync() error {
	return fs.wal.Sync()
}

// Close implements Store: final flush + sync, then drops the WAL handle.
func (fs *FileStore) Close() error {
	if err := fs.wal.Sync(); err != nil {
		return err
	}
	return fs.wal.Close()
}
