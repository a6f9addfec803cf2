/*
Package storage implements KotaDB's file-backed document storage engine.

The storage package owns the on-disk representation of every document: a
payload file, a JSON metadata sidecar, and an append-only write-ahead log
that makes both recoverable after a crash. It is the base layer beneath
the wrapper stack (pkg/wrapstack); nothing above it talks to the
filesystem directly.

# Architecture

	┌──────────────────── FILE STORAGE ENGINE ─────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            FileStore                        │          │
	│  │  - docs map[uuid.UUID]document.Metadata     │          │
	│  │  - guarded by a single sync.RWMutex          │          │
	│  │  - one *walog.WAL instance                  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │       On-disk layout (under Open's dir)      │          │
	│  │                                              │          │
	│  │  documents/<uuid>.md   payload + frontmatter │          │
	│  │  meta/<uuid>.json      DocumentMetadata      │          │
	│  │  wal/current.wal       append-only log       │          │
	│  │  indices/              created, left empty   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Recovery                       │          │
	│  │  1. Load meta/*.json into the map           │          │
	│  │  2. Quarantine malformed sidecars            │          │
	│  │  3. Replay the WAL, reapplying any mutation  │          │
	│  │     not already reflected in the map         │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────────┘

# Write Path

Every mutating operation (Insert, Update, Delete) follows the same order,
under the exclusive side of the map lock for its whole duration:

 1. Check the in-memory map for the precondition (absent for Insert,
    present for Update/Delete).
 2. Append a WAL frame describing the mutation and fsync it. This is the
    real commit point: once it returns, the operation is durable even if
    the process dies before the next step.
 3. Write (or remove) the payload file and the metadata sidecar.
 4. Update the in-memory map.

If the process crashes between steps 2 and 4, the next Open replays the
WAL and redoes steps 3-4 for any record the map doesn't already reflect
consistently (compared by payload hash). If it crashes before step 2's
fsync returns, nothing is observable on reopen — the operation never
committed.

# Frontmatter Policy

Insert prepends a normalized YAML frontmatter block (title, tags,
created, updated) to the payload when tags are non-empty and the payload
doesn't already start with a well-formed block. Get parses any existing
frontmatter on read; if its tags disagree with the sidecar's, the
mismatch is logged but the sidecar's tags win — the sidecar is the fast
path, the frontmatter is there so external tools (editors, git diffs) see
self-describing files.

# Error Wrapping

Every error returned crosses the boundary as a *kotaerr.Error with a
Kind: NotFound, DuplicateId, IOTransient, IOPermanent, or Corruption.
Delete is idempotent by design: deleting an id with no live entry is a
successful no-op, not a NotFound error, so callers (and the coordinator)
never need to pre-check existence.

# Usage

	store, err := storage.Open("/var/lib/kotadb")
	if err != nil { ... }
	defer store.Close()

	doc, _ := document.NewBuilder().
		WithPath(path).
		WithTitle(title).
		WithContent([]byte("hello world")).
		IntoPersisted()

	if err := store.Insert(doc); err != nil { ... }
	got, err := store.Get(doc.ID())
*/
package storage
