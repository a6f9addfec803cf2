// Package storage implements the file-backed document storage engine
// (spec §4.3): one payload file and one metadata sidecar per document,
// an append-only WAL, and startup recovery driven by the WAL and the
// metadata directory.
package storage

import "github.com/kotadb/kotadb/pkg/document"

// Store is the capability set every layer of the wrapper stack
// implements and delegates to (spec §9 "polymorphism over storage").
// Callers depend on this interface, never on *FileStore directly, so
// tests can substitute an in-memory fake with the same shape.
type Store interface {
	Insert(doc document.Document) error
	Get(id document.ValidatedDocumentId) (document.Document, error)
	Update(doc document.Document) error
	Delete(id document.ValidatedDocumentId) error
	ListAll() ([]document.Document, error)
	Flush() error
	Sync() error
	Close() error
}
