package wrapstack

import (
	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/kotaerr"
	"github.com/kotadb/kotadb/pkg/storage"
)

// ValidatedStorage re-runs the contract checks the document builders
// already enforce (spec §4.6 "Validated"): non-nil ids, a path that
// still passes NewValidatedPath, updated >= created, and duplicate-id
// prevention on insert. This is deliberately redundant with
// construction-time validation, since callers may build a Document
// through means other than document.Builder before it reaches here.
type ValidatedStorage struct {
	inner storage.Store
}

func NewValidatedStorage(inner storage.Store) *ValidatedStorage {
	return &ValidatedStorage{inner: inner}
}

func validateDoc(op string, doc document.Document) error {
	if doc.ID().IsZero() {
		return kotaerr.NewInvalidInput(op, "document id must not be zero")
	}
	if _, err := document.NewValidatedPath(doc.Path().String()); err != nil {
		return err
	}
	ts := doc.Timestamps()
	if ts.Updated().Millis() < ts.Created().Millis() {
		return kotaerr.NewInvalidInput(op, "updated timestamp precedes created timestamp", doc.ID().String())
	}
	return nil
}

func (v *ValidatedStorage) Insert(doc document.Document) error {
	if err := validateDoc("insert", doc); err != nil {
		return err
	}
	if _, err := v.inner.Get(doc.ID()); err == nil {
		return kotaerr.NewDuplicateId("insert", doc.ID().String())
	}
	return v.inner.Insert(doc)
}

func (v *ValidatedStorage) Get(id document.ValidatedDocumentId) (document.Document, error) {
	if id.IsZero() {
		return document.Document{}, kotaerr.NewInvalidInput("get", "document id must not be zero")
	}
	return v.inner.Get(id)
}

func (v *ValidatedStorage) Update(doc document.Document) error {
	if err := validateDoc("update", doc); err != nil {
		return err
	}
	return v.inner.Update(doc)
}

func (v *ValidatedStorage) Delete(id document.ValidatedDocumentId) error {
	if id.IsZero() {
		return kotaerr.NewInvalidInput("delete", "document id must not be zero")
	}
	return v.inner.Delete(id)
}

func (v *ValidatedStorage) ListAll() ([]document.Document, error) { return v.inner.ListAll() }
func (v *ValidatedStorage) Flush() error                          { return v.inner.Flush() }
func (v *ValidatedStorage) Sync() error                           { return v.inner.Sync() }
func (v *ValidatedStorage) Close() error                          { return v.inner.Close() }
