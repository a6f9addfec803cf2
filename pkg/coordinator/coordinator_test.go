package coordinator

import (
	"errors"
	"testing"

	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/kotaerr"
)

type fakeStorage struct {
	docs      map[string]document.Document
	deleteErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{docs: make(map[string]document.Document)}
}

func (f *fakeStorage) put(doc document.Document) { f.docs[doc.ID().String()] = doc }

func (f *fakeStorage) Get(id document.ValidatedDocumentId) (document.Document, error) {
	doc, ok := f.docs[id.String()]
	if !ok {
		return document.Document{}, kotaerr.NewNotFound("get", id.String())
	}
	return doc, nil
}

func (f *fakeStorage) Delete(id document.ValidatedDocumentId) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.docs, id.String())
	return nil
}

type fakePrimary struct {
	entries   map[string]document.ValidatedDocumentId
	deleteErr error
}

func newFakePrimary() *fakePrimary {
	return &fakePrimary{entries: make(map[string]document.ValidatedDocumentId)}
}

func (f *fakePrimary) Insert(path document.ValidatedPath, id document.ValidatedDocumentId) error {
	f.entries[path.String()] = id
	return nil
}

func (f *fakePrimary) Delete(path document.ValidatedPath) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.entries, path.String())
	return nil
}

type fakeTrigram struct {
	entries   map[string]string
	deleteErr error
}

func newFakeTrigram() *fakeTrigram {
	return &fakeTrigram{entries: make(map[string]string)}
}

func (f *fakeTrigram) Insert(id document.ValidatedDocumentId, text string) error {
	f.entries[id.String()] = text
	return nil
}

func (f *fakeTrigram) Delete(id document.ValidatedDocumentId) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.entries, id.String())
	return nil
}

func buildTestDoc(t *testing.T, path, title, content string) document.Document {
	t.Helper()
	p, err := document.NewValidatedPath(path)
	if err != nil {
		t.Fatal(err)
	}
	ti, err := document.NewValidatedTitle(title)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := document.NewBuilder().WithPath(p).WithTitle(ti).WithContent([]byte(content)).IntoPersisted()
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestCoordinatedDeletionHappyPath(t *testing.T) {
	st := newFakeStorage()
	pi := newFakePrimary()
	ti := newFakeTrigram()
	doc := buildTestDoc(t, "a.md", "A", "hello world")
	st.put(doc)
	pi.entries[doc.Path().String()] = doc.ID()
	ti.entries[doc.ID().String()] = indexableText(doc)

	c := New(st, pi, ti)
	if err := c.Delete(doc.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := st.docs[doc.ID().String()]; ok {
		t.Error("document still present in storage")
	}
	if _, ok := pi.entries[doc.Path().String()]; ok {
		t.Error("entry still present in primary index")
	}
	if _, ok := ti.entries[doc.ID().String()]; ok {
		t.Error("entry still present in trigram index")
	}
}

func TestCoordinatedDeletionFailFastWhenAbsent(t *testing.T) {
	c := New(newFakeStorage(), newFakePrimary(), newFakeTrigram())
	err := c.Delete(document.NewDocumentId())
	if kind, ok := kotaerr.KindOf(err); !ok || kind != kotaerr.NotFound {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestCoordinatedDeletionRollsBackOnPrimaryFailure(t *testing.T) {
	st := newFakeStorage()
	pi := newFakePrimary()
	ti := newFakeTrigram()
	doc := buildTestDoc(t, "a.md", "A", "hello world")
	st.put(doc)
	pi.entries[doc.Path().String()] = doc.ID()
	ti.entries[doc.ID().String()] = indexableText(doc)
	pi.deleteErr = errors.New("disk full")

	c := New(st, pi, ti)
	err := c.Delete(doc.ID())
	if kind, ok := kotaerr.KindOf(err); !ok || kind != kotaerr.CoordinationFailure {
		t.Fatalf("err = %v, want CoordinationFailure", err)
	}
	if _, ok := ti.entries[doc.ID().String()]; !ok {
		t.Error("trigram entry was not rolled back after primary deletion failed")
	}
	if _, ok := st.docs[doc.ID().String()]; !ok {
		t.Error("storage entry should be untouched when primary deletion fails")
	}
}

func TestCoordinatedDeletionRollsBackBothOnStorageFailure(t *testing.T) {
	st := newFakeStorage()
	pi := newFakePrimary()
	ti := newFakeTrigram()
	doc := buildTestDoc(t, "a.md", "A", "hello world")
	st.put(doc)
	pi.entries[doc.Path().String()] = doc.ID()
	ti.entries[doc.ID().String()] = indexableText(doc)
	st.deleteErr = errors.New("disk full")

	c := New(st, pi, ti)
	err := c.Delete(doc.ID())
	if kind, ok := kotaerr.KindOf(err); !ok || kind != kotaerr.CoordinationFailure {
		t.Fatalf("err = %v, want CoordinationFailure", err)
	}
	if _, ok := pi.entries[doc.Path().String()]; !ok {
		t.Error("primary entry was not rolled back after storage deletion failed")
	}
	if _, ok := ti.entries[doc.ID().String()]; !ok {
		t.Error("trigram entry was not rolled back after storage deletion failed")
	}
}

func TestCoordinatedDeletionNoRollbackOnTrigramFailure(t *testing.T) {
	st := newFakeStorage()
	pi := newFakePrimary()
	ti := newFakeTrigram()
	doc := buildTestDoc(t, "a.md", "A", "hello world")
	st.put(doc)
	pi.entries[doc.Path().String()] = doc.ID()
	ti.entries[doc.ID().String()] = indexableText(doc)
	ti.deleteErr = errors.New("wal append failed")

	c := New(st, pi, ti)
	err := c.Delete(doc.ID())
	if kind, ok := kotaerr.KindOf(err); !ok || kind != kotaerr.CoordinationFailure {
		t.Fatalf("err = %v, want CoordinationFailure", err)
	}
	if _, ok := pi.entries[doc.Path().String()]; !ok {
		t.Error("primary entry should be untouched when trigram deletion is the first failure")
	}
	if _, ok := st.docs[doc.ID().String()]; !ok {
		t.Error("storage entry should be untouched when trigram deletion is the first failure")
	}
}
