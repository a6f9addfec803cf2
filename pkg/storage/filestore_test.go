package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/kotaerr"
)

func buildDoc(t *testing.T, path, title, content string, tags ...string) document.Document {
	t.Helper()
	p, err := document.NewValidatedPath(path)
	if err != nil {
		t.Fatal(err)
	}
	ti, err := document.NewValidatedTitle(title)
	if err != nil {
		t.Fatal(err)
	}
	var validTags []document.ValidatedTag
	for _, tag := range tags {
		vt, err := document.NewValidatedTag(tag)
		if err != nil {
			t.Fatal(err)
		}
		validTags = append(validTags, vt)
	}
	doc, err := document.NewBuilder().
		WithPath(p).
		WithTitle(ti).
		WithContent([]byte(content)).
		WithTags(validTags).
		IntoPersisted()
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestInsertAndGet(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	doc := buildDoc(t, "a.md", "A", "hello world")
	if err := store.Insert(doc); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.Get(doc.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Content()) != "hello world" {
		t.Errorf("Content = %q, want hello world", got.Content())
	}
	if got.ContentHash() != doc.ContentHash() {
		t.Error("content hash mismatch after round trip")
	}
}

func TestInsertDuplicateIdRejected(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	path1, _ := document.NewValidatedPath("a.md")
	path2, _ := document.NewValidatedPath("b.md")
	title, _ := document.NewValidatedTitle("T")
	id := document.NewDocumentId()

	doc1, err := document.NewBuilder().WithId(id).WithPath(path1).WithTitle(title).WithContent([]byte("x")).IntoPersisted()
	if err != nil {
		t.Fatal(err)
	}
	doc2, err := document.NewBuilder().WithId(id).WithPath(path2).WithTitle(title).WithContent([]byte("y")).IntoPersisted()
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Insert(doc1); err != nil {
		t.Fatalf("Insert doc1: %v", err)
	}
	err = store.Insert(doc2)
	if err == nil {
		t.Fatal("expected DuplicateId error on second insert")
	}
	kind, ok := kotaerr.KindOf(err)
	if !ok || kind != kotaerr.DuplicateId {
		t.Errorf("kind = %v, want DuplicateId", kind)
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Path().String() != "a.md" {
		t.Errorf("Path = %q, want a.md (first insert wins)", got.Path().String())
	}
}

func TestDeleteThenGetNotFound(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	doc := buildDoc(t, "a.md", "A", "hello")
	if err := store.Insert(doc); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Delete(doc.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = store.Get(doc.ID())
	if !kotaerr.IsNotFound(err) {
		t.Errorf("expected NotFound after delete, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	id := document.NewDocumentId()
	if err := store.Delete(id); err != nil {
		t.Errorf("Delete on absent id should succeed, got %v", err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	doc := buildDoc(t, "a.md", "A", "hello")
	err = store.Update(doc)
	if err == nil {
		t.Fatal("expected NotFound updating a document never inserted")
	}
	kind, _ := kotaerr.KindOf(err)
	if kind != kotaerr.NotFound {
		t.Errorf("kind = %v, want NotFound", kind)
	}
}

func TestUpdateChangesContentAndHash(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	doc := buildDoc(t, "a.md", "A", "v1")
	if err := store.Insert(doc); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	modified, err := doc.AsModified(doc.Title(), []byte("v2"), doc.Tags(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Update(modified); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := store.Get(doc.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Content()) != "v2" {
		t.Errorf("Content = %q, want v2", got.Content())
	}
}

func TestListAllReturnsAllLiveDocuments(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	store.Insert(buildDoc(t, "b.md", "B", "b"))
	store.Insert(buildDoc(t, "a.md", "A", "a"))

	docs, err := store.ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if docs[0].Path().String() != "a.md" || docs[1].Path().String() != "b.md" {
		t.Errorf("expected deterministic path order, got %s, %s", docs[0].Path(), docs[1].Path())
	}
}

func TestFrontmatterRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	doc := buildDoc(t, "a.md", "A", "body text", "draft", "notes")
	if err := store.Insert(doc); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(store.documentsDir, doc.ID().String()+".md"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !hasFrontmatterPrefix(raw) {
		t.Errorf("expected payload to start with frontmatter, got %q", raw)
	}

	got, err := store.Get(doc.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Content()) != "body text" {
		t.Errorf("Content = %q, want body text (frontmatter stripped)", got.Content())
	}
}

func hasFrontmatterPrefix(b []byte) bool {
	return len(b) >= 4 && string(b[:4]) == "---\n"
}

func TestReopenRecoversMetadataAfterWALOnlyCommit(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	doc := buildDoc(t, "a.md", "A", "hello")
	if err := store.Insert(doc); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Simulate a crash after the metadata sidecar is lost (payload/meta
	// still present normally; we explicitly remove the sidecar to model
	// "WAL fsync succeeded, crash before metadata write" -- the WAL
	// still has the full record and replay should reconstruct it).
	if err := os.Remove(filepath.Join(store.metaDir, doc.ID().String()+".json")); err != nil {
		t.Fatalf("Remove meta: %v", err)
	}
	store.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(doc.ID())
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got.Content()) != "hello" {
		t.Errorf("Content after recovery = %q, want hello", got.Content())
	}
}
