package pindex

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/kotaerr"
)

func mustPath(t *testing.T, s string) document.ValidatedPath {
	t.Helper()
	p, err := document.NewValidatedPath(s)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestInsertAndLookup(t *testing.T) {
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	id := document.NewDocumentId()
	if err := idx.Insert(mustPath(t, "notes/a.md"), id); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := idx.Lookup("notes/a.md")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.String() != id.String() {
		t.Errorf("Lookup = %s, want %s", got, id)
	}
}

func TestLookupNotFound(t *testing.T) {
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	_, err = idx.Lookup("missing.md")
	if !kotaerr.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if err := idx.Delete(mustPath(t, "never-inserted.md")); err != nil {
		t.Errorf("Delete on absent path should succeed, got %v", err)
	}

	id := document.NewDocumentId()
	idx.Insert(mustPath(t, "a.md"), id)
	if err := idx.Delete(mustPath(t, "a.md")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := idx.Delete(mustPath(t, "a.md")); err != nil {
		t.Errorf("second Delete should also succeed, got %v", err)
	}
	if _, err := idx.Lookup("a.md"); !kotaerr.IsNotFound(err) {
		t.Error("expected NotFound after delete")
	}
}

func TestGlobSearch(t *testing.T) {
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	paths := []string{"notes/a.md", "notes/b.md", "docs/a.md"}
	for _, p := range paths {
		idx.Insert(mustPath(t, p), document.NewDocumentId())
	}

	matches, err := idx.Search("notes/*.md")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("len(matches) = %d, want 2", len(matches))
	}
}

func TestReopenRecoversFromWAL(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id := document.NewDocumentId()
	if err := idx.Insert(mustPath(t, "a.md"), id); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	idx.wal.Close() // simulate a crash: skip the graceful Close/Flush path

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Lookup("a.md")
	if err != nil {
		t.Fatalf("Lookup after reopen: %v", err)
	}
	if got.String() != id.String() {
		t.Errorf("Lookup after reopen = %s, want %s", got, id)
	}
}

func TestFlushExportsScannablePages(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var ids []document.ValidatedDocumentId
	for _, p := range []string{"c.md", "a.md", "b.md"} {
		id := document.NewDocumentId()
		ids = append(ids, id)
		idx.Insert(mustPath(t, p), id)
	}
	if err := idx.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	idx.Close()

	items, err := scanPages(filepath.Join(dir, "pages"))
	if err != nil {
		t.Fatalf("scanPages: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	got := make([]string, len(items))
	for i, it := range items {
		got[i] = it.path
	}
	if !sort.StringsAreSorted(got) {
		t.Errorf("expected pages in sorted path order, got %v", got)
	}
}

func TestScanPagesDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	idx.Insert(mustPath(t, "a.md"), document.NewDocumentId())
	if err := idx.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	idx.Close()

	pagesDir := filepath.Join(dir, "pages")
	entries, err := os.ReadDir(pagesDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one exported page")
	}
	path := filepath.Join(pagesDir, entries[0].Name())
	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	buf[pageHeaderLen] ^= 0xFF // flip a body byte, invalidating the checksum
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = scanPages(pagesDir)
	kind, ok := kotaerr.KindOf(err)
	if !ok || kind != kotaerr.Corruption {
		t.Errorf("expected Corruption error from a tampered page, got %v", err)
	}
}

func TestBoltBackedFlushAndScan(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir, WithBoltPages())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, p := range []string{"b.md", "a.md"} {
		idx.Insert(mustPath(t, p), document.NewDocumentId())
	}
	if err := idx.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	bp, err := openBoltPageStore(filepath.Join(dir, "pages"))
	if err != nil {
		t.Fatalf("openBoltPageStore: %v", err)
	}
	defer bp.close()

	items, err := scanBoltPages(bp)
	if err != nil {
		t.Fatalf("scanBoltPages: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].path != "a.md" || items[1].path != "b.md" {
		t.Errorf("expected sorted order, got %v, %v", items[0].path, items[1].path)
	}
}

func TestBoltPagesTruncateOnShrink(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir, WithBoltPages())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, p := range []string{"a.md", "b.md", "c.md"} {
		idx.Insert(mustPath(t, p), document.NewDocumentId())
	}
	if err := idx.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	idx.Delete(mustPath(t, "b.md"))
	idx.Delete(mustPath(t, "c.md"))
	if err := idx.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	bp, err := openBoltPageStore(filepath.Join(dir, "pages"))
	if err != nil {
		t.Fatalf("openBoltPageStore: %v", err)
	}
	defer bp.close()

	items, err := scanBoltPages(bp)
	if err != nil {
		t.Fatalf("scanBoltPages: %v", err)
	}
	if len(items) != 1 || items[0].path != "a.md" {
		t.Errorf("expected only a.md to remain, got %v", items)
	}
}
