package wrapstack

import (
	"testing"

	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/kotaerr"
	"github.com/kotadb/kotadb/pkg/pindex"
	"github.com/kotadb/kotadb/pkg/trigram"
)

func TestWrappedTrigramIndexInsertAndSearch(t *testing.T) {
	base, err := trigram.Open(t.TempDir())
	if err != nil {
		t.Fatalf("trigram.Open: %v", err)
	}
	w := NewWrappedTrigramIndex(base, DefaultStorageOptions)
	defer w.Close()

	id := document.NewDocumentId()
	if err := w.Insert(id, "quick brown fox"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got := w.Search(trigram.Query{Terms: []string{"quick", "brown"}})
	if len(got) != 1 || got[0] != id.UUID() {
		t.Errorf("Search = %v, want [%v]", got, id.UUID())
	}
}

func TestWrappedTrigramIndexRejectsZeroId(t *testing.T) {
	base, err := trigram.Open(t.TempDir())
	if err != nil {
		t.Fatalf("trigram.Open: %v", err)
	}
	w := NewWrappedTrigramIndex(base, DefaultStorageOptions)
	defer w.Close()

	err = w.Insert(document.ValidatedDocumentId{}, "text")
	if kind, ok := kotaerr.KindOf(err); !ok || kind != kotaerr.InvalidInput {
		t.Errorf("err = %v, want InvalidInput", err)
	}
}

func TestWrappedPrimaryIndexInsertAndLookup(t *testing.T) {
	base, err := pindex.Open(t.TempDir())
	if err != nil {
		t.Fatalf("pindex.Open: %v", err)
	}
	w := NewWrappedPrimaryIndex(base, DefaultStorageOptions)
	defer w.Close()

	path, err := document.NewValidatedPath("notes/a.md")
	if err != nil {
		t.Fatal(err)
	}
	id := document.NewDocumentId()
	if err := w.Insert(path, id); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := w.Lookup("notes/a.md")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.String() != id.String() {
		t.Errorf("Lookup = %s, want %s", got, id)
	}
}

func TestWrappedPrimaryIndexBufferedFlushOnThreshold(t *testing.T) {
	base, err := pindex.Open(t.TempDir())
	if err != nil {
		t.Fatalf("pindex.Open: %v", err)
	}
	opts := DefaultStorageOptions
	opts.BufferedOptions.MaxItems = 2
	w := NewWrappedPrimaryIndex(base, opts)
	defer w.Close()

	for i := 0; i < 2; i++ {
		path, err := document.NewValidatedPath("notes/" + string(rune('a'+i)) + ".md")
		if err != nil {
			t.Fatal(err)
		}
		if err := w.Insert(path, document.NewDocumentId()); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if w.buf.count != 0 {
		t.Errorf("buf.count = %d, want 0 after auto-flush", w.buf.count)
	}
}
