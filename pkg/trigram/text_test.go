package trigram

import (
	"testing"

	"github.com/kotadb/kotadb/pkg/document"
)

func TestTextIndexInsertAndSearch(t *testing.T) {
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	id := document.NewDocumentId()
	if err := idx.Insert(id, "the quick brown fox jumps over the lazy dog"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got := idx.Search(Query{Terms: []string{"quick", "brown", "fox"}})
	if len(got) != 1 || got[0] != id.UUID() {
		t.Errorf("Search = %v, want [%v]", got, id.UUID())
	}
}

func TestTextIndexDeleteRemovesFromResults(t *testing.T) {
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	id := document.NewDocumentId()
	if err := idx.Insert(id, "unique searchable content here"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := idx.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := idx.Search(Query{Terms: []string{"unique", "searchable"}}); len(got) != 0 {
		t.Errorf("Search after delete = %v, want empty", got)
	}
}

func TestTextIndexDeleteAbsentIsNoop(t *testing.T) {
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if err := idx.Delete(document.NewDocumentId()); err != nil {
		t.Errorf("Delete absent id returned error: %v", err)
	}
}

func TestTextIndexReinsertReplacesPostings(t *testing.T) {
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	id := document.NewDocumentId()
	if err := idx.Insert(id, "alpha bravo charlie"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := idx.Insert(id, "delta echo foxtrot"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := idx.Search(Query{Terms: []string{"alpha"}}); len(got) != 0 {
		t.Errorf("old content should no longer match, got %v", got)
	}
	if got := idx.Search(Query{Terms: []string{"delta", "echo"}}); len(got) != 1 {
		t.Errorf("new content should match, got %v", got)
	}
}

func TestTextIndexSearchRespectsLimit(t *testing.T) {
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	for i := 0; i < 5; i++ {
		if err := idx.Insert(document.NewDocumentId(), "shared keyword content block"); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	got := idx.Search(Query{Terms: []string{"shared", "keyword"}, Limit: 2})
	if len(got) != 2 {
		t.Errorf("Search with Limit=2 returned %d results", len(got))
	}
}

func TestTextIndexReopenRecoversFromWAL(t *testing.T) {
	dir := t.TempDir()
	id := document.NewDocumentId()

	idx, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := idx.Insert(id, "durable recoverable content"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := idx.wal.Close(); err != nil {
		t.Fatalf("wal.Close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got := reopened.Search(Query{Terms: []string{"durable", "recoverable"}})
	if len(got) != 1 || got[0] != id.UUID() {
		t.Errorf("Search after reopen = %v, want [%v]", got, id.UUID())
	}
}
