package wrapstack

import (
	"testing"
	"time"

	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/kotaerr"
	"github.com/kotadb/kotadb/pkg/storage"
)

func buildDoc(t *testing.T, path, title, content string) document.Document {
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

func newBaseStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	return s
}

func TestStorageStackInsertAndGet(t *testing.T) {
	stack := NewStorageStack(newBaseStore(t), DefaultStorageOptions)
	defer stack.Close()

	doc := buildDoc(t, "a.md", "A", "hello world")
	if err := stack.Insert(doc); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := stack.Get(doc.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Content()) != "hello world" {
		t.Errorf("Content = %q, want hello world", got.Content())
	}
}

func TestStorageStackRejectsDuplicateInsert(t *testing.T) {
	stack := NewStorageStack(newBaseStore(t), DefaultStorageOptions)
	defer stack.Close()

	doc := buildDoc(t, "a.md", "A", "hello")
	if err := stack.Insert(doc); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := stack.Insert(doc)
	if kind, ok := kotaerr.KindOf(err); !ok || kind != kotaerr.DuplicateId {
		t.Errorf("second Insert err = %v, want DuplicateId", err)
	}
}

func TestStorageStackRejectsZeroId(t *testing.T) {
	stack := NewStorageStack(newBaseStore(t), DefaultStorageOptions)
	defer stack.Close()

	_, err := stack.Get(document.ValidatedDocumentId{})
	if kind, ok := kotaerr.KindOf(err); !ok || kind != kotaerr.InvalidInput {
		t.Errorf("Get(zero id) err = %v, want InvalidInput", err)
	}
}

func TestStorageStackCachesReads(t *testing.T) {
	base := newBaseStore(t)
	buffered := NewBufferedStorage(base, DefaultBufferedOptions)
	cached := NewCachedStorage(buffered, 10)
	defer cached.Close()

	doc := buildDoc(t, "a.md", "A", "hello")
	if err := cached.Insert(doc); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := cached.Get(doc.ID()); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cached.Len() != 1 {
		t.Errorf("cache Len = %d, want 1", cached.Len())
	}

	if err := cached.Delete(doc.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if cached.Len() != 0 {
		t.Errorf("cache Len after delete = %d, want 0", cached.Len())
	}
}

func TestBufferedStorageFlushesOnItemThreshold(t *testing.T) {
	base := newBaseStore(t)
	buffered := NewBufferedStorage(base, BufferedOptions{MaxItems: 2, MaxBytes: 1 << 20, MaxInterval: time.Hour})
	defer buffered.Close()

	if err := buffered.Insert(buildDoc(t, "a.md", "A", "x")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if buffered.QueueDepth() != 1 {
		t.Fatalf("QueueDepth = %d, want 1", buffered.QueueDepth())
	}
	if err := buffered.Insert(buildDoc(t, "b.md", "B", "y")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if buffered.QueueDepth() != 0 {
		t.Errorf("QueueDepth after threshold trigger = %d, want 0 (auto-flushed)", buffered.QueueDepth())
	}
}
