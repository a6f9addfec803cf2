package trigram

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func writeFileForTest(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func TestWriteAndMmapSidecarRoundTrip(t *testing.T) {
	p1 := Posting{ID: uuid.New(), Freq: 3}
	p2 := Posting{ID: uuid.New(), Freq: 7}
	postings := map[string][]Posting{
		"abc": {p1, p2},
		"xyz": {p1},
	}

	path := filepath.Join(t.TempDir(), "postings.kotrg")
	if err := writeSidecar(path, postings); err != nil {
		t.Fatalf("writeSidecar: %v", err)
	}

	data, dir, err := mmapSidecar(path)
	if err != nil {
		t.Fatalf("mmapSidecar: %v", err)
	}
	defer munmapSidecar(data)

	if len(dir) != 2 {
		t.Fatalf("len(dir) = %d, want 2", len(dir))
	}

	decoded := readSidecarPostings(data, dir)
	abc, ok := decoded["abc"]
	if !ok || len(abc) != 2 {
		t.Fatalf("decoded[abc] = %v", abc)
	}
	xyz, ok := decoded["xyz"]
	if !ok || len(xyz) != 1 {
		t.Fatalf("decoded[xyz] = %v", xyz)
	}
}

func TestMmapEmptySidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.kotrg")
	if err := writeSidecar(path, map[string][]Posting{}); err != nil {
		t.Fatalf("writeSidecar: %v", err)
	}

	data, dir, err := mmapSidecar(path)
	if err != nil {
		t.Fatalf("mmapSidecar on empty sidecar: %v", err)
	}
	defer munmapSidecar(data)
	if len(dir) != 0 {
		t.Fatalf("len(dir) = %d, want 0", len(dir))
	}
}

func TestMmapSidecarRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncated.kotrg")
	if err := writeFileForTest(path, []byte{'K', 'O'}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := mmapSidecar(path); err == nil {
		t.Error("expected an error mapping a file smaller than the header")
	}
}
