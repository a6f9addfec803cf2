package pindex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kotadb/kotadb/pkg/kotaerr"
)

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kotaerr.NewIOPermanent("pindex.ensureDir", err)
	}
	return nil
}

func pageFileName(i int) string {
	return fmt.Sprintf("page-%04d.bin", i)
}

func writePageFile(dir string, i int, buf []byte) error {
	path := filepath.Join(dir, pageFileName(i))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return kotaerr.NewIOTransient("pindex.writePageFile", err)
	}
	return nil
}
