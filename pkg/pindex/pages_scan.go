package pindex

import (
	"os"
	"path/filepath"

	"github.com/kotadb/kotadb/pkg/kotaerr"
)

// scanPages reads every exported leaf page under dir in linked order,
// starting at page 0, and returns their combined items. It exists
// independently of the in-memory tree so a future cold-start path (or a
// diagnostic tool) can reconstruct the index's contents from pages alone
// without replaying the WAL.
func scanPages(dir string) ([]leafItem, error) {
	var all []leafItem
	next := uint64(0)
	visited := map[uint64]bool{}
	for {
		if visited[next] {
			break // defend against a corrupt nextPage cycle
		}
		visited[next] = true

		buf, err := os.ReadFile(filepath.Join(dir, pageFileName(int(next))))
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return nil, kotaerr.NewIOTransient("pindex.scanPages", err)
		}
		p, ok := decodePage(buf)
		if !ok {
			return all, kotaerr.NewCorruption("pindex.scanPages", "checksum mismatch on page "+pageFileName(int(next)), nil)
		}
		all = append(all, decodeItems(p.body, int(p.itemCount))...)
		if p.nextPage == 0 {
			break
		}
		next = p.nextPage
	}
	return all, nil
}
