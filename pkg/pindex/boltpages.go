package pindex

import (
	"encoding/binary"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/kotadb/kotadb/pkg/kotaerr"
)

var pagesBucket = []byte("pages")

// boltPageStore is the optional bbolt-backed alternative to one-file-
// per-page storage: every exported leaf page is a value in a single
// bucket of a single file, keyed by its big-endian page number. It
// speaks the same page bytes (KOTP header, checksum, linked leaves) as
// the file-based store; bbolt only supplies the container.
type boltPageStore struct {
	db *bolt.DB
}

func openBoltPageStore(dir string) (*boltPageStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	db, err := bolt.Open(filepath.Join(dir, "pages.bolt"), 0o644, nil)
	if err != nil {
		return nil, kotaerr.NewIOPermanent("pindex.openBoltPageStore", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(pagesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, kotaerr.NewIOPermanent("pindex.openBoltPageStore", err)
	}
	return &boltPageStore{db: db}, nil
}

func pageKey(i int) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(i))
	return b[:]
}

func (s *boltPageStore) put(i int, buf []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(pagesBucket).Put(pageKey(i), buf)
	})
	if err != nil {
		return kotaerr.NewIOTransient("pindex.boltPageStore.put", err)
	}
	return nil
}

// deleteFrom removes every page at index >= from, so a shorter Flush
// doesn't leave stale trailing pages from a previous, longer export.
func (s *boltPageStore) deleteFrom(from int) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(pagesBucket)
		for i := from; ; i++ {
			if b.Get(pageKey(i)) == nil {
				return nil
			}
			if err := b.Delete(pageKey(i)); err != nil {
				return err
			}
		}
	})
	if err != nil {
		return kotaerr.NewIOTransient("pindex.boltPageStore.deleteFrom", err)
	}
	return nil
}

func (s *boltPageStore) get(i int) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(pagesBucket).Get(pageKey(i))
		if v != nil {
			out = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, kotaerr.NewIOTransient("pindex.boltPageStore.get", err)
	}
	return out, out != nil, nil
}

func (s *boltPageStore) close() error {
	if err := s.db.Close(); err != nil {
		return kotaerr.NewIOPermanent("pindex.boltPageStore.close", err)
	}
	return nil
}

// scanBoltPages mirrors scanPages for the bolt-backed store, following
// the same linked-leaf chain starting at page 0.
func scanBoltPages(s *boltPageStore) ([]leafItem, error) {
	var all []leafItem
	next := 0
	visited := map[int]bool{}
	for {
		if visited[next] {
			break
		}
		visited[next] = true

		buf, ok, err := s.get(next)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		p, decoded := decodePage(buf)
		if !decoded {
			return all, kotaerr.NewCorruption("pindex.scanBoltPages", "checksum mismatch on bolt page", nil)
		}
		all = append(all, decodeItems(p.body, int(p.itemCount))...)
		if p.nextPage == 0 {
			break
		}
		next = int(p.nextPage)
	}
	return all, nil
}
