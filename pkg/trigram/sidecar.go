package trigram

import (
	"encoding/binary"
	"os"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/kotadb/kotadb/pkg/kotaerr"
)

// sidecarMagic is the 8-byte binary sidecar header (spec §6.3):
// "KOTRG", two NUL bytes, then a literal 'v'.
var sidecarMagic = [8]byte{'K', 'O', 'T', 'R', 'G', 0, 0, 'v'}

const dirEntrySize = 3 + 4 + 4 // trigram(3) + offset(4) + count(4)
const postingEntrySize = 8 + 2 // id-hash(8) + freq(2)

// writeSidecar serializes postings (already compacted: no tombstoned
// ids) into the KOTRG binary format: header, a fixed-size directory of
// (trigram, offset, count) sorted by trigram, then the posting runs
// themselves sorted by id-hash within each trigram.
func writeSidecar(path string, postings map[string][]Posting) error {
	trigrams := make([]string, 0, len(postings))
	for t := range postings {
		trigrams = append(trigrams, t)
	}
	sort.Strings(trigrams)

	dirSize := len(trigrams) * dirEntrySize
	var runSize int
	for _, t := range trigrams {
		runSize += len(postings[t]) * postingEntrySize
	}

	buf := make([]byte, 8+4+dirSize+runSize)
	copy(buf[0:8], sidecarMagic[:])
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(trigrams)))

	dirOff := 12
	runOff := 12 + dirSize
	for _, t := range trigrams {
		list := append([]Posting(nil), postings[t]...)
		sort.Slice(list, func(i, j int) bool { return idHash(list[i].ID) < idHash(list[j].ID) })

		copy(buf[dirOff:dirOff+3], t)
		binary.BigEndian.PutUint32(buf[dirOff+3:dirOff+7], uint32(runOff))
		binary.BigEndian.PutUint32(buf[dirOff+7:dirOff+11], uint32(len(list)))
		dirOff += dirEntrySize

		for _, p := range list {
			binary.BigEndian.PutUint64(buf[runOff:runOff+8], idHash(p.ID))
			binary.BigEndian.PutUint16(buf[runOff+8:runOff+10], p.Freq)
			runOff += postingEntrySize
		}
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return kotaerr.NewIOTransient("trigram.writeSidecar", err)
	}
	return nil
}

// idHash truncates a uuid to its leading 8 bytes, the "u64 id-hash"
// spec §6.3 names for the compact posting format. It is not
// collision-resistant against an adversarial id, but document ids are
// random v4 UUIDs, so collision probability is negligible in practice;
// the sidecar is a read accelerator, never the sole record of an id
// (the in-memory index and its WAL remain authoritative).
func idHash(id uuid.UUID) uint64 {
	return binary.BigEndian.Uint64(id[:8])
}

// sidecarDirEntry is one parsed directory row.
type sidecarDirEntry struct {
	trigram string
	offset  uint32
	count   uint32
}

// mmapSidecar memory-maps path read-only and validates its header and
// directory, returning the mapped bytes and parsed directory. Callers
// must call munmapSidecar when done.
func mmapSidecar(path string) (data []byte, dir []sidecarDirEntry, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, kotaerr.NewIOTransient("trigram.mmapSidecar", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, kotaerr.NewIOTransient("trigram.mmapSidecar", err)
	}
	if info.Size() < 12 {
		return nil, nil, kotaerr.NewCorruption("trigram.mmapSidecar", "sidecar smaller than header", nil)
	}

	data, err = unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, kotaerr.NewIOTransient("trigram.mmapSidecar", err)
	}

	for i := 0; i < 8; i++ {
		if data[i] != sidecarMagic[i] {
			unix.Munmap(data)
			return nil, nil, kotaerr.NewCorruption("trigram.mmapSidecar", "bad magic", nil)
		}
	}
	count := binary.BigEndian.Uint32(data[8:12])
	dirEnd := 12 + int(count)*dirEntrySize
	if dirEnd > len(data) {
		unix.Munmap(data)
		return nil, nil, kotaerr.NewCorruption("trigram.mmapSidecar", "directory exceeds file size", nil)
	}

	dir = make([]sidecarDirEntry, 0, count)
	off := 12
	for i := uint32(0); i < count; i++ {
		t := string(data[off : off+3])
		o := binary.BigEndian.Uint32(data[off+3 : off+7])
		c := binary.BigEndian.Uint32(data[off+7 : off+11])
		dir = append(dir, sidecarDirEntry{trigram: t, offset: o, count: c})
		off += dirEntrySize
	}
	return data, dir, nil
}

func munmapSidecar(data []byte) error {
	if err := unix.Munmap(data); err != nil {
		return kotaerr.NewIOTransient("trigram.munmapSidecar", err)
	}
	return nil
}

// readSidecarPostings decodes every posting run in a mapped sidecar
// back into its id-hashes, keyed by trigram; the frequencies are not
// returned. No BinaryIndex method calls it; the sidecar round-trip test
// does. The live BinaryIndex itself is reconstructed from the WAL, not this file,
// since the sidecar's id-hash truncation cannot recover a full
// uuid.UUID on its own.
func readSidecarPostings(data []byte, dir []sidecarDirEntry) map[string][]uint64 {
	out := make(map[string][]uint64, len(dir))
	for _, e := range dir {
		ids := make([]uint64, 0, e.count)
		off := int(e.offset)
		for i := uint32(0); i < e.count; i++ {
			ids = append(ids, binary.BigEndian.Uint64(data[off:off+8]))
			off += postingEntrySize
		}
		out[e.trigram] = ids
	}
	return out
}
