package pindex

import (
	"encoding/binary"
	"hash/crc32"
)

// PageSize is the fixed on-disk page size (spec §6.3): 4096 bytes,
// matching the common OS page size.
const PageSize = 4096

// pageMagic is the 4-byte page header magic, "KOTP".
var pageMagic = [4]byte{'K', 'O', 'T', 'P'}

// pageHeaderLen is magic(4) + kind(1) + lsn(8) + checksum(4) + itemCount(4)
// + nextPage(8) = 29 bytes, padded to the spec's 64-byte page header; the
// remainder of the 4096-byte page is the serialized item area (spec §6.3
// "64-byte header... item area growing upward").
const pageHeaderLen = 64

type pageKind uint8

const (
	pageKindLeaf pageKind = iota
	pageKindMeta
)

// page is one persisted leaf export page: a header followed by a
// length-prefixed run of (path, id) items, sorted ascending. Leaf pages
// point to the next leaf page by page number, forming the singly linked
// list spec §4.4 describes for ordered scans; page number 0 means "no
// next page".
type page struct {
	kind      pageKind
	lsn       uint64
	itemCount uint32
	nextPage  uint64
	body      []byte // encoded items, not including the header
}

func encodePage(p page) []byte {
	buf := make([]byte, PageSize)
	copy(buf[0:4], pageMagic[:])
	buf[4] = byte(p.kind)
	binary.BigEndian.PutUint64(buf[5:13], p.lsn)
	binary.BigEndian.PutUint32(buf[13:17], p.itemCount)
	binary.BigEndian.PutUint64(buf[17:25], p.nextPage)
	// buf[25:29] reserved for checksum, filled in below.
	n := copy(buf[pageHeaderLen:], p.body)
	_ = n
	sum := crc32.ChecksumIEEE(buf[pageHeaderLen:])
	binary.BigEndian.PutUint32(buf[25:29], sum)
	return buf
}

func decodePage(buf []byte) (page, bool) {
	if len(buf) != PageSize {
		return page{}, false
	}
	if buf[0] != pageMagic[0] || buf[1] != pageMagic[1] || buf[2] != pageMagic[2] || buf[3] != pageMagic[3] {
		return page{}, false
	}
	wantSum := binary.BigEndian.Uint32(buf[25:29])
	gotSum := crc32.ChecksumIEEE(buf[pageHeaderLen:])
	if wantSum != gotSum {
		return page{}, false
	}
	return page{
		kind:      pageKind(buf[4]),
		lsn:       binary.BigEndian.Uint64(buf[5:13]),
		itemCount: binary.BigEndian.Uint32(buf[13:17]),
		nextPage:  binary.BigEndian.Uint64(buf[17:25]),
		body:      append([]byte{}, buf[pageHeaderLen:]...),
	}, true
}

// encodeItems serializes a run of (path, id) entries into a page body:
// for each item, a 2-byte path length, the path bytes, then the 16-byte
// document id. Items stop being appended once the next one would not fit
// in the remaining body capacity.
func encodeItems(items []leafItem, capacity int) (body []byte, consumed int) {
	buf := make([]byte, 0, capacity)
	for _, it := range items {
		need := 2 + len(it.path) + 16
		if len(buf)+need > capacity {
			break
		}
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(it.path)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, []byte(it.path)...)
		buf = append(buf, it.id[:]...)
		consumed++
	}
	return buf, consumed
}

func decodeItems(body []byte, count int) []leafItem {
	items := make([]leafItem, 0, count)
	off := 0
	for i := 0; i < count; i++ {
		if off+2 > len(body) {
			break
		}
		pathLen := int(binary.BigEndian.Uint16(body[off : off+2]))
		off += 2
		if off+pathLen+16 > len(body) {
			break
		}
		path := string(body[off : off+pathLen])
		off += pathLen
		var id [16]byte
		copy(id[:], body[off:off+16])
		off += 16
		items = append(items, leafItem{path: path, id: id})
	}
	return items
}
