package pindex

import "encoding/binary"

// encodeWALItem serializes a leafItem for the WAL payload: 2-byte path
// length, path bytes, then the 16-byte document id. This mirrors the page
// body's item encoding deliberately; both are "path, id" pairs and there
// is no reason to invent a second format for the same shape.
func encodeWALItem(item leafItem) []byte {
	buf := make([]byte, 2+len(item.path)+16)
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(item.path)))
	copy(buf[2:2+len(item.path)], item.path)
	copy(buf[2+len(item.path):], item.id[:])
	return buf
}

func decodeWALItem(b []byte) (leafItem, bool) {
	if len(b) < 2 {
		return leafItem{}, false
	}
	pathLen := int(binary.BigEndian.Uint16(b[0:2]))
	if len(b) < 2+pathLen+16 {
		return leafItem{}, false
	}
	path := string(b[2 : 2+pathLen])
	var id [16]byte
	copy(id[:], b[2+pathLen:2+pathLen+16])
	return leafItem{path: path, id: id}, true
}

// decodeWALPath extracts the plain path string from a Delete frame's
// payload, which is just the raw path bytes (no length prefix needed
// since it is the entire payload).
func decodeWALPath(b []byte) (string, bool) {
	if len(b) == 0 {
		return "", false
	}
	return string(b), true
}
