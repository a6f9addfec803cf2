package trigram

import (
	"encoding/binary"

	"github.com/google/uuid"
)

type walRecord struct {
	id   uuid.UUID
	text string
}

// encodeWALRecord serializes an insert/update payload: 16-byte id, then
// a 4-byte length-prefixed text blob (the concatenated title+content
// scoring buffer, spec §4.5 step 2).
func encodeWALRecord(r walRecord) []byte {
	buf := make([]byte, 16+4+len(r.text))
	copy(buf[0:16], r.id[:])
	binary.BigEndian.PutUint32(buf[16:20], uint32(len(r.text)))
	copy(buf[20:], r.text)
	return buf
}

func decodeWALRecord(b []byte) (walRecord, bool) {
	if len(b) < 20 {
		return walRecord{}, false
	}
	var id uuid.UUID
	copy(id[:], b[0:16])
	n := int(binary.BigEndian.Uint32(b[16:20]))
	if len(b) < 20+n {
		return walRecord{}, false
	}
	return walRecord{id: id, text: string(b[20 : 20+n])}, true
}

// encodeWALDeleteID serializes a delete payload: just the 16-byte id.
func encodeWALDeleteID(id uuid.UUID) []byte {
	buf := make([]byte, 16)
	copy(buf, id[:])
	return buf
}

func decodeWALDeleteID(b []byte) (uuid.UUID, bool) {
	if len(b) != 16 {
		return uuid.UUID{}, false
	}
	var id uuid.UUID
	copy(id[:], b)
	return id, true
}
