package storage

import "encoding/json"

// record is the WAL payload shape for every storage mutation. insert and
// update carry the full metadata plus the raw payload bytes so replay can
// reconstruct both files without touching anything but the WAL (spec
// §4.3 "re-write the payload from WAL if it contained one").
type record struct {
	ID          string   `json:"id"`
	LogicalPath string   `json:"logical_path,omitempty"`
	Title       string   `json:"title,omitempty"`
	Payload     []byte   `json:"payload,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Created     int64    `json:"created,omitempty"`
	Updated     int64    `json:"updated,omitempty"`
}

func encodeRecord(r record) []byte {
	b, err := json.Marshal(r)
	if err != nil {
		// record contains only JSON-safe fields (strings, []byte,
		// ints); a marshal failure here means the Go runtime itself is
		// broken, not a reachable data-dependent error.
		panic("storage: unreachable json.Marshal failure: " + err.Error())
	}
	return b
}

func decodeRecord(b []byte) (record, error) {
	var r record
	err := json.Unmarshal(b, &r)
	return r, err
}
