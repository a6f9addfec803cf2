// Package walog implements the fixed binary write-ahead-log frame format
// described in spec §6.3 and used independently by both pkg/storage (the
// document WAL) and pkg/pindex (the primary-index WAL). The two
// instantiations never share a log file: each caller opens its own WAL
// instance rooted at its own directory (spec §9 "WAL vs index WALs").
package walog

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kotadb/kotadb/pkg/kotaerr"
	"github.com/kotadb/kotadb/pkg/metrics"
)

// Magic is the 4-byte frame magic, "KWAL".
var Magic = [4]byte{'K', 'W', 'A', 'L'}

// FrameVersion is the current on-disk frame version.
const FrameVersion uint16 = 1

// Kind identifies the kind of WAL entry.
type Kind uint8

const (
	Begin Kind = iota
	Insert
	Update
	Delete
	Commit
	Checkpoint
)

// castagnoli is the CRC32C polynomial table spec §6.3 names.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// headerSize is magic(4) + version(2) + lsn(8) + txid(8) + kind(1) + payloadLen(4).
const headerSize = 4 + 2 + 8 + 8 + 1 + 4
const trailerSize = 4 // CRC32C

// Frame is one decoded WAL record.
type Frame struct {
	LSN     uint64
	TxID    uint64
	Kind    Kind
	Payload []byte
}

func encode(f Frame) []byte {
	buf := make([]byte, headerSize+len(f.Payload)+trailerSize)
	copy(buf[0:4], Magic[:])
	binary.BigEndian.PutUint16(buf[4:6], FrameVersion)
	binary.BigEndian.PutUint64(buf[6:14], f.LSN)
	binary.BigEndian.PutUint64(buf[14:22], f.TxID)
	buf[22] = byte(f.Kind)
	binary.BigEndian.PutUint32(buf[23:27], uint32(len(f.Payload)))
	copy(buf[27:27+len(f.Payload)], f.Payload)
	sum := crc32.Checksum(buf[:27+len(f.Payload)], castagnoli)
	binary.BigEndian.PutUint32(buf[27+len(f.Payload):], sum)
	return buf
}

// decodeFrame reads exactly one frame from r. io.EOF (clean, at a frame
// boundary) is returned unchanged; any other error, including a short
// read mid-frame or a checksum mismatch, means the tail of the log is
// torn (a crash mid-append) and replay should stop without treating it
// as corruption of the whole file.
func decodeFrame(r io.Reader) (Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	if hdr[0] != Magic[0] || hdr[1] != Magic[1] || hdr[2] != Magic[2] || hdr[3] != Magic[3] {
		return Frame{}, io.ErrUnexpectedEOF
	}
	payloadLen := binary.BigEndian.Uint32(hdr[23:27])
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, io.ErrUnexpectedEOF
	}
	var trailer [trailerSize]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return Frame{}, io.ErrUnexpectedEOF
	}
	want := binary.BigEndian.Uint32(trailer[:])
	full := append(append([]byte{}, hdr[:]...), payload...)
	got := crc32.Checksum(full, castagnoli)
	if got != want {
		return Frame{}, io.ErrUnexpectedEOF
	}
	return Frame{
		LSN:     binary.BigEndian.Uint64(hdr[6:14]),
		TxID:    binary.BigEndian.Uint64(hdr[14:22]),
		Kind:    Kind(hdr[22]),
		Payload: payload,
	}, nil
}

// CheckpointPolicy bounds how often Append triggers a checkpoint
// automatically: once Bytes have been written or Interval has elapsed
// since the last checkpoint, whichever comes first, checked on each
// Append (spec §9 open question, resolved in
// DESIGN.md).
type CheckpointPolicy struct {
	Bytes    int64
	Interval time.Duration
}

// DefaultCheckpointPolicy is 16 MiB or 5 minutes.
var DefaultCheckpointPolicy = CheckpointPolicy{
	Bytes:    16 * 1024 * 1024,
	Interval: 5 * time.Minute,
}

// WAL is an append-only log instance backed by a single file. It is safe
// for concurrent use: appends are serialized by an internal mutex, but do
// not block callers who only read the LSN counter.
type WAL struct {
	mu             sync.Mutex
	file           *os.File
	writer         *bufio.Writer
	path           string
	nextLSN        uint64
	bytesSinceCkpt int64
	lastCkpt       time.Time
	policy         CheckpointPolicy
}

// Open opens or creates the WAL file at dir/name. If the file already
// exists, the next LSN is derived from the highest LSN found by a
// forward scan (see Replay for the authoritative recovery path; Open
// only needs the counter, not full replay semantics).
func Open(dir, name string, policy CheckpointPolicy) (*WAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kotaerr.NewIOPermanent("walog.Open", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, kotaerr.NewIOPermanent("walog.Open", err)
	}
	w := &WAL{
		file:     f,
		writer:   bufio.NewWriter(f),
		path:     path,
		policy:   policy,
		lastCkpt: time.Now(),
	}
	if err := w.scanForNextLSN(); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, kotaerr.NewIOPermanent("walog.Open", err)
	}
	return w, nil
}

func (w *WAL) scanForNextLSN() error {
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return kotaerr.NewIOPermanent("walog.Open", err)
	}
	r := bufio.NewReader(w.file)
	var maxLSN uint64
	for {
		frame, err := decodeFrame(r)
		if err != nil {
			break
		}
		if frame.LSN > maxLSN {
			maxLSN = frame.LSN
		}
	}
	w.nextLSN = maxLSN + 1
	return nil
}

// Append writes one frame and returns its assigned LSN. The frame is
// buffered; callers that need durability before returning must call
// Sync afterward (the storage and index layers control their own
// sync boundaries per spec §4.3/§4.4).
func (w *WAL) Append(txID uint64, kind Kind, payload []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	lsn := w.nextLSN
	frame := Frame{LSN: lsn, TxID: txID, Kind: kind, Payload: payload}
	buf := encode(frame)
	n, err := w.writer.Write(buf)
	if err != nil {
		return 0, kotaerr.NewIOTransient("walog.Append", err)
	}
	w.nextLSN++
	w.bytesSinceCkpt += int64(n)

	metrics.WALAppendsTotal.Inc()
	metrics.WALBytesWritten.Add(float64(n))

	if w.shouldCheckpointLocked() {
		if err := w.checkpointLocked(); err != nil {
			return lsn, err
		}
	}
	return lsn, nil
}

func (w *WAL) shouldCheckpointLocked() bool {
	if w.policy.Bytes > 0 && w.bytesSinceCkpt >= w.policy.Bytes {
		return true
	}
	if w.policy.Interval > 0 && time.Since(w.lastCkpt) >= w.policy.Interval {
		return true
	}
	return false
}

// Flush drains the in-process write buffer without fsyncing, the weaker
// guarantee Storage.Flush needs as distinct from Storage.Sync.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		return kotaerr.NewIOTransient("walog.Flush", err)
	}
	return nil
}

// Sync flushes buffered writes and fsyncs the underlying file.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *WAL) syncLocked() error {
	if err := w.writer.Flush(); err != nil {
		return kotaerr.NewIOTransient("walog.Sync", err)
	}
	if err := w.file.Sync(); err != nil {
		return kotaerr.NewIOTransient("walog.Sync", err)
	}
	return nil
}

// Checkpoint appends a Checkpoint frame and resets the checkpoint
// counters. Callers that want an explicit checkpoint (flush()) call this
// directly; Append triggers it automatically per CheckpointPolicy.
func (w *WAL) Checkpoint() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.checkpointLocked()
}

func (w *WAL) checkpointLocked() error {
	lsn := w.nextLSN
	frame := Frame{LSN: lsn, TxID: 0, Kind: Checkpoint}
	buf := encode(frame)
	if _, err := w.writer.Write(buf); err != nil {
		return kotaerr.NewIOTransient("walog.Checkpoint", err)
	}
	w.nextLSN++
	if err := w.syncLocked(); err != nil {
		return err
	}
	w.bytesSinceCkpt = 0
	w.lastCkpt = time.Now()
	metrics.WALCheckpointsTotal.Inc()
	return nil
}

// Replay scans the WAL from the beginning and invokes fn for every frame
// whose checksum validates. It stops at the first torn/corrupt frame
// without error, since that tail represents a crash mid-append (spec §4.3
// "entries for which payload or metadata is missing trigger a replay").
// The number of frames successfully replayed is returned for
// observability (kotadb_wal_replayed_entries).
func (w *WAL) Replay(fn func(Frame) error) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return 0, kotaerr.NewIOTransient("walog.Replay", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return 0, kotaerr.NewIOPermanent("walog.Replay", err)
	}
	r := bufio.NewReader(w.file)
	count := 0
	for {
		frame, err := decodeFrame(r)
		if err != nil {
			break
		}
		if err := fn(frame); err != nil {
			return count, err
		}
		count++
	}
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return count, kotaerr.NewIOPermanent("walog.Replay", err)
	}
	metrics.WALReplayedEntries.Set(float64(count))
	return count, nil
}

// Close flushes, syncs, and closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.syncLocked(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return kotaerr.NewIOPermanent("walog.Close", err)
	}
	return nil
}

// Path returns the WAL's on-disk file path, for diagnostics.
func (w *WAL) Path() string { return w.path }
