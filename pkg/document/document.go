package document

import (
	"crypto/sha256"

	"github.com/kotadb/kotadb/pkg/kotaerr"
)

// State is the document lifecycle state machine (spec §3): Draft ->
// Persisted -> Modified -> Persisted. Draft documents never reach
// storage; insert only accepts the Draft->Persisted transition, update
// only accepts Modified.
type State int

const (
	Draft State = iota
	Persisted
	Modified
)

func (s State) String() string {
	switch s {
	case Draft:
		return "Draft"
	case Persisted:
		return "Persisted"
	case Modified:
		return "Modified"
	default:
		return "Unknown"
	}
}

// Document is an immutable-by-mutation record: every field change
// produces a new value via Builder methods, never an in-place write.
type Document struct {
	id          ValidatedDocumentId
	path        ValidatedPath
	title       ValidatedTitle
	content     []byte
	tags        []ValidatedTag
	timestamps  TimestampPair
	contentHash [32]byte
	embedding   []float32
	state       State
}

// Builder constructs a Document through the Draft state, enforcing that
// only a fully-formed, validated value can reach Persisted.
type Builder struct {
	id        ValidatedDocumentId
	path      ValidatedPath
	title     ValidatedTitle
	content   []byte
	tags      []ValidatedTag
	timestamp TimestampPair
	embedding []float32
	hasId     bool
}

// NewBuilder starts a Draft document with a freshly generated id.
func NewBuilder() *Builder {
	return &Builder{
		id:        NewDocumentId(),
		timestamp: NewTimestampPairNow(),
		hasId:     true,
	}
}

func (b *Builder) WithId(id ValidatedDocumentId) *Builder {
	b.id = id
	b.hasId = true
	return b
}

func (b *Builder) WithPath(p ValidatedPath) *Builder {
	b.path = p
	return b
}

func (b *Builder) WithTitle(t ValidatedTitle) *Builder {
	b.title = t
	return b
}

func (b *Builder) WithContent(c []byte) *Builder {
	b.content = c
	return b
}

func (b *Builder) WithTags(tags []ValidatedTag) *Builder {
	b.tags = tags
	return b
}

func (b *Builder) WithTimestamps(ts TimestampPair) *Builder {
	b.timestamp = ts
	return b
}

func (b *Builder) WithEmbedding(e []float32) *Builder {
	b.embedding = e
	return b
}

// IntoPersisted validates the accumulated fields and returns a Document
// in the Persisted state, ready for Storage.Insert. This is the only path
// from Draft to Persisted; the storage layer trusts it and does not
// re-derive the hash from scratch (it re-validates structurally via the
// Validated wrapper layer instead, per spec §4.6).
func (b *Builder) IntoPersisted() (Document, error) {
	if !b.hasId || b.id.IsZero() {
		return Document{}, kotaerr.NewInvalidInput("Builder.IntoPersisted", "document must have a non-nil id")
	}
	if b.path == (ValidatedPath{}) {
		return Document{}, kotaerr.NewInvalidInput("Builder.IntoPersisted", "document must have a path")
	}
	if b.title == (ValidatedTitle{}) {
		return Document{}, kotaerr.NewInvalidInput("Builder.IntoPersisted", "document must have a title")
	}
	if len(b.embedding) > 0 && len(b.embedding)*4 > MaxEmbeddingBytes {
		return Document{}, kotaerr.NewInvalidInput("Builder.IntoPersisted", "embedding exceeds the 16 KiB size ceiling")
	}
	doc := Document{
		id:         b.id,
		path:       b.path,
		title:      b.title,
		content:    b.content,
		tags:       b.tags,
		timestamps: b.timestamp,
		embedding:  b.embedding,
		state:      Persisted,
	}
	doc.contentHash = contentHash(doc.content)
	return doc, nil
}

// contentHash computes the SHA-256 of content alone. Per the resolved
// open question in DESIGN.md, embedding bytes are excluded: the
// embedding's lifecycle belongs to an external service and must not
// perturb the hash used for payload change detection.
func contentHash(content []byte) [32]byte {
	return sha256.Sum256(content)
}

// AsModified returns a copy of d in the Modified state with updated
// content/title/tags/embedding, a bumped Touch()'d timestamp, and a
// recomputed content hash. Only a Modified document may be passed to
// Storage.Update.
func (d Document) AsModified(title ValidatedTitle, content []byte, tags []ValidatedTag, embedding []float32) (Document, error) {
	if len(embedding) > 0 && len(embedding)*4 > MaxEmbeddingBytes {
		return Document{}, kotaerr.NewInvalidInput("Document.AsModified", "embedding exceeds the 16 KiB size ceiling")
	}
	cp := d
	cp.title = title
	cp.content = content
	cp.tags = tags
	cp.embedding = embedding
	cp.timestamps = d.timestamps.Touch()
	cp.contentHash = contentHash(content)
	cp.state = Modified
	return cp, nil
}

func (d Document) ID() ValidatedDocumentId   { return d.id }
func (d Document) Path() ValidatedPath       { return d.path }
func (d Document) Title() ValidatedTitle     { return d.title }
func (d Document) Content() []byte           { return d.content }
func (d Document) Tags() []ValidatedTag      { return d.tags }
func (d Document) Timestamps() TimestampPair { return d.timestamps }
func (d Document) ContentHash() [32]byte     { return d.contentHash }
func (d Document) Embedding() []float32      { return d.embedding }
func (d Document) State() State              { return d.state }

// VerifyHash reports whether d.contentHash matches d.content (spec §4.3,
// invariant (e)). The storage layer does not call it: its Get compares
// the payload file's hash with the hash recorded in the sidecar.
func (d Document) VerifyHash() bool {
	return contentHash(d.content) == d.contentHash
}

// Metadata is the per-document sidecar persisted next to the payload; it
// is the authoritative in-process cache loaded at startup (spec §3).
type Metadata struct {
	ID           ValidatedDocumentId `json:"id"`
	PayloadPath  string              `json:"payload_path"`
	LogicalPath  string              `json:"logical_path"`
	Title        string              `json:"title"`
	Size         int64               `json:"size"`
	Created      int64               `json:"created"`
	Updated      int64               `json:"updated"`
	Hash         string              `json:"hash"`
	Tags         []string            `json:"tags,omitempty"`
	Embedding    []float32           `json:"embedding,omitempty"`
}

// ToMetadata projects a Document into its sidecar form. payloadPath is
// the absolute on-disk path of the document's .md file.
func (d Document) ToMetadata(payloadPath string) Metadata {
	tags := make([]string, 0, len(d.tags))
	for _, t := range d.tags {
		tags = append(tags, t.String())
	}
	return Metadata{
		ID:          d.id,
		PayloadPath: payloadPath,
		LogicalPath: d.path.String(),
		Title:       d.title.String(),
		Size:        int64(len(d.content)),
		Created:     d.timestamps.Created().Millis(),
		Updated:     d.timestamps.Updated().Millis(),
		Hash:        hashHex(d.contentHash),
		Tags:        tags,
		Embedding:   d.embedding,
	}
}

func hashHex(h [32]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, b := range h {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}
