// Package document defines the validated primitives and the Document/
// Metadata types that make up KotaDB's data model. Every exported
// constructor here performs its check once, at construction time, so the
// rest of the core can pass these types around without re-validating.
package document

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kotadb/kotadb/pkg/kotaerr"
	"github.com/kotadb/kotadb/pkg/sanitize"
)

// FarFuture is the upper bound for a ValidatedTimestamp: year 3000 in
// Unix milliseconds. Timestamps at or beyond this are rejected, which
// catches the common bug of passing a far-future sentinel or a value in
// the wrong unit (seconds vs milliseconds vs nanoseconds).
const FarFuture = 32503680000000

// MaxTitleLen and MinTitleLen bound ValidatedTitle.
const (
	MinTitleLen = 1
	MaxTitleLen = 1024
)

// MaxTagLen bounds a single ValidatedTag.
const MaxTagLen = 64

// MaxEmbeddingBytes is the size ceiling for the opaque embedding field
// (spec §9 "embedding ownership" open question). Embeddings are passed
// through without interpretation but rejected past this size.
const MaxEmbeddingBytes = 16 * 1024

var reservedFilenames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
}

// ValidatedPath is a logical document path that has already passed every
// traversal and encoding check spec §4.1 requires.
type ValidatedPath struct {
	value string
}

// NewValidatedPath validates p and returns a ValidatedPath, or an
// InvalidInput error describing the first check that failed.
func NewValidatedPath(p string) (ValidatedPath, error) {
	if p == "" {
		return ValidatedPath{}, kotaerr.NewInvalidInput("ValidatedPath", "path must not be empty")
	}
	if !utf8.ValidString(p) {
		return ValidatedPath{}, kotaerr.NewInvalidInput("ValidatedPath", "path must be valid UTF-8")
	}
	if strings.ContainsRune(p, 0) {
		return ValidatedPath{}, kotaerr.NewInvalidInput("ValidatedPath", "path must not contain NUL")
	}
	lower := strings.ToLower(p)
	for _, scheme := range []string{"http://", "https://", "file://", "ftp://"} {
		if strings.HasPrefix(lower, scheme) {
			return ValidatedPath{}, kotaerr.NewInvalidInput("ValidatedPath", "path must not carry a URL scheme")
		}
	}
	if strings.HasPrefix(p, "/") {
		return ValidatedPath{}, kotaerr.NewInvalidInput("ValidatedPath", "path must not be absolute")
	}
	if containsTraversal(p) {
		return ValidatedPath{}, kotaerr.NewInvalidInput("ValidatedPath", "path must not contain traversal segments")
	}
	base := p
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		base = p[idx+1:]
	}
	base = strings.ToLower(strings.TrimSuffix(base, filepathExt(base)))
	if reservedFilenames[base] {
		return ValidatedPath{}, kotaerr.NewInvalidInput("ValidatedPath", "path must not use a reserved filename")
	}
	return ValidatedPath{value: p}, nil
}

func filepathExt(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx > 0 {
		return name[idx:]
	}
	return ""
}

// containsTraversal checks the raw, the percent-decoded, and the
// unicode-escape-decoded forms of p for ".." segments, per spec §4.2's
// traversal sweep applied here at the path-primitive layer too.
func containsTraversal(p string) bool {
	if strings.Contains(p, "..") {
		return true
	}
	lower := strings.ToLower(p)
	if strings.Contains(lower, "%2e%2e") {
		return true
	}
	if strings.Contains(lower, "\\"+"u002e"+"\\"+"u002e") {
		return true
	}
	return false
}

func (v ValidatedPath) String() string { return v.value }

// ValidatedDocumentId wraps a non-nil UUID.
type ValidatedDocumentId struct {
	value uuid.UUID
}

// NewValidatedDocumentId rejects the nil UUID; any other v4 or
// caller-supplied UUID is accepted.
func NewValidatedDocumentId(id uuid.UUID) (ValidatedDocumentId, error) {
	if id == uuid.Nil {
		return ValidatedDocumentId{}, kotaerr.NewInvalidInput("ValidatedDocumentId", "id must not be the nil UUID")
	}
	return ValidatedDocumentId{value: id}, nil
}

// NewDocumentId generates a fresh random (v4) document id.
func NewDocumentId() ValidatedDocumentId {
	return ValidatedDocumentId{value: uuid.New()}
}

// ParseDocumentId parses s as a UUID and validates it.
func ParseDocumentId(s string) (ValidatedDocumentId, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ValidatedDocumentId{}, kotaerr.NewInvalidInput("ValidatedDocumentId", "malformed UUID: "+err.Error())
	}
	return NewValidatedDocumentId(id)
}

func (v ValidatedDocumentId) UUID() uuid.UUID { return v.value }
func (v ValidatedDocumentId) String() string  { return v.value.String() }
func (v ValidatedDocumentId) IsZero() bool    { return v.value == uuid.Nil }

// MarshalText lets ValidatedDocumentId serialize as a plain UUID string
// in JSON metadata sidecars, instead of as an empty object.
func (v ValidatedDocumentId) MarshalText() ([]byte, error) {
	return []byte(v.value.String()), nil
}

// UnmarshalText parses the sidecar's string form back into a
// ValidatedDocumentId. Unlike the constructor, it does not reject the nil
// UUID here; callers load sidecars before validating against live state,
// and a zero id should surface as a quarantine candidate, not a panic.
func (v *ValidatedDocumentId) UnmarshalText(text []byte) error {
	id, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	v.value = id
	return nil
}

// ValidatedTitle is a trimmed, length-bounded title.
type ValidatedTitle struct {
	value string
}

func NewValidatedTitle(t string) (ValidatedTitle, error) {
	trimmed := strings.TrimSpace(t)
	n := utf8.RuneCountInString(trimmed)
	if n < MinTitleLen || n > MaxTitleLen {
		return ValidatedTitle{}, kotaerr.NewInvalidInput("ValidatedTitle", "title length must be between 1 and 1024 characters")
	}
	return ValidatedTitle{value: trimmed}, nil
}

func (v ValidatedTitle) String() string { return v.value }

// ValidatedTag matches [A-Za-z0-9_-]+ and is at most MaxTagLen chars.
type ValidatedTag struct {
	value string
}

func NewValidatedTag(t string) (ValidatedTag, error) {
	if t == "" || len(t) > MaxTagLen {
		return ValidatedTag{}, kotaerr.NewInvalidInput("ValidatedTag", "tag must be 1-64 characters")
	}
	for _, r := range t {
		if !isTagRune(r) {
			return ValidatedTag{}, kotaerr.NewInvalidInput("ValidatedTag", "tag must match [A-Za-z0-9_-]+")
		}
	}
	return ValidatedTag{value: t}, nil
}

func isTagRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		return true
	default:
		return false
	}
}

func (v ValidatedTag) String() string { return v.value }

// ValidatedTimestamp is a monotonic integer timestamp in Unix
// milliseconds, strictly between 0 and FarFuture.
type ValidatedTimestamp struct {
	millis int64
}

func NewValidatedTimestamp(millis int64) (ValidatedTimestamp, error) {
	if millis <= 0 || millis >= FarFuture {
		return ValidatedTimestamp{}, kotaerr.NewInvalidInput("ValidatedTimestamp", "timestamp must be > 0 and < year 3000")
	}
	return ValidatedTimestamp{millis: millis}, nil
}

// Now returns the current time as a ValidatedTimestamp.
func Now() ValidatedTimestamp {
	return ValidatedTimestamp{millis: time.Now().UnixMilli()}
}

func (v ValidatedTimestamp) Millis() int64     { return v.millis }
func (v ValidatedTimestamp) Time() time.Time   { return time.UnixMilli(v.millis) }
func (v ValidatedTimestamp) Before(o ValidatedTimestamp) bool { return v.millis < o.millis }

// TimestampPair is a (created, updated) pair with updated >= created
// enforced at construction and by Touch.
type TimestampPair struct {
	created ValidatedTimestamp
	updated ValidatedTimestamp
}

func NewTimestampPair(created, updated ValidatedTimestamp) (TimestampPair, error) {
	if updated.millis < created.millis {
		return TimestampPair{}, kotaerr.NewInvalidInput("TimestampPair", "updated must be >= created")
	}
	return TimestampPair{created: created, updated: updated}, nil
}

// NewTimestampPairNow returns a pair with both fields set to now.
func NewTimestampPairNow() TimestampPair {
	now := Now()
	return TimestampPair{created: now, updated: now}
}

func (p TimestampPair) Created() ValidatedTimestamp { return p.created }
func (p TimestampPair) Updated() ValidatedTimestamp { return p.updated }

// Touch advances Updated monotonically. If the clock has not moved since
// the last Updated value, Updated is bumped by one millisecond so the
// monotonicity invariant (updated >= created, and updated strictly
// advances on every Touch) always holds.
func (p TimestampPair) Touch() TimestampPair {
	now := Now()
	if now.millis <= p.updated.millis {
		now = ValidatedTimestamp{millis: p.updated.millis + 1}
	}
	return TimestampPair{created: p.created, updated: now}
}

// ValidatedLimit bounds a result-set size between 1 and 100,000.
type ValidatedLimit struct {
	value int
}

func NewValidatedLimit(n int) (ValidatedLimit, error) {
	if n < 1 || n > 100_000 {
		return ValidatedLimit{}, kotaerr.NewInvalidInput("ValidatedLimit", "limit must be between 1 and 100000")
	}
	return ValidatedLimit{value: n}, nil
}

func (v ValidatedLimit) Int() int { return v.value }

// MinSearchQueryLen and MaxSearchQueryLen bound ValidatedSearchQuery's raw
// input, measured in runes before sanitization.
const (
	MinSearchQueryLen = 1
	MaxSearchQueryLen = 1024
)

// ValidatedSearchQuery is a raw search string that has passed sanitize's
// pipeline and the length/non-empty-unless-wildcard invariant spec §4.1
// requires of it, alongside every other validated primitive here.
type ValidatedSearchQuery struct {
	text       string
	terms      []string
	isWildcard bool
}

// NewValidatedSearchQuery sanitizes raw with opts and wraps the result,
// rejecting raw outside [MinSearchQueryLen, MaxSearchQueryLen] runes and
// any sanitized result with no terms unless it is an explicit wildcard.
func NewValidatedSearchQuery(raw string, opts sanitize.Options) (ValidatedSearchQuery, error) {
	n := utf8.RuneCountInString(raw)
	if n < MinSearchQueryLen || n > MaxSearchQueryLen {
		return ValidatedSearchQuery{}, kotaerr.NewInvalidInput("ValidatedSearchQuery", "query length must be between 1 and 1024 characters")
	}
	sq, err := sanitize.Sanitize(raw, opts)
	if err != nil {
		return ValidatedSearchQuery{}, err
	}
	if len(sq.Terms) == 0 && !sq.IsWildcard {
		return ValidatedSearchQuery{}, kotaerr.NewInvalidInput("ValidatedSearchQuery", "query has no terms after sanitization")
	}
	return ValidatedSearchQuery{text: sq.Text, terms: sq.Terms, isWildcard: sq.IsWildcard}, nil
}

func (v ValidatedSearchQuery) Text() string     { return v.text }
func (v ValidatedSearchQuery) Terms() []string  { return v.terms }
func (v ValidatedSearchQuery) IsWildcard() bool { return v.isWildcard }
