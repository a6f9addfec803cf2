package trigram

import (
	"strings"

	"github.com/kotadb/kotadb/pkg/document"
)

// Query is the sanitized search request both index variants accept
// (spec §6.2's `Query{ terms, tags, path_pattern, limit }`). Terms are
// expected to already have passed through pkg/sanitize; trigram
// extraction re-joins them with spaces so trigram windows still respect
// word boundaries between terms.
type Query struct {
	Terms       []string
	Tags        []document.ValidatedTag
	PathPattern *string
	Limit       int
}

// Text reconstructs the space-joined search buffer the trigram
// extractor walks.
func (q Query) Text() string { return strings.Join(q.Terms, " ") }
