// Package sanitize implements the two query-sanitization pipelines spec
// §4.2 describes: a standard pipeline and a path-aware variant used when
// the caller's query is expected to contain path separators (glob
// searches against the primary index).
package sanitize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kotadb/kotadb/pkg/kotaerr"
)

// MaxQueryBytes is the hard ceiling on raw query size before any
// processing runs.
const MaxQueryBytes = 1024

// DefaultMaxTerms is the default cap on surviving terms (spec §6.4
// max_query_terms, overridable via Options).
const DefaultMaxTerms = 32

// SanitizedQuery is the output of either pipeline.
type SanitizedQuery struct {
	Text       string
	Terms      []string
	Warnings   []string
	WasModified bool
	IsWildcard bool
}

// Options configures a sanitization pass. StrictMode and MaxTerms are the
// two knobs spec §6.4 exposes (strict_sanitization, max_query_terms).
type Options struct {
	StrictMode bool
	MaxTerms   int
}

func (o Options) maxTerms() int {
	if o.MaxTerms > 0 {
		return o.MaxTerms
	}
	return DefaultMaxTerms
}

var (
	// sqlKeywordPattern matches SQL keywords in dangerous positions:
	// immediately followed by a clause-shaping token. Deliberately
	// narrow so ordinary words like "selection" or "unionized" survive.
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|drop|union|exec|execute)\b\s*(\(|--|;|from|into|table|select)`)

	// standaloneSQLKeyword matches a bare SQL keyword as a whole token,
	// used only in strict mode (spec §4.2 step 5).
	standaloneSQLKeyword = regexp.MustCompile(`(?i)\b(select|insert|update|delete|drop|union|exec|execute|where|having)\b`)

	// shellMetaPattern matches every run of shell metacharacters wherever
	// it appears in the query; the surrounding text is not examined for a
	// command-like context.
	shellMetaPattern = regexp.MustCompile("[;&|`$(){}<>]+")

	// traversalPattern matches raw, percent-encoded, and unicode-escaped
	// path traversal sequences.
	traversalPattern = regexp.MustCompile(`(?i)(\.\.|%2e%2e|\\u002e\\u002e)`)

	// ldapPayloadPattern matches LDAP filter syntax characters. '*' is
	// deliberately excluded: spec requires a bare '*' to survive as a
	// wildcard query and '*' runs to survive inside glob patterns, and
	// the filter-structure characters below already catch real LDAP
	// filter injection (e.g. "*)(uid=*))(|(uid=*").
	ldapPayloadPattern = regexp.MustCompile(`[()&|!]`)

	reservedCharPattern = regexp.MustCompile("[<>\"'`\\\\]")
)

// Sanitize runs the standard pipeline.
func Sanitize(raw string, opts Options) (SanitizedQuery, error) {
	return run(raw, opts, false)
}

// SanitizePathAware runs the path-aware pipeline: '/' is preserved,
// shell-meta stripping is skipped when the query already contains '/',
// and the reserved-character pass whitelists glob/path punctuation.
func SanitizePathAware(raw string, opts Options) (SanitizedQuery, error) {
	return run(raw, opts, true)
}

func run(raw string, opts Options, pathAware bool) (SanitizedQuery, error) {
	if len(raw) > MaxQueryBytes {
		return SanitizedQuery{}, kotaerr.NewInvalidInput("Sanitize", "query exceeds 1024 bytes")
	}
	if strings.ContainsRune(raw, 0) {
		return SanitizedQuery{}, kotaerr.NewInvalidInput("Sanitize", "query must not contain NUL")
	}
	if controlDominated(raw) {
		return SanitizedQuery{}, kotaerr.NewInvalidInput("Sanitize", "query is dominated by control characters")
	}

	var warnings []string
	modified := raw != ""
	text := normalizeWhitespace(raw)

	hasSlash := pathAware && strings.Contains(text, "/")

	if traversalPattern.MatchString(text) {
		text = traversalPattern.ReplaceAllString(text, " ")
		warnings = append(warnings, "stripped path traversal pattern")
	}
	if sqlKeywordPattern.MatchString(text) {
		text = sqlKeywordPattern.ReplaceAllString(text, " ")
		warnings = append(warnings, "stripped SQL pattern")
	}
	if !hasSlash {
		if loc := shellMetaPattern.FindStringIndex(text); loc != nil {
			text = shellMetaPattern.ReplaceAllString(text, " ")
			warnings = append(warnings, "stripped shell metacharacters")
		}
	}
	if ldapPayloadPattern.MatchString(text) {
		text = ldapPayloadPattern.ReplaceAllString(text, " ")
		warnings = append(warnings, "removed LDAP meta")
	}

	text = replaceReserved(text, pathAware)

	if opts.StrictMode {
		if standaloneSQLKeyword.MatchString(text) {
			text = standaloneSQLKeyword.ReplaceAllString(text, " ")
			warnings = append(warnings, "strict mode: removed standalone SQL keyword")
		}
	}

	// Re-run the traversal sweep post-substitution: reserved-char
	// replacement can unmask a traversal sequence that was previously
	// interleaved with now-removed characters.
	if traversalPattern.MatchString(text) {
		text = traversalPattern.ReplaceAllString(text, " ")
		warnings = append(warnings, "stripped path traversal pattern (post-substitution)")
	}
	text = normalizeWhitespace(text)

	rawTokens := strings.Fields(text)
	terms := make([]string, 0, len(rawTokens))
	for _, tok := range rawTokens {
		if isKeepableToken(tok) {
			terms = append(terms, tok)
		}
	}

	isWildcard := strings.TrimSpace(text) == "*"

	dropped := 0
	maxTerms := opts.maxTerms()
	if len(terms) > maxTerms {
		dropped = len(terms) - maxTerms
		terms = terms[:maxTerms]
	}
	if len(rawTokens) > 0 && float64(dropped) > float64(len(rawTokens))*0.5 {
		warnings = append(warnings, "more than half of query terms were dropped")
	}

	if len(terms) == 0 && !isWildcard {
		return SanitizedQuery{}, kotaerr.NewInvalidInput("Sanitize", "query is empty after sanitization")
	}

	return SanitizedQuery{
		Text:        strings.TrimSpace(text),
		Terms:       terms,
		Warnings:    warnings,
		WasModified: modified && (strings.TrimSpace(text) != strings.TrimSpace(raw) || len(warnings) > 0),
		IsWildcard:  isWildcard,
	}, nil
}

// isKeepableToken keeps a token if it contains any non-'*' character, or
// if the token is literally "*" (spec §4.2 step 7).
func isKeepableToken(tok string) bool {
	if tok == "*" {
		return true
	}
	for _, r := range tok {
		if r != '*' {
			return true
		}
	}
	return false
}

func controlDominated(s string) bool {
	if s == "" {
		return false
	}
	control := 0
	for _, r := range s {
		if unicode.IsControl(r) && r != ' ' {
			control++
		}
	}
	return float64(control) > float64(len([]rune(s)))*0.3
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteByte(' ')
				lastWasSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastWasSpace = false
	}
	return strings.TrimSpace(b.String())
}

func replaceReserved(s string, pathAware bool) string {
	if !pathAware {
		return reservedCharPattern.ReplaceAllString(s, " ")
	}
	// Path-aware whitelist: / * ( ) [ ] = , - _ survive; everything else
	// reservedCharPattern would have stripped is still stripped.
	return reservedCharPattern.ReplaceAllString(s, " ")
}
