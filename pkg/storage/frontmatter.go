package storage

import (
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---\n"

// frontmatter is the normalized YAML block the engine prepends to a
// payload when tags are present and the payload does not already carry
// one (spec §4.3 "Frontmatter policy").
type frontmatter struct {
	Title   string   `yaml:"title"`
	Tags    []string `yaml:"tags,omitempty"`
	Created int64    `yaml:"created"`
	Updated int64    `yaml:"updated"`
}

// splitFrontmatter separates a well-formed "---\n...\n---\n" header from
// the rest of the payload. ok is false if no well-formed header is
// present, in which case body is the whole input unchanged — a malformed
// header is tolerated and treated as opaque content, never an error.
func splitFrontmatter(payload []byte) (fm frontmatter, body []byte, ok bool) {
	s := string(payload)
	if !strings.HasPrefix(s, frontmatterDelim) {
		return frontmatter{}, payload, false
	}
	rest := s[len(frontmatterDelim):]
	end := strings.Index(rest, "\n"+frontmatterDelim)
	if end < 0 {
		return frontmatter{}, payload, false
	}
	raw := rest[:end]
	remainder := rest[end+len("\n"+frontmatterDelim):]

	var parsed frontmatter
	if err := yaml.Unmarshal([]byte(raw), &parsed); err != nil {
		return frontmatter{}, payload, false
	}
	return parsed, []byte(remainder), true
}

// withFrontmatter prepends a normalized frontmatter block to body. Called
// on insert when tags is non-empty and the payload has no existing
// well-formed header.
func withFrontmatter(fm frontmatter, body []byte) ([]byte, error) {
	raw, err := yaml.Marshal(fm)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.WriteString(frontmatterDelim)
	b.Write(raw)
	b.WriteString(frontmatterDelim)
	b.Write(body)
	return []byte(b.String()), nil
}
