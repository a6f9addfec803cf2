package document

import (
	"strings"
	"testing"

	"github.com/kotadb/kotadb/pkg/sanitize"
)

func TestNewValidatedPathRejectsTraversal(t *testing.T) {
	bad := []string{
		"../etc/passwd",
		"notes/../../etc/passwd",
		"notes/%2e%2e/passwd",
		"/absolute/path.md",
		"http://example.com/a.md",
		"a\x00b.md",
	}
	for _, p := range bad {
		if _, err := NewValidatedPath(p); err == nil {
			t.Errorf("NewValidatedPath(%q) = nil error, want InvalidInput", p)
		}
	}
}

func TestNewValidatedPathAcceptsOrdinary(t *testing.T) {
	good := []string{"a.md", "notes/todo.md", "deeply/nested/path/file.md"}
	for _, p := range good {
		if _, err := NewValidatedPath(p); err != nil {
			t.Errorf("NewValidatedPath(%q) = %v, want nil", p, err)
		}
	}
}

func TestNewValidatedTimestampBounds(t *testing.T) {
	if _, err := NewValidatedTimestamp(0); err == nil {
		t.Error("expected timestamp 0 to be rejected")
	}
	if _, err := NewValidatedTimestamp(-5); err == nil {
		t.Error("expected negative timestamp to be rejected")
	}
	if _, err := NewValidatedTimestamp(FarFuture); err == nil {
		t.Error("expected timestamp at FarFuture to be rejected")
	}
	if _, err := NewValidatedTimestamp(FarFuture - 1); err != nil {
		t.Errorf("expected timestamp at FarFuture-1 to be accepted, got %v", err)
	}
	if _, err := NewValidatedTimestamp(1); err != nil {
		t.Errorf("expected timestamp 1 to be accepted, got %v", err)
	}
}

func TestNewTimestampPairRejectsUpdatedBeforeCreated(t *testing.T) {
	created, _ := NewValidatedTimestamp(1000)
	updated, _ := NewValidatedTimestamp(500)
	if _, err := NewTimestampPair(created, updated); err == nil {
		t.Error("expected error when updated < created")
	}
}

func TestTouchAdvancesMonotonically(t *testing.T) {
	pair := NewTimestampPairNow()
	next := pair.Touch()
	if next.Updated().Millis() <= pair.Updated().Millis() {
		t.Error("Touch must strictly advance Updated")
	}
}

func TestValidatedTagRejectsInvalidChars(t *testing.T) {
	bad := []string{"", "has space", "semi;colon", "slash/tag"}
	for _, tag := range bad {
		if _, err := NewValidatedTag(tag); err == nil {
			t.Errorf("NewValidatedTag(%q) = nil error, want InvalidInput", tag)
		}
	}
	if _, err := NewValidatedTag("valid_tag-1"); err != nil {
		t.Errorf("expected valid_tag-1 to be accepted, got %v", err)
	}
}

func TestValidatedLimitBounds(t *testing.T) {
	if _, err := NewValidatedLimit(0); err == nil {
		t.Error("expected limit 0 to be rejected")
	}
	if _, err := NewValidatedLimit(100_001); err == nil {
		t.Error("expected limit above 100000 to be rejected")
	}
	if _, err := NewValidatedLimit(1); err != nil {
		t.Errorf("expected limit 1 to be accepted, got %v", err)
	}
}

func TestValidatedTitleTrimsAndBounds(t *testing.T) {
	title, err := NewValidatedTitle("  hello  ")
	if err != nil {
		t.Fatal(err)
	}
	if title.String() != "hello" {
		t.Errorf("title = %q, want trimmed hello", title.String())
	}
	if _, err := NewValidatedTitle("   "); err == nil {
		t.Error("expected all-whitespace title to be rejected")
	}
}

func TestValidatedSearchQueryAcceptsWildcard(t *testing.T) {
	q, err := NewValidatedSearchQuery("*", sanitize.Options{})
	if err != nil {
		t.Fatalf("NewValidatedSearchQuery(*): %v", err)
	}
	if !q.IsWildcard() {
		t.Error("expected is_wildcard for literal *")
	}
}

func TestValidatedSearchQueryRejectsEmptyAfterSanitization(t *testing.T) {
	if _, err := NewValidatedSearchQuery("   ", sanitize.Options{}); err == nil {
		t.Error("expected whitespace-only query to be rejected")
	}
}

func TestValidatedSearchQueryRejectsOversizedInput(t *testing.T) {
	big := strings.Repeat("a", MaxSearchQueryLen+1)
	if _, err := NewValidatedSearchQuery(big, sanitize.Options{}); err == nil {
		t.Error("expected query over MaxSearchQueryLen to be rejected")
	}
}

func TestValidatedSearchQueryAcceptsOrdinaryTerms(t *testing.T) {
	q, err := NewValidatedSearchQuery("quick brown fox", sanitize.Options{})
	if err != nil {
		t.Fatalf("NewValidatedSearchQuery: %v", err)
	}
	if len(q.Terms()) != 3 {
		t.Errorf("Terms() = %v, want 3 terms", q.Terms())
	}
	if q.IsWildcard() {
		t.Error("ordinary query should not be a wildcard")
	}
}
