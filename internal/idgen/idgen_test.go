package idgen

import (
	"regexp"
	"testing"
)

var entryPattern = regexp.MustCompile(`^le-[a-zA-Z0-9]{10}$`)

func TestEntry_Shape(t *testing.T) {
	for i := 0; i < 100; i++ {
		if id := Entry(); !entryPattern.MatchString(id) {
			t.Fatalf("Entry() = %q, want le- followed by %d alphanumerics", id, Length)
		}
	}
}

func TestEntry_Unique(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id := Entry()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}
