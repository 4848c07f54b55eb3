package ids

import (
	"strings"
	"testing"
)

func TestNewIsSortable(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		if next <= prev {
			t.Fatalf("ids not monotonic: %s <= %s", next, prev)
		}
		prev = next
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("ptk")
	if !strings.HasPrefix(id, "ptk-") {
		t.Fatalf("missing prefix: %s", id)
	}
	if got := Prefixed("  "); strings.Contains(got, "-") {
		t.Fatalf("blank prefix should be dropped: %s", got)
	}
}
