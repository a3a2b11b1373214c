package ids

import (
	"testing"
	"time"
)

func TestNewIsSortableAndUnique(t *testing.T) {
	prev := New()
	seen := map[string]bool{prev: true}
	for i := 0; i < 1000; i++ {
		next := New()
		if len(next) != 26 {
			t.Fatalf("unexpected id length %d", len(next))
		}
		if next <= prev {
			t.Fatalf("ids not monotonic: %s then %s", prev, next)
		}
		if seen[next] {
			t.Fatalf("duplicate id %s", next)
		}
		seen[next] = true
		prev = next
	}
}

func TestTimeRoundTrip(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Time(New())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Fatalf("unexpected id time %v", ts)
	}
	if _, err := Time("not-a-ulid"); err == nil {
		t.Fatalf("expected parse error")
	}
}
