package pagination

import (
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Nanosecond)
	s := Encode(now, "pur_abc123")

	c, err := Decode(s)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !c.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt mismatch: %v vs %v", c.CreatedAt, now)
	}
	if c.ID != "pur_abc123" {
		t.Errorf("ID mismatch: %s", c.ID)
	}
}

func TestDecodeEmpty(t *testing.T) {
	c, err := Decode("")
	if err != nil || c != nil {
		t.Errorf("empty cursor should decode to nil, got %v / %v", c, err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode("!!!not-base64!!!"); err == nil {
		t.Error("expected error for garbage cursor")
	}
	if _, err := Decode("aGVsbG8="); err == nil { // "hello", no separator
		t.Error("expected error for cursor without separator")
	}
}

func TestComputePage(t *testing.T) {
	type row struct {
		at time.Time
		id string
	}
	base := time.Now()
	items := []row{
		{base, "a"},
		{base.Add(-time.Minute), "b"},
		{base.Add(-2 * time.Minute), "c"},
	}

	// Fetched limit+1 rows: expect trim + next cursor
	page, next, more := ComputePage(items, 2, func(r row) (time.Time, string) { return r.at, r.id })
	if len(page) != 2 || !more || next == "" {
		t.Fatalf("expected trimmed page with cursor, got %d items, more=%v", len(page), more)
	}

	// Under the limit: no cursor
	page, next, more = ComputePage(items[:1], 2, func(r row) (time.Time, string) { return r.at, r.id })
	if len(page) != 1 || more || next != "" {
		t.Fatalf("expected full page without cursor")
	}
}
