package pattern

import (
	"context"
	"testing"
	"time"

	"github.com/safeguardhq/safeguard/internal/idgen"
)

func newTestFinding(personID string, kind Kind, detectedAt time.Time) *Finding {
	return &Finding{
		ID:         idgen.WithPrefix("flag_"),
		PersonID:   personID,
		Kind:       kind,
		DetectedAt: detectedAt,
		Confidence: 0.6,
		Evidence:   map[string]any{"count": 3, "totalVolume": 3600},
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	f := newTestFinding("per_1", KindBulkBuying, time.Now().UTC())
	if err := store.Create(ctx, f); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, f.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Kind != KindBulkBuying || got.Confidence != 0.6 {
		t.Errorf("unexpected finding: %+v", got)
	}

	// Returned copy must not alias the stored evidence map
	got.Evidence["count"] = 999
	again, _ := store.Get(ctx, f.ID)
	if again.Evidence["count"] == 999 {
		t.Error("evidence map aliased between caller and store")
	}
}

func TestMemoryStore_UnreviewedFiltering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	a := newTestFinding("per_1", KindBulkBuying, now.Add(-time.Hour))
	b := newTestFinding("per_1", KindUnusualTime, now)
	c := newTestFinding("per_2", KindBulkBuying, now)
	store.Create(ctx, a)
	store.Create(ctx, b)
	store.Create(ctx, c)

	store.MarkReviewed(ctx, a.ID, "inspector-7")

	unreviewed, err := store.ListUnreviewedByPerson(ctx, "per_1")
	if err != nil {
		t.Fatalf("ListUnreviewedByPerson failed: %v", err)
	}
	if len(unreviewed) != 1 || unreviewed[0].ID != b.ID {
		t.Errorf("expected only the unreviewed finding, got %d", len(unreviewed))
	}

	all, _ := store.ListByPerson(ctx, "per_1")
	if len(all) != 2 {
		t.Errorf("expected 2 findings for per_1, got %d", len(all))
	}

	active, _ := store.ListActive(ctx, 0)
	if len(active) != 2 {
		t.Errorf("expected 2 active findings, got %d", len(active))
	}
	// Newest first
	if active[0].DetectedAt.Before(active[1].DetectedAt) {
		t.Error("active findings not newest first")
	}
}

func TestMemoryStore_MarkReviewed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	f := newTestFinding("per_1", KindBulkBuying, time.Now().UTC())
	store.Create(ctx, f)

	if err := store.MarkReviewed(ctx, f.ID, "inspector-7"); err != nil {
		t.Fatalf("MarkReviewed failed: %v", err)
	}
	got, _ := store.Get(ctx, f.ID)
	if !got.Reviewed || got.ReviewedBy != "inspector-7" || got.ReviewedAt.IsZero() {
		t.Errorf("review state not recorded: %+v", got)
	}

	if err := store.MarkReviewed(ctx, "flag_missing", "x"); err != ErrFindingNotFound {
		t.Errorf("expected ErrFindingNotFound, got %v", err)
	}
}
