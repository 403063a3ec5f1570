//go:build integration

package dailytotal_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/safeguardhq/safeguard/internal/dailytotal"
	"github.com/safeguardhq/safeguard/internal/person"
	"github.com/safeguardhq/safeguard/internal/testutil"
)

func seedPGPerson(t *testing.T, store *person.PostgresStore, id string) {
	t.Helper()
	err := store.Create(context.Background(), &person.Person{
		ID: id, IdentityNumber: "444444444444", Name: "Total Test", Age: 35,
		RegisteredAt: time.Now().UTC(), RiskTier: person.TierGreen,
	})
	if err != nil {
		t.Fatalf("seed person failed: %v", err)
	}
}

func TestPostgresDailyTotal_ReserveWithinLimit(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	seedPGPerson(t, person.NewPostgresStore(db), "per_pgtotal1")
	store := dailytotal.NewPostgresStore(db)
	ctx := context.Background()
	day := dailytotal.DayOf(time.Now().UTC())

	res, err := store.Reserve(ctx, "per_pgtotal1", day, 32.1, 40)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if !res.Admitted || res.NewTotal != 32.1 {
		t.Errorf("unexpected reservation: %+v", res)
	}

	// The second reservation would cross the cap and must leave the row alone
	res, err = store.Reserve(ctx, "per_pgtotal1", day, 10, 40)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if res.Admitted {
		t.Error("over-cap reservation admitted")
	}
	if res.CurrentUnits != 32.1 {
		t.Errorf("reject should report current units 32.1, got %v", res.CurrentUnits)
	}

	got, _ := store.Get(ctx, "per_pgtotal1", day)
	if got.UnitsToday != 32.1 {
		t.Errorf("rejected reservation mutated the row: %v", got.UnitsToday)
	}
}

func TestPostgresDailyTotal_ConcurrentReserve(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	seedPGPerson(t, person.NewPostgresStore(db), "per_pgtotal2")
	store := dailytotal.NewPostgresStore(db)
	ctx := context.Background()
	day := dailytotal.DayOf(time.Now().UTC())

	// 16 workers race to add 7.0 units under a 40-unit cap. The
	// conditional UPDATE admits exactly 5.
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Reserve(ctx, "per_pgtotal2", day, 7.0, 40)
			if err != nil {
				t.Errorf("Reserve failed: %v", err)
				return
			}
			if res.Admitted {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 5 {
		t.Errorf("expected exactly 5 admissions, got %d", admitted)
	}
	got, _ := store.Get(ctx, "per_pgtotal2", day)
	if got.UnitsToday != 35 {
		t.Errorf("expected 35 units after race, got %v", got.UnitsToday)
	}
}

func TestPostgresDailyTotal_AddAndViolations(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	seedPGPerson(t, person.NewPostgresStore(db), "per_pgtotal3")
	store := dailytotal.NewPostgresStore(db)
	ctx := context.Background()

	// Backfill path: Add ignores the cap
	day1 := "2026-02-10"
	if _, err := store.Add(ctx, "per_pgtotal3", day1, 48); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	newTotal, err := store.Add(ctx, "per_pgtotal3", day1, 5)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if newTotal != 53 {
		t.Errorf("expected running total 53, got %v", newTotal)
	}

	day2 := "2026-02-11"
	if _, err := store.Add(ctx, "per_pgtotal3", day2, 12); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	violations, err := store.CountViolations(ctx, "per_pgtotal3", 40)
	if err != nil {
		t.Fatalf("CountViolations failed: %v", err)
	}
	if violations != 1 {
		t.Errorf("expected 1 violation day, got %d", violations)
	}
}
