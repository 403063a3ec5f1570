package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safeguardhq/safeguard/internal/dailytotal"
	"github.com/safeguardhq/safeguard/internal/person"
)

func TestLogPurchase_HappyPath(t *testing.T) {
	e, stores, emitter := newTestEngine(t)
	p := seedPerson(t, stores, "111111111111")

	result, err := e.LogPurchase(context.Background(), LogPurchaseInput{
		PersonID:   p.ID,
		ShopID:     "shop-001",
		Kind:       "whisky",
		VolumeML:   750,
		ABVPercent: 42.8,
	})
	if err != nil {
		t.Fatalf("LogPurchase failed: %v", err)
	}
	if result.Purchase.Units != 32.1 {
		t.Errorf("expected 32.1 derived units, got %v", result.Purchase.Units)
	}
	if result.RemainingUnitsToday < 7.89 || result.RemainingUnitsToday > 7.91 {
		t.Errorf("expected ~7.9 remaining, got %v", result.RemainingUnitsToday)
	}

	// Purchase persisted
	stored, err := stores.purchases.Get(context.Background(), result.Purchase.ID)
	if err != nil {
		t.Fatalf("purchase not persisted: %v", err)
	}
	if stored.PersonID != p.ID {
		t.Errorf("wrong person on stored purchase")
	}

	// Person counters updated
	updated, _ := stores.persons.Get(context.Background(), p.ID)
	if updated.TotalPurchases != 1 || updated.TotalUnitsConsumed != 32.1 {
		t.Errorf("person stats not updated: %+v", updated)
	}
	if updated.LastPurchaseDate.IsZero() {
		t.Error("last purchase date not set")
	}

	if len(emitter.purchases) != 1 {
		t.Errorf("purchase event not fanned out")
	}
}

func TestLogPurchase_ExplicitUnits(t *testing.T) {
	e, stores, _ := newTestEngine(t)
	p := seedPerson(t, stores, "111111111111")

	result, err := e.LogPurchase(context.Background(), LogPurchaseInput{
		PersonID: p.ID,
		ShopID:   "shop-001",
		Kind:     "beer",
		Units:    5.2,
	})
	if err != nil {
		t.Fatalf("LogPurchase failed: %v", err)
	}
	if result.Purchase.Units != 5.2 {
		t.Errorf("explicit units ignored: %v", result.Purchase.Units)
	}
}

func TestLogPurchase_UnknownPerson(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.LogPurchase(context.Background(), LogPurchaseInput{
		PersonID: "per_missing", ShopID: "shop-001", Kind: "beer", Units: 1,
	})
	if !errors.Is(err, person.ErrPersonNotFound) {
		t.Errorf("expected ErrPersonNotFound, got %v", err)
	}
}

func TestLogPurchase_BlockedPerson(t *testing.T) {
	e, stores, _ := newTestEngine(t)
	p := seedPerson(t, stores, "111111111111")
	stores.persons.SetBlocked(context.Background(), p.ID, true)

	_, err := e.LogPurchase(context.Background(), LogPurchaseInput{
		PersonID: p.ID, ShopID: "shop-001", Kind: "beer", Units: 1,
	})
	if !errors.Is(err, ErrPersonBlocked) {
		t.Errorf("expected ErrPersonBlocked, got %v", err)
	}

	// Nothing recorded
	count, _ := stores.purchases.CountSince(context.Background(), p.ID, time.Time{})
	if count != 0 {
		t.Errorf("blocked purchase persisted: %d", count)
	}
}

func TestLogPurchase_BadInput(t *testing.T) {
	e, stores, _ := newTestEngine(t)
	p := seedPerson(t, stores, "111111111111")

	cases := []LogPurchaseInput{
		{PersonID: p.ID, ShopID: "shop-001", Kind: "beer"},                           // nothing to derive from
		{PersonID: p.ID, ShopID: "shop-001", Kind: "beer", VolumeML: 750},            // missing ABV
		{PersonID: p.ID, ShopID: "shop-001", Kind: "beer", Units: -3},                // negative
		{PersonID: p.ID, ShopID: "shop-001", Kind: "beer", Units: 60},                // above single-sale bound
		{PersonID: p.ID, ShopID: "shop-001", Kind: "beer", VolumeML: 20000, ABVPercent: 5}, // absurd volume
	}
	for i, in := range cases {
		if _, err := e.LogPurchase(context.Background(), in); !errors.Is(err, ErrBadInput) {
			t.Errorf("case %d: expected ErrBadInput, got %v", i, err)
		}
	}
}

func TestLogPurchase_LimitExceededPersistsNothing(t *testing.T) {
	e, stores, _ := newTestEngine(t)
	p := seedPerson(t, stores, "111111111111")

	if _, err := e.LogPurchase(context.Background(), LogPurchaseInput{
		PersonID: p.ID, ShopID: "shop-001", Kind: "whisky", Units: 38,
	}); err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}

	_, err := e.LogPurchase(context.Background(), LogPurchaseInput{
		PersonID: p.ID, ShopID: "shop-001", Kind: "whisky", Units: 5,
	})
	var limitErr *LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitExceededError, got %v", err)
	}
	if limitErr.CurrentUnits != 38 || limitErr.Limit != 40 || limitErr.AttemptedUnits != 5 {
		t.Errorf("unexpected limit error detail: %+v", limitErr)
	}

	// Only the first purchase exists; person stats count one
	count, _ := stores.purchases.CountSince(context.Background(), p.ID, time.Time{})
	if count != 1 {
		t.Errorf("rejected purchase persisted: %d purchases", count)
	}
	updated, _ := stores.persons.Get(context.Background(), p.ID)
	if updated.TotalPurchases != 1 {
		t.Errorf("rejected purchase counted: %d", updated.TotalPurchases)
	}
}

func TestLogPurchase_RescoresAfterCommit(t *testing.T) {
	e, stores, _ := newTestEngine(t)
	p := seedPerson(t, stores, "111111111111")
	now := time.Now().UTC()

	// Seed 24 historical purchases, then log the 25th through the
	// workflow; the post-commit rescore should see all 25.
	for i := 0; i < 24; i++ {
		ts := time.Date(now.Year(), now.Month(), now.Day(), 14, 0, 0, 0, time.UTC).AddDate(0, 0, -(i%28)-1)
		seedPurchase(t, stores, p.ID, ts, 180, 4.8)
	}

	_, err := e.LogPurchase(context.Background(), LogPurchaseInput{
		PersonID: p.ID, ShopID: "shop-001", Kind: "whisky", Units: 4.8,
	})
	if err != nil {
		t.Fatalf("LogPurchase failed: %v", err)
	}

	updated, _ := stores.persons.Get(context.Background(), p.ID)
	if updated.RiskScore != 50 || updated.RiskTier != person.TierYellow {
		t.Errorf("post-commit rescore missing: score=%v tier=%s", updated.RiskScore, updated.RiskTier)
	}
}

func TestLogPurchase_ReportsDetections(t *testing.T) {
	e, stores, _ := newTestEngine(t)
	p := seedPerson(t, stores, "111111111111")
	now := time.Now().UTC()
	noon := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.UTC)

	seedPurchase(t, stores, p.ID, noon.AddDate(0, 0, -1), 1200, 30)
	seedPurchase(t, stores, p.ID, noon.AddDate(0, 0, -2), 1200, 30)

	result, err := e.LogPurchase(context.Background(), LogPurchaseInput{
		PersonID: p.ID, ShopID: "shop-001", Kind: "whisky",
		VolumeML: 1200, ABVPercent: 3, Timestamp: noon,
	})
	if err != nil {
		t.Fatalf("LogPurchase failed: %v", err)
	}
	if len(result.PatternsDetected) != 1 || result.PatternsDetected[0].Confidence != 0.6 {
		t.Errorf("expected BulkBuying detection at 0.6, got %v", result.PatternsDetected)
	}
}

func TestBackfill(t *testing.T) {
	e, stores, _ := newTestEngine(t)
	p := seedPerson(t, stores, "111111111111")
	day := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	records := []LogPurchaseInput{
		{PersonID: p.ID, ShopID: "shop-001", Kind: "whisky", Units: 38, Timestamp: day},
		{PersonID: p.ID, ShopID: "shop-001", Kind: "whisky", Units: 10, Timestamp: day.Add(2 * time.Hour)}, // pushes day over the cap
		{PersonID: "per_missing", ShopID: "shop-001", Kind: "beer", Units: 1, Timestamp: day},
		{PersonID: p.ID, ShopID: "shop-001", Kind: "beer", Units: 1}, // no timestamp
	}

	summary, err := e.Backfill(context.Background(), records)
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if summary.Ingested != 2 || summary.Skipped != 2 || summary.LimitBreaches != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	// Historical purchases recorded despite exceeding the cap
	total, _ := stores.totals.Get(context.Background(), p.ID, dailytotal.DayOf(day))
	if total.UnitsToday != 48 {
		t.Errorf("expected 48 units on the day, got %v", total.UnitsToday)
	}

	// The breach raised an advisory alert
	alerts, _ := stores.alerts.ListByPerson(context.Background(), p.ID)
	found := false
	for _, a := range alerts {
		if a.Kind == "DailyLimitExceeded" {
			found = true
		}
	}
	if !found {
		t.Error("expected DailyLimitExceeded alert from backfill")
	}

	count, _ := stores.purchases.CountSince(context.Background(), p.ID, time.Time{})
	if count != 2 {
		t.Errorf("expected 2 backfilled purchases, got %d", count)
	}
}
