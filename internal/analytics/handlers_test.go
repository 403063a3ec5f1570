package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safeguardhq/safeguard/internal/alert"
	"github.com/safeguardhq/safeguard/internal/pattern"
	"github.com/safeguardhq/safeguard/internal/person"
	"github.com/safeguardhq/safeguard/internal/purchase"
)

type testStores struct {
	persons   *person.MemoryStore
	purchases *purchase.MemoryStore
	alerts    *alert.MemoryStore
	patterns  *pattern.MemoryStore
}

func setupHandlerTestRouter() (*gin.Engine, *testStores) {
	gin.SetMode(gin.TestMode)

	stores := &testStores{
		persons:   person.NewMemoryStore(),
		purchases: purchase.NewMemoryStore(),
		alerts:    alert.NewMemoryStore(),
		patterns:  pattern.NewMemoryStore(),
	}
	handler := NewHandler(stores.persons, stores.purchases, stores.alerts, stores.patterns)

	r := gin.New()
	api := r.Group("/api")
	handler.RegisterRoutes(api)
	return r, stores
}

func getJSON(t *testing.T, router *gin.Engine, path string, out any) int {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
	}
	return w.Code
}

func seedPerson(t *testing.T, stores *testStores, n int, tier person.Tier, score float64) *person.Person {
	t.Helper()
	p := &person.Person{
		ID:             fmt.Sprintf("per_%03d", n),
		IdentityNumber: fmt.Sprintf("%012d", n),
		Name:           fmt.Sprintf("Person %d", n),
		Age:            30,
		RegisteredAt:   time.Now().UTC(),
		RiskTier:       person.TierGreen,
	}
	if err := stores.persons.Create(context.Background(), p); err != nil {
		t.Fatalf("seed person failed: %v", err)
	}
	if tier != person.TierGreen || score != 0 {
		if err := stores.persons.UpdateRisk(context.Background(), p.ID, score, tier); err != nil {
			t.Fatalf("seed risk failed: %v", err)
		}
	}
	return p
}

func TestDashboard_Empty(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	var resp struct {
		Persons struct {
			Total int `json:"total"`
		} `json:"persons"`
		Today struct {
			Purchases int     `json:"purchases"`
			Units     float64 `json:"units"`
		} `json:"today"`
		UnacknowledgedAlerts int `json:"unacknowledgedAlerts"`
		ActiveFindings       int `json:"activeFindings"`
	}
	if code := getJSON(t, router, "/api/analytics/dashboard", &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Persons.Total != 0 || resp.Today.Purchases != 0 || resp.UnacknowledgedAlerts != 0 || resp.ActiveFindings != 0 {
		t.Errorf("empty system should report zeros: %+v", resp)
	}
}

func TestDashboard_Populated(t *testing.T) {
	router, stores := setupHandlerTestRouter()
	ctx := context.Background()

	seedPerson(t, stores, 1, person.TierGreen, 0)
	seedPerson(t, stores, 2, person.TierYellow, 45)
	p := seedPerson(t, stores, 3, person.TierRed, 85)

	// Two purchases today, one yesterday
	now := time.Now().UTC()
	for i, ts := range []time.Time{now.Add(-time.Hour), now.Add(-2 * time.Hour), now.AddDate(0, 0, -1)} {
		stores.purchases.Create(ctx, &purchase.Purchase{
			ID: fmt.Sprintf("pur_%03d", i), PersonID: p.ID, ShopID: "shop-001",
			Timestamp: ts, Kind: "beer", VolumeML: 650, ABVPercent: 8, Units: 5.2,
		})
	}

	stores.alerts.Create(ctx, &alert.Alert{
		ID: "alr_001", PersonID: p.ID, Kind: alert.KindRiskLevelChange,
		Severity: alert.SeverityCritical, Message: "risk tier changed", CreatedAt: now,
	})
	stores.alerts.Create(ctx, &alert.Alert{
		ID: "alr_002", PersonID: p.ID, Kind: alert.KindPatternDetected,
		Severity: alert.SeverityWarning, Message: "pattern detected", CreatedAt: now,
	})
	stores.alerts.Acknowledge(ctx, "alr_002")

	stores.patterns.Create(ctx, &pattern.Finding{
		ID: "flag_001", PersonID: p.ID, Kind: pattern.KindBulkBuying,
		DetectedAt: now, Confidence: 0.6, Evidence: map[string]any{},
	})

	var resp struct {
		Persons struct {
			Green  int `json:"green"`
			Yellow int `json:"yellow"`
			Red    int `json:"red"`
			Total  int `json:"total"`
		} `json:"persons"`
		Today struct {
			Purchases int     `json:"purchases"`
			Units     float64 `json:"units"`
		} `json:"today"`
		UnacknowledgedAlerts int `json:"unacknowledgedAlerts"`
		ActiveFindings       int `json:"activeFindings"`
	}
	if code := getJSON(t, router, "/api/analytics/dashboard", &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Persons.Green != 1 || resp.Persons.Yellow != 1 || resp.Persons.Red != 1 || resp.Persons.Total != 3 {
		t.Errorf("unexpected tier distribution: %+v", resp.Persons)
	}
	if resp.Today.Purchases != 2 {
		t.Errorf("expected 2 purchases today, got %d", resp.Today.Purchases)
	}
	if resp.Today.Units < 10.39 || resp.Today.Units > 10.41 {
		t.Errorf("expected ~10.4 units today, got %v", resp.Today.Units)
	}
	if resp.UnacknowledgedAlerts != 1 {
		t.Errorf("expected 1 unacknowledged alert, got %d", resp.UnacknowledgedAlerts)
	}
	if resp.ActiveFindings != 1 {
		t.Errorf("expected 1 active finding, got %d", resp.ActiveFindings)
	}
}

func TestPurchaseTrends(t *testing.T) {
	router, stores := setupHandlerTestRouter()
	ctx := context.Background()
	p := seedPerson(t, stores, 1, person.TierGreen, 0)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		stores.purchases.Create(ctx, &purchase.Purchase{
			ID: fmt.Sprintf("pur_%03d", i), PersonID: p.ID, ShopID: "shop-001",
			Timestamp: now.AddDate(0, 0, -i), Kind: "beer", VolumeML: 650, ABVPercent: 8, Units: 5.2,
		})
	}

	var resp struct {
		Days   int                  `json:"days"`
		Points []purchase.DailyStat `json:"points"`
		Count  int                  `json:"count"`
	}
	if code := getJSON(t, router, "/api/analytics/trends/purchases?days=7", &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Days != 7 || resp.Count != 3 {
		t.Errorf("unexpected trend response: days=%d count=%d", resp.Days, resp.Count)
	}
	// Oldest day first
	if len(resp.Points) == 3 && resp.Points[0].Day > resp.Points[2].Day {
		t.Errorf("points not oldest-first: %+v", resp.Points)
	}
}

func TestPurchaseTrends_InvalidDays(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	for _, path := range []string{
		"/api/analytics/trends/purchases?days=0",
		"/api/analytics/trends/purchases?days=-5",
		"/api/analytics/trends/purchases?days=week",
	} {
		if code := getJSON(t, router, path, nil); code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, code)
		}
	}
}

func TestHighRisk(t *testing.T) {
	router, stores := setupHandlerTestRouter()

	seedPerson(t, stores, 1, person.TierGreen, 10)
	seedPerson(t, stores, 2, person.TierRed, 75)
	seedPerson(t, stores, 3, person.TierRed, 92)

	var resp struct {
		Persons []person.Person `json:"persons"`
		Count   int             `json:"count"`
	}
	if code := getJSON(t, router, "/api/analytics/high-risk", &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 high-risk persons, got %d", resp.Count)
	}
	// Highest score first
	if resp.Persons[0].RiskScore != 92 {
		t.Errorf("expected highest score first: %+v", resp.Persons)
	}
}
