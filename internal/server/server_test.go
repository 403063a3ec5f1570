package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/safeguardhq/safeguard/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing (in-memory storage)
func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "development",
		LogLevel:       "error",
		LogFormat:      "text",
		AllowedOrigins: []string{"*"},
		Limits:         config.DefaultLimits(),
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/live", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/ready", nil)
	s.router.ServeHTTP(w, req)

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/health/live",
		"GET:/health/ready",
		"GET:/metrics",
		"GET:/ws",
		"POST:/api/persons",
		"GET:/api/persons/:id",
		"POST:/api/persons/:id/block",
		"POST:/api/purchases",
		"POST:/api/purchases/backfill",
		"GET:/api/purchases/recent",
		"GET:/api/persons/:id/risk",
		"GET:/api/persons/:id/purchases",
		"POST:/api/incidents",
		"GET:/api/patterns",
		"POST:/api/patterns/:id/review",
		"GET:/api/alerts",
		"POST:/api/alerts/:id/ack",
		"GET:/api/analytics/dashboard",
		"GET:/api/analytics/trends/purchases",
		"GET:/api/analytics/high-risk",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// End-to-end workflow through the router
// ---------------------------------------------------------------------------

func TestPersonAndPurchaseFlow(t *testing.T) {
	s := newTestServer(t)

	// Register a person
	body := `{"identityNumber":"123456789012","name":"Ravi Kumar","age":34}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/persons", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created struct {
		Person struct {
			ID string `json:"id"`
		} `json:"person"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if created.Person.ID == "" {
		t.Fatal("Expected person ID in response")
	}

	// Log a purchase for them
	body = `{"personId":"` + created.Person.ID + `","shopId":"shop-001","kind":"whisky","volumeMl":750,"abvPercent":42.8}`
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/purchases", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var logged struct {
		Purchase struct {
			Units float64 `json:"units"`
		} `json:"purchase"`
		RemainingUnitsToday float64 `json:"remaining_units_today"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &logged); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if logged.Purchase.Units != 32.1 {
		t.Errorf("Expected 32.1 derived units, got %v", logged.Purchase.Units)
	}

	// Risk endpoint works for the new person
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/persons/"+created.Person.ID+"/risk", nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for risk, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID response header")
	}

	// Incoming request IDs are preserved
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")
	s.router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-abc-123" {
		t.Errorf("Expected request ID preserved, got %q", got)
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/nonexistent", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
