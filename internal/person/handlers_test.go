package person

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupHandlerTestRouter() (*gin.Engine, *MemoryStore) {
	gin.SetMode(gin.TestMode)

	store := NewMemoryStore()
	handler := NewHandler(store)

	r := gin.New()
	api := r.Group("/api")
	handler.RegisterRoutes(api)
	return r, store
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_CreatePerson_201(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := postJSON(router, "/api/persons", gin.H{
		"identityNumber": "123456789012",
		"name":           "Ravi Kumar",
		"age":            34,
		"phone":          "9876543210",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Person Person `json:"person"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Person.ID == "" || resp.Person.RiskTier != TierGreen {
		t.Errorf("unexpected person: %+v", resp.Person)
	}
}

func TestHandler_CreatePerson_Validation(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	cases := []gin.H{
		{"identityNumber": "12345", "name": "Short ID", "age": 30},
		{"identityNumber": "123456789012", "name": "Minor", "age": 17},
		{"identityNumber": "123456789012", "name": "Bad phone", "age": 30, "phone": "12"},
		{"name": "Missing identity", "age": 30},
	}
	for i, body := range cases {
		if w := postJSON(router, "/api/persons", body); w.Code != http.StatusBadRequest {
			t.Errorf("case %d: expected 400, got %d: %s", i, w.Code, w.Body.String())
		}
	}
}

func TestHandler_CreatePerson_409OnDuplicate(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	body := gin.H{"identityNumber": "123456789012", "name": "Ravi Kumar", "age": 34}
	if w := postJSON(router, "/api/persons", body); w.Code != http.StatusCreated {
		t.Fatalf("first create failed: %d", w.Code)
	}
	if w := postJSON(router, "/api/persons", body); w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandler_GetPerson_404(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/persons/per_missing", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandler_BlockUnblock(t *testing.T) {
	router, store := setupHandlerTestRouter()

	p := newTestPerson("123456789012")
	store.Create(context.Background(), p)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/persons/"+p.ID+"/block", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("block failed: %d", w.Code)
	}

	got, _ := store.Get(context.Background(), p.ID)
	if !got.Blocked {
		t.Error("expected person blocked")
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/persons/"+p.ID+"/unblock", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("unblock failed: %d", w.Code)
	}

	got, _ = store.Get(context.Background(), p.ID)
	if got.Blocked {
		t.Error("expected person unblocked")
	}
}

func TestHandler_ListPersons_TierFilter(t *testing.T) {
	router, store := setupHandlerTestRouter()
	ctx := context.Background()

	a := newTestPerson("111111111111")
	b := newTestPerson("222222222222")
	store.Create(ctx, a)
	store.Create(ctx, b)
	store.UpdateRisk(ctx, a.ID, 85, TierRed)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/persons?risk_tier=Red", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list failed: %d", w.Code)
	}

	var resp struct {
		Persons []Person `json:"persons"`
		Count   int      `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 1 || resp.Persons[0].ID != a.ID {
		t.Errorf("unexpected list result: %+v", resp)
	}

	// Invalid tier rejected
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/persons?risk_tier=Purple", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad tier, got %d", w.Code)
	}
}
