package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the Safeguard platform.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// SafeguardClient is a pure HTTP client for the Safeguard platform API.
type SafeguardClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewSafeguardClient creates a new client for the Safeguard platform.
func NewSafeguardClient(cfg Config) *SafeguardClient {
	return &SafeguardClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the platform.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the platform and returns the response body.
func (c *SafeguardClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// LogPurchase records a sale through the full workflow.
func (c *SafeguardClient) LogPurchase(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/api/purchases", nil, body)
}

// GetPerson fetches a person record by ID.
func (c *SafeguardClient) GetPerson(ctx context.Context, personID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/persons/"+personID, nil, nil)
}

// GetRisk recomputes and returns a person's risk evaluation.
func (c *SafeguardClient) GetRisk(ctx context.Context, personID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/persons/"+personID+"/risk", nil, nil)
}

// ListAlerts lists alerts, optionally only unacknowledged ones.
func (c *SafeguardClient) ListAlerts(ctx context.Context, unackedOnly bool, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if unackedOnly {
		q.Set("acknowledged", "false")
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/api/alerts", q, nil)
}

// GetDashboard returns the monitoring overview.
func (c *SafeguardClient) GetDashboard(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/analytics/dashboard", nil, nil)
}

// ListHighRisk returns Red-tier persons, highest score first.
func (c *SafeguardClient) ListHighRisk(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/api/analytics/high-risk", q, nil)
}

// SetBlocked blocks or unblocks a person.
func (c *SafeguardClient) SetBlocked(ctx context.Context, personID string, blocked bool) (json.RawMessage, error) {
	action := "block"
	if !blocked {
		action = "unblock"
	}
	return c.doRequest(ctx, http.MethodPost, "/api/persons/"+personID+"/"+action, nil, nil)
}
