package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *SafeguardClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *SafeguardClient) *Handlers {
	return &Handlers{client: client}
}

// HandleLogPurchase records a sale through the workflow.
func (h *Handlers) HandleLogPurchase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	personID := req.GetString("person_id", "")
	if personID == "" {
		return mcp.NewToolResultError("person_id is required"), nil
	}
	shopID := req.GetString("shop_id", "")
	if shopID == "" {
		return mcp.NewToolResultError("shop_id is required"), nil
	}
	kind := req.GetString("kind", "")
	if kind == "" {
		return mcp.NewToolResultError("kind is required"), nil
	}

	body := map[string]any{
		"personId": personID,
		"shopId":   shopID,
		"kind":     kind,
	}
	if v := req.GetFloat("volume_ml", 0); v > 0 {
		body["volumeMl"] = int(v)
	}
	if v := req.GetFloat("abv_percent", 0); v > 0 {
		body["abvPercent"] = v
	}
	if v := req.GetFloat("units", 0); v > 0 {
		body["units"] = v
	}

	raw, err := h.client.LogPurchase(ctx, body)
	if err != nil {
		// Rejections (blocked, over limit) come back as API errors;
		// surface them verbatim so the operator sees why.
		return mcp.NewToolResultError(fmt.Sprintf("Purchase not logged: %v", err)), nil
	}

	text, err := formatLoggedPurchase(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse response: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetPersonRisk returns the risk evaluation for a person.
func (h *Handlers) HandleGetPersonRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	personID := req.GetString("person_id", "")
	if personID == "" {
		return mcp.NewToolResultError("person_id is required"), nil
	}

	raw, err := h.client.GetRisk(ctx, personID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get risk: %v", err)), nil
	}

	text, err := formatRisk(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse risk: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListAlerts lists compliance alerts.
func (h *Handlers) HandleListAlerts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	includeAcked := req.GetBool("include_acknowledged", false)
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListAlerts(ctx, !includeAcked, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list alerts: %v", err)), nil
	}

	text, err := formatAlertList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse alerts: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetDashboardStats returns the monitoring overview.
func (h *Handlers) HandleGetDashboardStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetDashboard(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get dashboard: %v", err)), nil
	}

	text, err := formatDashboard(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse dashboard: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListHighRisk lists Red-tier persons.
func (h *Handlers) HandleListHighRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListHighRisk(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list high-risk persons: %v", err)), nil
	}

	text, err := formatHighRiskList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse persons: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleBlockPerson blocks or unblocks a person.
func (h *Handlers) HandleBlockPerson(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	personID := req.GetString("person_id", "")
	if personID == "" {
		return mcp.NewToolResultError("person_id is required"), nil
	}
	unblock := req.GetBool("unblock", false)

	if _, err := h.client.SetBlocked(ctx, personID, !unblock); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update block status: %v", err)), nil
	}

	if unblock {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Person %s unblocked. Purchases are allowed again, subject to the daily limit.", personID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Person %s blocked. All purchase attempts will be rejected until unblocked.", personID)), nil
}

// --- Formatting helpers ---

func formatLoggedPurchase(raw json.RawMessage) (string, error) {
	var resp struct {
		Purchase struct {
			ID       string  `json:"id"`
			PersonID string  `json:"personId"`
			Kind     string  `json:"kind"`
			VolumeML int     `json:"volumeMl"`
			Units    float64 `json:"units"`
		} `json:"purchase"`
		PatternsDetected []struct {
			Kind       string  `json:"kind"`
			Confidence float64 `json:"confidence"`
		} `json:"patterns_detected"`
		RemainingUnitsToday float64 `json:"remaining_units_today"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Purchase logged: %s\n", resp.Purchase.ID)
	fmt.Fprintf(&sb, "  Person: %s\n", resp.Purchase.PersonID)
	fmt.Fprintf(&sb, "  %s, %d ml, %.3f units\n", resp.Purchase.Kind, resp.Purchase.VolumeML, resp.Purchase.Units)
	fmt.Fprintf(&sb, "  Remaining today: %.3f units\n", resp.RemainingUnitsToday)

	for _, p := range resp.PatternsDetected {
		fmt.Fprintf(&sb, "\nPattern detected: %s (confidence %.2f)", p.Kind, p.Confidence)
	}
	return sb.String(), nil
}

func formatRisk(raw json.RawMessage) (string, error) {
	var resp struct {
		PersonID string  `json:"person_id"`
		Score    float64 `json:"score"`
		Tier     string  `json:"tier"`
		Factors  []struct {
			Description string  `json:"description"`
			Points      float64 `json:"points"`
		} `json:"factors"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Risk evaluation for %s:\n", resp.PersonID)
	fmt.Fprintf(&sb, "  Score: %.0f / 100\n", resp.Score)
	fmt.Fprintf(&sb, "  Tier: %s\n", resp.Tier)

	if len(resp.Factors) == 0 {
		sb.WriteString("  No contributing risk factors.")
	} else {
		sb.WriteString("\nContributing factors:\n")
		for _, f := range resp.Factors {
			fmt.Fprintf(&sb, "  +%.0f  %s\n", f.Points, f.Description)
		}
	}
	return sb.String(), nil
}

func formatAlertList(raw json.RawMessage) (string, error) {
	var resp struct {
		Alerts []struct {
			ID           string `json:"id"`
			PersonID     string `json:"personId"`
			Kind         string `json:"kind"`
			Severity     string `json:"severity"`
			Message      string `json:"message"`
			Acknowledged bool   `json:"acknowledged"`
		} `json:"alerts"`
		Unacknowledged int `json:"unacknowledged"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	if len(resp.Alerts) == 0 {
		return "No alerts.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d alert(s), %d unacknowledged:\n\n", len(resp.Alerts), resp.Unacknowledged)
	for i, a := range resp.Alerts {
		status := ""
		if a.Acknowledged {
			status = " [acked]"
		}
		fmt.Fprintf(&sb, "%d. [%s] %s%s\n", i+1, a.Severity, a.Kind, status)
		fmt.Fprintf(&sb, "   Person: %s\n", a.PersonID)
		fmt.Fprintf(&sb, "   %s\n", a.Message)
		fmt.Fprintf(&sb, "   ID: %s\n", a.ID)
		if i < len(resp.Alerts)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func formatDashboard(raw json.RawMessage) (string, error) {
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
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Monitoring overview:\n")
	fmt.Fprintf(&sb, "  Persons: %d total (%d Green, %d Yellow, %d Red)\n",
		resp.Persons.Total, resp.Persons.Green, resp.Persons.Yellow, resp.Persons.Red)
	fmt.Fprintf(&sb, "  Today: %d purchases, %.1f units\n", resp.Today.Purchases, resp.Today.Units)
	fmt.Fprintf(&sb, "  Open work: %d unacknowledged alerts, %d unreviewed findings",
		resp.UnacknowledgedAlerts, resp.ActiveFindings)
	return sb.String(), nil
}

func formatHighRiskList(raw json.RawMessage) (string, error) {
	var resp struct {
		Persons []struct {
			ID        string  `json:"id"`
			Name      string  `json:"name"`
			RiskScore float64 `json:"riskScore"`
			RiskTier  string  `json:"riskTier"`
			Blocked   bool    `json:"blocked"`
		} `json:"persons"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	if len(resp.Persons) == 0 {
		return "No high-risk persons.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d high-risk person(s):\n\n", len(resp.Persons))
	for i, p := range resp.Persons {
		blocked := ""
		if p.Blocked {
			blocked = " [BLOCKED]"
		}
		fmt.Fprintf(&sb, "%d. %s (%s)%s\n", i+1, p.Name, p.ID, blocked)
		fmt.Fprintf(&sb, "   Score: %.0f (%s)\n", p.RiskScore, p.RiskTier)
	}
	return sb.String(), nil
}
