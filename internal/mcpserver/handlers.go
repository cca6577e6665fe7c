package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *AdvisoryClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *AdvisoryClient) *Handlers {
	return &Handlers{client: client}
}

// HandleAssessTransaction runs the full advisory pipeline.
func (h *Handlers) HandleAssessTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	buyerID := req.GetString("buyer_id", "")
	if buyerID == "" {
		return mcp.NewToolResultError("buyer_id is required"), nil
	}
	travelerID := req.GetString("traveler_id", "")
	if travelerID == "" {
		return mcp.NewToolResultError("traveler_id is required"), nil
	}
	origin := req.GetString("origin", "")
	destination := req.GetString("destination", "")
	if origin == "" || destination == "" {
		return mcp.NewToolResultError("origin and destination are required"), nil
	}
	currency := req.GetString("currency", "USD")

	body := map[string]any{
		"travelerId":   travelerID,
		"origin":       origin,
		"destination":  destination,
		"itemValue":    req.GetFloat("item_value", 0),
		"currency":     currency,
		"itemCategory": req.GetString("item_category", ""),
		"deliveryDays": req.GetInt("delivery_days", 0),
		"buyer":        map[string]any{"userId": buyerID},
		"traveler":     map[string]any{"userId": travelerID},
	}

	raw, err := h.client.Assess(ctx, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Assessment failed: %v", err)), nil
	}

	text, err := formatAssessment(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessment: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetTrustScore computes a single party's trust score.
func (h *Handlers) HandleGetTrustScore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	role := req.GetString("role", "")
	if role == "" {
		return mcp.NewToolResultError("role is required"), nil
	}

	raw, err := h.client.TrustScore(ctx, map[string]any{
		"userId": userID,
		"role":   role,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get trust score: %v", err)), nil
	}

	text, err := formatTrustScore(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse trust score: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleClassifyIntent classifies context signals.
func (h *Handlers) HandleClassifyIntent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]any{
		"actorId":     h.client.cfg.ActorID,
		"pageContext": req.GetString("page_context", ""),
		"action":      req.GetString("action", ""),
		"userRole":    req.GetString("user_role", ""),
	}
	if body["actorId"] == "" {
		body["actorId"] = "mcp"
	}

	raw, err := h.client.ClassifyIntent(ctx, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Classification failed: %v", err)), nil
	}

	text, err := formatIntent(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse classification: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListCorridors lists supported corridors.
func (h *Handlers) HandleListCorridors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ListCorridors(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list corridors: %v", err)), nil
	}

	text, err := formatCorridorList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse corridors: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetCorridorVolume reports usage against a corridor's daily caps.
func (h *Handlers) HandleGetCorridorVolume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	corridorID := req.GetString("corridor_id", "")
	if corridorID == "" {
		return mcp.NewToolResultError("corridor_id is required"), nil
	}

	raw, err := h.client.CorridorVolume(ctx, corridorID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get corridor volume: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleGetAuditLogs reads recent audit entries.
func (h *Handlers) HandleGetAuditLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	operation := req.GetString("operation", "")
	limit := req.GetInt("limit", 20)

	raw, err := h.client.AuditLogs(ctx, operation, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get audit logs: %v", err)), nil
	}

	text, err := formatAuditLogs(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse audit logs: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetDecisionSnapshot fetches a stored decision snapshot.
func (h *Handlers) HandleGetDecisionSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requestID := req.GetString("request_id", "")
	if requestID == "" {
		return mcp.NewToolResultError("request_id is required"), nil
	}

	raw, err := h.client.DecisionSnapshot(ctx, requestID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get snapshot: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// --- Formatting helpers ---

func formatAssessment(raw json.RawMessage) (string, error) {
	var resp struct {
		Assessment map[string]any `json:"assessment"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	a := resp.Assessment
	if a == nil {
		return "", fmt.Errorf("unexpected assessment response format")
	}

	var sb strings.Builder
	if id := getString(a, "requestId"); id != "" {
		fmt.Fprintf(&sb, "Assessment %s:\n", id)
	}

	if rec, ok := a["recommendation"].(map[string]any); ok {
		fmt.Fprintf(&sb, "  Recommendation: %s", getString(rec, "action"))
		if conf, ok := getFloat(rec, "confidence"); ok {
			fmt.Fprintf(&sb, " (%.0f%% confidence)", conf*100)
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("  Recommendation: unavailable (capability disabled)\n")
	}

	if risk, ok := a["risk"].(map[string]any); ok {
		if score, ok := getFloat(risk, "riskScore"); ok {
			fmt.Fprintf(&sb, "  Risk: %.0f/100 (%s)\n", score, getString(risk, "overallRisk"))
		}
	}
	if bt, ok := a["buyerTrust"].(map[string]any); ok {
		if score, ok := getFloat(bt, "score"); ok {
			fmt.Fprintf(&sb, "  Buyer trust: %.0f (%s)\n", score, getString(bt, "level"))
		}
	}
	if tt, ok := a["travelerTrust"].(map[string]any); ok {
		if score, ok := getFloat(tt, "score"); ok {
			fmt.Fprintf(&sb, "  Traveler trust: %.0f (%s)\n", score, getString(tt, "level"))
		}
	}
	if cor, ok := a["corridor"].(map[string]any); ok {
		supported := "unsupported"
		if b, ok := cor["isSupported"].(bool); ok && b {
			supported = "supported"
		}
		fmt.Fprintf(&sb, "  Corridor: %s (%s)\n", getString(cor, "corridorId"), supported)
	}

	sb.WriteString("\nThis output is advisory only. The final decision stays with the user.")
	return sb.String(), nil
}

func formatTrustScore(raw json.RawMessage) (string, error) {
	var resp struct {
		TrustScore map[string]any `json:"trustScore"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	ts := resp.TrustScore
	if ts == nil {
		return "", fmt.Errorf("unexpected trust score response format")
	}

	var sb strings.Builder
	sb.WriteString("Trust Score:\n")
	fmt.Fprintf(&sb, "  User: %s (%s)\n", getString(ts, "userId"), getString(ts, "role"))
	if score, ok := getFloat(ts, "score"); ok {
		fmt.Fprintf(&sb, "  Score: %.0f/100 (%s)\n", score, getString(ts, "level"))
	}

	if factors, ok := ts["factors"].([]any); ok && len(factors) > 0 {
		sb.WriteString("  Factors:\n")
		for _, f := range factors {
			fm, ok := f.(map[string]any)
			if !ok {
				continue
			}
			score, _ := getFloat(fm, "score")
			weight, _ := getFloat(fm, "weight")
			fmt.Fprintf(&sb, "    %s: %.0f (weight %.2f)\n", getString(fm, "name"), score, weight)
		}
	}
	return sb.String(), nil
}

func formatIntent(raw json.RawMessage) (string, error) {
	var resp struct {
		Intent map[string]any `json:"intent"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	in := resp.Intent
	if in == nil {
		return "", fmt.Errorf("unexpected intent response format")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Intent: %s\n", getString(in, "intent"))
	if conf, ok := getFloat(in, "confidence"); ok {
		fmt.Fprintf(&sb, "Confidence: %.2f (%s)\n", conf, getString(in, "confidenceLevel"))
	}
	if reasoning := getString(in, "reasoning"); reasoning != "" {
		fmt.Fprintf(&sb, "Reasoning: %s\n", reasoning)
	}
	return sb.String(), nil
}

func formatCorridorList(raw json.RawMessage) (string, error) {
	var resp struct {
		Corridors []map[string]any `json:"corridors"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Corridors) == 0 {
		return "No corridors configured.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d corridor(s):\n\n", len(resp.Corridors))
	for i, c := range resp.Corridors {
		fmt.Fprintf(&sb, "%d. %s", i+1, getString(c, "id", "corridorId"))
		if maxVal, ok := getFloat(c, "maxItemValueUSD", "maxItemValue"); ok {
			fmt.Fprintf(&sb, " (up to %.0f USD)", maxVal)
		}
		sb.WriteString("\n")
		if cats, ok := c["restrictedCategories"].([]any); ok && len(cats) > 0 {
			parts := make([]string, 0, len(cats))
			for _, cat := range cats {
				if s, ok := cat.(string); ok {
					parts = append(parts, s)
				}
			}
			fmt.Fprintf(&sb, "   Restricted: %s\n", strings.Join(parts, ", "))
		}
	}
	return sb.String(), nil
}

func formatAuditLogs(raw json.RawMessage) (string, error) {
	var resp struct {
		Entries []map[string]any `json:"entries"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Entries) == 0 {
		return "No audit entries found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d audit entr%s:\n\n", len(resp.Entries), pluralY(len(resp.Entries)))
	for i, e := range resp.Entries {
		fmt.Fprintf(&sb, "%d. %s", i+1, getString(e, "operation"))
		if id := getString(e, "id"); id != "" {
			fmt.Fprintf(&sb, " (%s)", id)
		}
		sb.WriteString("\n")
		if ts := getString(e, "timestamp"); ts != "" {
			fmt.Fprintf(&sb, "   At: %s\n", ts)
		}
		if ms, ok := getFloat(e, "processingTimeMs"); ok {
			fmt.Fprintf(&sb, "   Took: %.0fms\n", ms)
		}
	}
	return sb.String(), nil
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
