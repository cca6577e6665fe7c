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

	"github.com/mnbara/advisory/internal/circuitbreaker"
)

// Config holds the configuration for connecting to the advisory platform.
type Config struct {
	APIURL  string // Base URL, e.g. "http://localhost:8080"
	ActorID string // Actor identifier sent with classification requests
}

// AdvisoryClient is a pure HTTP client for the advisory platform API.
// A per-endpoint circuit breaker trips after repeated failures so a down
// platform fails fast instead of stacking up 30-second timeouts.
type AdvisoryClient struct {
	cfg        Config
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
}

// NewAdvisoryClient creates a new client for the advisory platform.
func NewAdvisoryClient(cfg Config) *AdvisoryClient {
	return &AdvisoryClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

// apiError represents an error response from the platform.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the platform and returns the response body.
func (c *AdvisoryClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	if !c.breaker.Allow(path) {
		return nil, fmt.Errorf("advisory platform unavailable (circuit open for %s)", path)
	}

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

	if c.cfg.ActorID != "" {
		req.Header.Set("X-Actor-ID", c.cfg.ActorID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure(path)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// 5xx counts against the breaker; 4xx means the platform is healthy
	// but rejected this particular request.
	if resp.StatusCode >= 500 {
		c.breaker.RecordFailure(path)
	} else {
		c.breaker.RecordSuccess(path)
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

// Assess runs the full advisory pipeline for a proposed transaction.
func (c *AdvisoryClient) Assess(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/advisory/assess", nil, body)
}

// TrustScore computes a trust score for a single party.
func (c *AdvisoryClient) TrustScore(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/advisory/trust-score", nil, body)
}

// ClassifyIntent classifies user context signals into an intent.
func (c *AdvisoryClient) ClassifyIntent(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/advisory/intent", nil, body)
}

// ListCorridors returns the configured corridor lanes.
func (c *AdvisoryClient) ListCorridors(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/advisory/corridors", nil, nil)
}

// CorridorVolume reports usage against a corridor's daily caps.
func (c *AdvisoryClient) CorridorVolume(ctx context.Context, corridorID string) (json.RawMessage, error) {
	path := "/v1/advisory/corridors/" + corridorID + "/volume"
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}

// AuditLogs returns recorded audit entries.
func (c *AdvisoryClient) AuditLogs(ctx context.Context, operation string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if operation != "" {
		q.Set("operation", operation)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/audit/logs", q, nil)
}

// DecisionSnapshot returns the stored decision snapshot for a request.
func (c *AdvisoryClient) DecisionSnapshot(ctx context.Context, requestID string) (json.RawMessage, error) {
	path := "/v1/audit/snapshots/" + requestID
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}
