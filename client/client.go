// Package client is a small HTTP client for a running costwise server.
// It mirrors the REST API one method per endpoint and is the basis for
// the CLI's remote subcommands and the agent tool bridge in tools.go.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxResponseBytes = 10 << 20

// Client calls the costwise REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the bearer token sent on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithTimeout overrides the default 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient swaps the underlying HTTP client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-success response from the server. For failed live
// runs the server still returns the finalized record; it is decoded
// into the method's result and Partial is set.
type APIError struct {
	Status  int
	Message string
	Partial bool
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("costwise: server returned %d", e.Status)
	}
	return fmt.Sprintf("costwise: %s (%d)", e.Message, e.Status)
}

// ── Request / response types ──────────────────────────────────────────────────

// TaskInput is the request body for Run and Estimate.
type TaskInput struct {
	InputText string   `json:"input_text"`
	Level     int      `json:"level,omitempty"`
	Tokens    int      `json:"tokens,omitempty"`
	Model     string   `json:"model,omitempty"`
	Budget    *float64 `json:"budget,omitempty"`
	Execute   bool     `json:"execute"`
	TenantID  string   `json:"tenant_id,omitempty"`
	CallerID  string   `json:"caller_id,omitempty"`
}

// Run is a finalized run record as returned by POST /api/run and
// POST /api/estimate.
type Run struct {
	TraceID          string   `json:"trace_id"`
	Status           string   `json:"status"`
	Model            string   `json:"model"`
	OriginalModel    string   `json:"original_model,omitempty"`
	RouterReason     string   `json:"router_reason"`
	Level            int      `json:"level"`
	PromptTokens     int      `json:"prompt_tokens"`
	OutputTokens     int      `json:"output_tokens"`
	PromptCost       float64  `json:"prompt_cost"`
	CompletionCost   float64  `json:"completion_cost"`
	TotalCost        float64  `json:"total_cost"`
	Budget           float64  `json:"budget"`
	BudgetExceeded   bool     `json:"budget_exceeded"`
	CompressedPrompt string   `json:"compressed_prompt"`
	CompressionRatio float64  `json:"compression_ratio"`
	Response         string   `json:"response"`
	ActualCost       *float64 `json:"actual_cost"`
	QualityScore     *int     `json:"quality_score,omitempty"`
	QualityReason    string   `json:"quality_reason,omitempty"`
	QualityRetries   int      `json:"quality_retries"`
	ErrorCode        string   `json:"error_code,omitempty"`
	ErrorDetail      string   `json:"error,omitempty"`
	LogID            int64    `json:"log_id,omitempty"`
	CumulativeCost   float64  `json:"cumulative_cost"`
	LatencyMS        float64  `json:"latency_ms"`
	Summary          string   `json:"summary,omitempty"`
}

// LoggedRun is a persisted run row as returned by GET /api/runs.
type LoggedRun struct {
	ID             int64    `json:"id"`
	TraceID        string   `json:"trace_id"`
	Timestamp      string   `json:"timestamp"`
	Model          string   `json:"model"`
	OriginalModel  string   `json:"original_model,omitempty"`
	TaskLevel      int      `json:"task_level"`
	TotalCost      float64  `json:"total_cost"`
	ActualCost     *float64 `json:"actual_cost"`
	BudgetExceeded bool     `json:"budget_exceeded"`
	QualityRetries int      `json:"quality_retries"`
	Status         string   `json:"status"`
	ErrorCode      string   `json:"error_code,omitempty"`
}

// RouteDecision is the response from POST /api/route.
type RouteDecision struct {
	Model  string `json:"model"`
	Reason string `json:"reason"`
}

// Budget is the response from GET /api/budget.
type Budget struct {
	PerCallDefault float64 `json:"per_call_default"`
	DailyCap       float64 `json:"daily_cap"`
	SpentToday     float64 `json:"spent_today"`
	Zone           string  `json:"zone"`
	CumulativeCost float64 `json:"cumulative_cost"`
}

// ModelInfo is one catalog entry from GET /api/models.
type ModelInfo struct {
	ID              string  `json:"id"`
	DisplayName     string  `json:"display_name"`
	Provider        string  `json:"provider"`
	Tier            int     `json:"tier"`
	CostTier        int     `json:"cost_tier"`
	PromptPer1K     float64 `json:"prompt_per_1k"`
	CompletionPer1K float64 `json:"completion_per_1k"`
	Available       bool    `json:"available"`
}

// ModelList is the response from GET /api/models.
type ModelList struct {
	Models      []ModelInfo `json:"models"`
	RoutingMode string      `json:"routing_mode"`
}

// Stats is the response from GET /api/stats.
type Stats struct {
	Last24h struct {
		Runs       int     `json:"runs"`
		TotalCost  float64 `json:"total_cost"`
		Escalated  int     `json:"escalated"`
		Errors     int     `json:"errors"`
		OverBudget int     `json:"over_budget"`
	} `json:"last_24h"`
	CumulativeCost float64 `json:"cumulative_cost"`
}

// ── Endpoint methods ──────────────────────────────────────────────────────────

// Run routes, estimates and (when in.Execute is set) executes a task.
// On provider failure the returned *Run still holds the finalized
// record and the error is an *APIError with Partial set.
func (c *Client) Run(ctx context.Context, in TaskInput) (*Run, error) {
	var out Run
	if err := c.do(ctx, http.MethodPost, "/api/run", in, &out); err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.Partial {
			return &out, apiErr
		}
		return nil, err
	}
	return &out, nil
}

// Estimate routes and prices a task without executing or logging it.
func (c *Client) Estimate(ctx context.Context, in TaskInput) (*Run, error) {
	var out Run
	if err := c.do(ctx, http.MethodPost, "/api/estimate", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Route resolves the model for a level without estimating anything.
func (c *Client) Route(ctx context.Context, level int, model string) (*RouteDecision, error) {
	body := map[string]interface{}{"level": level}
	if model != "" {
		body["model"] = model
	}
	var out RouteDecision
	if err := c.do(ctx, http.MethodPost, "/api/route", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Runs lists the most recent logged runs, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]LoggedRun, error) {
	path := "/api/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Runs []LoggedRun `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// GetRun fetches one logged run by its log ID.
func (c *Client) GetRun(ctx context.Context, id int64) (*LoggedRun, error) {
	var out LoggedRun
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+strconv.FormatInt(id, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Budget fetches current spend against the configured caps.
func (c *Client) Budget(ctx context.Context) (*Budget, error) {
	var out Budget
	if err := c.do(ctx, http.MethodGet, "/api/budget", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Models fetches the model catalog with per-provider availability.
func (c *Client) Models(ctx context.Context) (*ModelList, error) {
	var out ModelList
	if err := c.do(ctx, http.MethodGet, "/api/models", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches 24h aggregates plus the all-time cumulative cost.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks the unauthenticated health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("client.Health: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client.Health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Message: "health check failed"}
	}
	return nil
}

// ── Wire plumbing ─────────────────────────────────────────────────────────────

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: clip(string(raw), 200)}
	}
	if !env.Success {
		apiErr := &APIError{Status: resp.StatusCode, Message: env.Error}
		if out != nil && len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, out); err == nil {
				apiErr.Partial = true
			}
		}
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("client: decode response: %w", err)
		}
	}
	return nil
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
