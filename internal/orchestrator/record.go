package orchestrator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/costwise/costwise/internal/pricing"
	"github.com/costwise/costwise/internal/provider"
)

// State names one step of the run lifecycle. Transitions are strictly
// forward; Escalate re-enters Routed at a higher tier with the retry
// counter incremented, so the machine always terminates.
type State int

const (
	StateRouted State = iota
	StateEstimated
	StateBudgetChecked
	StateExecuted
	StateJudged
	StateEscalate
	StateAccepted
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateRouted:
		return "routed"
	case StateEstimated:
		return "estimated"
	case StateBudgetChecked:
		return "budget_checked"
	case StateExecuted:
		return "executed"
	case StateJudged:
		return "judged"
	case StateEscalate:
		return "escalate"
	case StateAccepted:
		return "accepted"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// TaskRequest is the immutable input for one run.
type TaskRequest struct {
	Text          string   `json:"input_text"`
	Tier          int      `json:"level"`
	OutputTokens  int      `json:"tokens"`
	ModelOverride string   `json:"model,omitempty"`
	Budget        *float64 `json:"budget,omitempty"`
	Execute       bool     `json:"execute"`
	TenantID      string   `json:"tenant_id,omitempty"`
	CallerID      string   `json:"caller_id,omitempty"`
}

// Validate rejects malformed requests before the pipeline starts.
func (r *TaskRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("input_text is required")
	}
	if r.Tier < 1 || r.Tier > 3 {
		return fmt.Errorf("level must be 1-3, got %d", r.Tier)
	}
	if r.OutputTokens < 1 {
		return fmt.Errorf("tokens must be >= 1, got %d", r.OutputTokens)
	}
	if r.Budget != nil && *r.Budget < 0 {
		return errors.New("budget must not be negative")
	}
	return nil
}

// Error codes surfaced on failed runs.
const (
	ErrCodeProviderUnavailable = "provider_unavailable"
	ErrCodeProviderAuth        = "provider_auth_error"
)

// RunError pairs a classified error code with the underlying cause. The
// finalized record carries the same code, so callers can consume either.
type RunError struct {
	Code string
	Err  error
}

func (e *RunError) Error() string { return e.Code + ": " + e.Err.Error() }

func (e *RunError) Unwrap() error { return e.Err }

// classifyErr maps a provider error onto the run error taxonomy.
// Credential problems (including a provider that was never configured)
// are auth errors; everything else is the provider being unavailable.
func classifyErr(err error) string {
	if errors.Is(err, provider.ErrAuth) || errors.Is(err, provider.ErrNotConfigured) {
		return ErrCodeProviderAuth
	}
	return ErrCodeProviderUnavailable
}

// RunRecord is the full lifecycle outcome of one TaskRequest. It is
// created once per request, appended to as the escalation loop runs,
// and handed to the log store exactly once at finalization.
type RunRecord struct {
	TraceID string `json:"trace_id"`
	Status  string `json:"status"`

	Model         string `json:"model"`
	OriginalModel string `json:"original_model,omitempty"`
	RouterReason  string `json:"router_reason"`
	Tier          int    `json:"level"`

	// Final attempt's estimate breakdown (wire-compatible with the
	// original single-attempt layout). TotalCost aggregates every
	// incurred quote across attempts, judge calls included.
	PromptTokens   int     `json:"prompt_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	PromptCost     float64 `json:"prompt_cost"`
	CompletionCost float64 `json:"completion_cost"`
	TotalCost      float64 `json:"total_cost"`

	Budget         float64 `json:"budget"`
	BudgetExceeded bool    `json:"budget_exceeded"`

	CompressedPrompt string  `json:"compressed_prompt"`
	CompressionRatio float64 `json:"compression_ratio"`

	Response           string   `json:"response"`
	ActualCost         *float64 `json:"actual_cost"`
	ActualOutputTokens *int     `json:"actual_output_tokens,omitempty"`

	Quotes []pricing.Quote `json:"quotes,omitempty"`

	QualityScore    *int   `json:"quality_score,omitempty"`
	QualityReason   string `json:"quality_reason,omitempty"`
	QualityFailOpen bool   `json:"quality_fail_open,omitempty"`
	QualityRetries  int    `json:"quality_retries"`

	ErrorCode   string `json:"error_code,omitempty"`
	ErrorDetail string `json:"error,omitempty"`

	TenantID string `json:"tenant_id,omitempty"`
	CallerID string `json:"caller_id,omitempty"`

	LogID          int64   `json:"log_id,omitempty"`
	CumulativeCost float64 `json:"cumulative_cost"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	LatencyMS  float64   `json:"latency_ms"`
}

// Escalated reports whether the run moved off its originally routed model.
func (r *RunRecord) Escalated() bool {
	return r.OriginalModel != "" && r.OriginalModel != r.Model
}

// DryRun reports whether the record came from an estimate-only run.
func (r *RunRecord) DryRun() bool {
	return r.ActualCost == nil && r.ErrorCode == ""
}
