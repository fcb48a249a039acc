package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "$0.00432", FormatCost(0.00432))
	assert.Equal(t, "$0.00000", FormatCost(0))
	assert.Equal(t, "$1.50000", FormatCost(1.5))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "abcde...", TruncateText("abcdefghij", 8))
}

func TestBuildRunSummary_DryRun(t *testing.T) {
	rec := &RunRecord{
		Model:        "tiny",
		PromptTokens: 6,
		OutputTokens: 100,
		TotalCost:    0.000208,
		Budget:       1.0,
		Response:     "[Dry-run] Would use tiny",
	}
	s := BuildRunSummary(rec)
	assert.Contains(t, s, "[Dry-run]")
	assert.Contains(t, s, "Model:            tiny")
	assert.Contains(t, s, "Over budget:      No")
	assert.NotContains(t, s, "--- Response ---")
	assert.NotContains(t, s, "Actual cost:")
}

func TestBuildRunSummary_Executed(t *testing.T) {
	cost := 0.00123
	tokens := 40
	score := 8
	rec := &RunRecord{
		Model:              "big",
		OriginalModel:      "tiny",
		QualityRetries:     2,
		QualityScore:       &score,
		ActualCost:         &cost,
		ActualOutputTokens: &tokens,
		LogID:              7,
		Response:           "the actual answer",
		BudgetExceeded:     true,
	}
	s := BuildRunSummary(rec)
	assert.Contains(t, s, "[Execute]")
	assert.Contains(t, s, "Escalated from:   tiny")
	assert.Contains(t, s, "Quality retries:  2")
	assert.Contains(t, s, "Quality score:    8/10")
	assert.Contains(t, s, "Actual cost:      $0.00123")
	assert.Contains(t, s, "Actual tokens:    40")
	assert.Contains(t, s, "Log ID:           7")
	assert.Contains(t, s, "Over budget:      Yes")
	assert.Contains(t, s, "--- Response ---")
}

func TestBuildRunSummary_Error(t *testing.T) {
	rec := &RunRecord{
		Model:       "tiny",
		Status:      "error",
		ErrorCode:   ErrCodeProviderUnavailable,
		ErrorDetail: "status 503",
	}
	s := BuildRunSummary(rec)
	assert.Contains(t, s, "Error:            provider_unavailable: status 503")
}
