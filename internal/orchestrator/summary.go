package orchestrator

import (
	"fmt"
	"strings"
)

// FormatCost renders a dollar amount with five decimals, e.g. "$0.00432".
func FormatCost(cost float64) string {
	return fmt.Sprintf("$%.5f", cost)
}

// TruncateText shortens text to maxChars, appending "..." when it cuts.
func TruncateText(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars-3] + "..."
}

// BuildRunSummary renders a record as the aligned multi-line block shown
// by the CLI and returned in API responses.
func BuildRunSummary(rec *RunRecord) string {
	mode := "[Dry-run]"
	if rec.ActualCost != nil {
		mode = "[Execute]"
	}
	lines := []string{
		fmt.Sprintf("Mode:             %s", mode),
		fmt.Sprintf("Model:            %s", rec.Model),
		fmt.Sprintf("Prompt tokens:    %d", rec.PromptTokens),
		fmt.Sprintf("Output tokens:    %d", rec.OutputTokens),
		fmt.Sprintf("Prompt cost:      %s", FormatCost(rec.PromptCost)),
		fmt.Sprintf("Completion cost:  %s", FormatCost(rec.CompletionCost)),
		fmt.Sprintf("Total cost (est): %s", FormatCost(rec.TotalCost)),
		fmt.Sprintf("Budget:           %s", FormatCost(rec.Budget)),
		fmt.Sprintf("Over budget:      %s", yesNo(rec.BudgetExceeded)),
		fmt.Sprintf("Cumulative cost:  %s", FormatCost(rec.CumulativeCost)),
	}
	if rec.Escalated() {
		lines = append(lines,
			fmt.Sprintf("Escalated from:   %s", rec.OriginalModel),
			fmt.Sprintf("Quality retries:  %d", rec.QualityRetries))
	}
	if rec.QualityScore != nil {
		lines = append(lines, fmt.Sprintf("Quality score:    %d/10", *rec.QualityScore))
	}
	if rec.ActualCost != nil {
		lines = append(lines, fmt.Sprintf("Actual cost:      %s", FormatCost(*rec.ActualCost)))
	}
	if rec.ActualOutputTokens != nil {
		lines = append(lines, fmt.Sprintf("Actual tokens:    %d", *rec.ActualOutputTokens))
	}
	if rec.LogID != 0 {
		lines = append(lines, fmt.Sprintf("Log ID:           %d", rec.LogID))
	}
	if rec.ErrorCode != "" {
		lines = append(lines, fmt.Sprintf("Error:            %s: %s", rec.ErrorCode, rec.ErrorDetail))
	}
	if rec.Response != "" && !strings.HasPrefix(rec.Response, "[Dry-run]") {
		lines = append(lines, "\n--- Response ---\n"+rec.Response)
	}
	return strings.Join(lines, "\n")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
