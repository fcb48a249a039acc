// Package pricing estimates token counts and dollar cost for prompts.
package pricing

import "github.com/costwise/costwise/internal/catalog"

// EstimateTokens approximates the token count of text.
// Uses ~4 characters per token, which is a good heuristic for English.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Quote is one cost breakdown. A quote is produced once and never
// mutated; a new attempt produces a new quote.
type Quote struct {
	Model          string  `json:"model"`
	PromptTokens   int     `json:"prompt_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	PromptCost     float64 `json:"prompt_cost"`
	CompletionCost float64 `json:"completion_cost"`
	TotalCost      float64 `json:"total_cost"`
}

// Estimator prices prompts against the catalog's per-1K token rates.
type Estimator struct {
	catalog *catalog.Catalog
}

// NewEstimator creates an Estimator over a loaded catalog.
func NewEstimator(cat *catalog.Catalog) *Estimator {
	return &Estimator{catalog: cat}
}

// Quote prices text for a model. Token counts are always computed; an
// unknown model degrades to zero rates instead of failing, so a pricing
// gap never blocks the pipeline.
func (e *Estimator) Quote(model, text string, outputTokens int) Quote {
	return e.price(model, EstimateTokens(text), outputTokens)
}

// ActualQuote prices real token usage reported by a provider, with the
// same zero-rate degradation for unknown models.
func (e *Estimator) ActualQuote(model string, promptTokens, completionTokens int) Quote {
	return e.price(model, promptTokens, completionTokens)
}

// EstimateTokens satisfies the orchestrator's Pricer interface.
func (e *Estimator) EstimateTokens(text string) int {
	return EstimateTokens(text)
}

func (e *Estimator) price(model string, promptTokens, outputTokens int) Quote {
	prompt1k, completion1k, _ := e.catalog.Rates(model)
	q := Quote{
		Model:          model,
		PromptTokens:   promptTokens,
		OutputTokens:   outputTokens,
		PromptCost:     float64(promptTokens) / 1000.0 * prompt1k,
		CompletionCost: float64(outputTokens) / 1000.0 * completion1k,
	}
	q.TotalCost = q.PromptCost + q.CompletionCost
	return q
}
