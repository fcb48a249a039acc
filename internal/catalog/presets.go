package catalog

// presets is the built-in catalog used when no CATALOG_PATH is configured.
// Tier is the complexity level a model serves (1=simple, 2=medium,
// 3=complex); CostTier ranks relative price within the whole pool
// (1=cheap, 2=mid, 3=expensive). Rates are USD per 1000 tokens.
var presets = []Model{
	{
		ID:              "gemini/gemini-2.0-flash",
		DisplayName:     "Gemini 2.0 Flash",
		Provider:        "google",
		Tier:            1,
		CostTier:        1,
		PromptPer1K:     0.0001,
		CompletionPer1K: 0.0004,
	},
	{
		ID:              "gemini/gemini-2.5-flash",
		DisplayName:     "Gemini 2.5 Flash",
		Provider:        "google",
		Tier:            2,
		CostTier:        1,
		PromptPer1K:     0.00015,
		CompletionPer1K: 0.0006,
	},
	{
		ID:              "gemini/gemini-2.5-pro",
		DisplayName:     "Gemini 2.5 Pro",
		Provider:        "google",
		Tier:            3,
		CostTier:        2,
		PromptPer1K:     0.00125,
		CompletionPer1K: 0.01,
	},
	{
		ID:              "gpt-4o-mini",
		DisplayName:     "GPT-4o Mini",
		Provider:        "openai",
		Tier:            1,
		CostTier:        1,
		PromptPer1K:     0.00015,
		CompletionPer1K: 0.0006,
	},
	{
		ID:              "gpt-4o",
		DisplayName:     "GPT-4o",
		Provider:        "openai",
		Tier:            2,
		CostTier:        2,
		PromptPer1K:     0.0025,
		CompletionPer1K: 0.01,
	},
	{
		ID:              "o3-mini",
		DisplayName:     "o3-mini",
		Provider:        "openai",
		Tier:            3,
		CostTier:        3,
		PromptPer1K:     0.0011,
		CompletionPer1K: 0.0044,
	},
	{
		ID:              "anthropic/claude-haiku-4-5-20251001",
		DisplayName:     "Claude Haiku",
		Provider:        "anthropic",
		Tier:            1,
		CostTier:        1,
		PromptPer1K:     0.001,
		CompletionPer1K: 0.005,
	},
	{
		ID:              "anthropic/claude-sonnet-4-20250514",
		DisplayName:     "Claude Sonnet",
		Provider:        "anthropic",
		Tier:            2,
		CostTier:        2,
		PromptPer1K:     0.003,
		CompletionPer1K: 0.015,
	},
	{
		ID:              "anthropic/claude-opus-4-20250514",
		DisplayName:     "Claude Opus",
		Provider:        "anthropic",
		Tier:            3,
		CostTier:        3,
		PromptPer1K:     0.015,
		CompletionPer1K: 0.075,
	},
	{
		ID:              "deepseek/deepseek-chat",
		DisplayName:     "DeepSeek V3",
		Provider:        "deepseek",
		Tier:            1,
		CostTier:        1,
		PromptPer1K:     0.00014,
		CompletionPer1K: 0.00028,
	},
	{
		ID:              "deepseek/deepseek-reasoner",
		DisplayName:     "DeepSeek R1",
		Provider:        "deepseek",
		Tier:            3,
		CostTier:        1,
		PromptPer1K:     0.00055,
		CompletionPer1K: 0.00219,
	},
}

// Default returns the built-in preset catalog.
func Default() *Catalog {
	cat, err := New(presets)
	if err != nil {
		// presets are compile-time data; a validation failure is a bug
		panic("catalog: invalid presets: " + err.Error())
	}
	return cat
}
