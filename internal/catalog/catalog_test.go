package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cat := Default()
	assert.NotEmpty(t, cat.Models())

	m, ok := cat.ByID("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, "openai", m.Provider)
	assert.Equal(t, 2, m.Tier)

	// Declaration order is preserved; google models come first.
	assert.Equal(t, "gemini/gemini-2.0-flash", cat.Models()[0].ID)
	assert.Equal(t, []string{"google", "openai", "anthropic", "deepseek"}, cat.Providers())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorContains(t, err, "no models declared")

	_, err = New([]Model{{Provider: "x", Tier: 1, CostTier: 1}})
	assert.ErrorContains(t, err, "id is required")

	_, err = New([]Model{{ID: "m", Tier: 1, CostTier: 1}})
	assert.ErrorContains(t, err, "provider is required")

	_, err = New([]Model{{ID: "m", Provider: "x", Tier: 4, CostTier: 1}})
	assert.ErrorContains(t, err, "tier must be 1-3")

	_, err = New([]Model{
		{ID: "m", Provider: "x", Tier: 1, CostTier: 1},
		{ID: "m", Provider: "x", Tier: 2, CostTier: 2},
	})
	assert.ErrorContains(t, err, "declared twice")
}

func TestLoad_TOML(t *testing.T) {
	tmp := filepath.Join(os.TempDir(), "costwise_test_catalog.toml")
	defer os.Remove(tmp)

	content := `
[[models]]
id = "alpha/a1"
display_name = "Alpha One"
provider = "alpha"
tier = 1
cost_tier = 1
prompt_per_1k = 0.001
completion_per_1k = 0.002

[[models]]
id = "alpha/a3"
display_name = "Alpha Three"
provider = "alpha"
tier = 3
cost_tier = 3
prompt_per_1k = 0.01
completion_per_1k = 0.02
`
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))

	cat, err := Load(tmp)
	require.NoError(t, err)
	assert.Len(t, cat.Models(), 2)

	m, ok := cat.ByID("alpha/a1")
	require.True(t, ok)
	assert.Equal(t, "Alpha One", m.DisplayName)
	assert.Equal(t, 0.001, m.PromptPer1K)
}

func TestLoad_EmptyPathUsesPresets(t *testing.T) {
	cat, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Models())
}

func TestRates(t *testing.T) {
	cat := Default()

	p, c, known := cat.Rates("gemini/gemini-2.0-flash")
	assert.True(t, known)
	assert.Equal(t, 0.0001, p)
	assert.Equal(t, 0.0004, c)

	p, c, known = cat.Rates("does-not-exist")
	assert.False(t, known)
	assert.Equal(t, 0.0, p)
	assert.Equal(t, 0.0, c)
}

func TestForProvider(t *testing.T) {
	cat := Default()

	models := cat.ForProvider("deepseek")
	require.Len(t, models, 2)
	assert.Equal(t, "deepseek/deepseek-chat", models[0].ID)

	assert.Empty(t, cat.ForProvider("nobody"))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "GOOGLE_API_KEY", EnvKey("google"))
	assert.Equal(t, "OPENAI_API_KEY", EnvKey("openai"))
}

func TestAvailableModels(t *testing.T) {
	cat := Default()
	for _, p := range cat.Providers() {
		t.Setenv(EnvKey(p), "")
	}

	// Keyless setups see every model, so routing works before setup.
	assert.Len(t, cat.AvailableModels(), len(cat.Models()))

	t.Setenv("OPENAI_API_KEY", "test-key")
	models := cat.AvailableModels()
	require.NotEmpty(t, models)
	for _, m := range models {
		assert.Equal(t, "openai", m.Provider)
	}
}
