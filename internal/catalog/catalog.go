// Package catalog holds the model catalog: which models exist, which
// complexity tier each serves, which provider family owns it, and what
// it costs per 1000 tokens. The catalog is loaded once at startup and
// never mutated afterwards; declaration order is preserved because the
// router uses it for tie-breaks.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Model describes one routable model.
type Model struct {
	ID              string  `toml:"id" json:"id"`
	DisplayName     string  `toml:"display_name" json:"display_name"`
	Provider        string  `toml:"provider" json:"provider"`
	Tier            int     `toml:"tier" json:"tier"`
	CostTier        int     `toml:"cost_tier" json:"cost_tier"`
	PromptPer1K     float64 `toml:"prompt_per_1k" json:"prompt_per_1k"`
	CompletionPer1K float64 `toml:"completion_per_1k" json:"completion_per_1k"`
}

// Catalog is the read-only model registry.
type Catalog struct {
	models []Model
	byID   map[string]int
}

type catalogFile struct {
	Models []Model `toml:"models"`
}

// Load reads the catalog from a TOML file, or returns the built-in
// presets when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	var file catalogFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("catalog.Load: %w", err)
	}
	cat, err := New(file.Models)
	if err != nil {
		return nil, fmt.Errorf("catalog.Load: %s: %w", path, err)
	}
	return cat, nil
}

// New builds a catalog from a model list, validating each entry.
func New(models []Model) (*Catalog, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("no models declared")
	}
	byID := make(map[string]int, len(models))
	for i, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("model %d: id is required", i)
		}
		if m.Provider == "" {
			return nil, fmt.Errorf("model %q: provider is required", m.ID)
		}
		if m.Tier < 1 || m.Tier > 3 {
			return nil, fmt.Errorf("model %q: tier must be 1-3, got %d", m.ID, m.Tier)
		}
		if m.CostTier < 1 || m.CostTier > 3 {
			return nil, fmt.Errorf("model %q: cost_tier must be 1-3, got %d", m.ID, m.CostTier)
		}
		if _, dup := byID[m.ID]; dup {
			return nil, fmt.Errorf("model %q declared twice", m.ID)
		}
		byID[m.ID] = i
	}
	return &Catalog{models: models, byID: byID}, nil
}

// Models returns all models in declaration order. Callers must not modify
// the returned slice.
func (c *Catalog) Models() []Model {
	return c.models
}

// ByID looks a model up by its identifier.
func (c *Catalog) ByID(id string) (Model, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Model{}, false
	}
	return c.models[i], true
}

// Rates returns the per-1K token prices for a model. Unknown models get
// zero rates; pricing gaps never block the pipeline.
func (c *Catalog) Rates(id string) (promptPer1K, completionPer1K float64, known bool) {
	m, ok := c.ByID(id)
	if !ok {
		return 0, 0, false
	}
	return m.PromptPer1K, m.CompletionPer1K, true
}

// ForProvider returns the models of one provider family in declaration order.
func (c *Catalog) ForProvider(provider string) []Model {
	var out []Model
	for _, m := range c.models {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	return out
}

// Providers returns the distinct provider families in declaration order.
func (c *Catalog) Providers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range c.models {
		if !seen[m.Provider] {
			seen[m.Provider] = true
			out = append(out, m.Provider)
		}
	}
	return out
}

// EnvKey returns the environment variable that holds a provider's API key,
// e.g. "google" -> "GOOGLE_API_KEY".
func EnvKey(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

// Available reports whether a provider's API key is configured.
func Available(provider string) bool {
	return os.Getenv(EnvKey(provider)) != ""
}

// AvailableModels returns the models of providers with a configured API
// key, in declaration order. When no provider is configured at all (the
// usual state for dry-run-only setups) every model is considered
// available, so routing and estimation still work keyless.
func (c *Catalog) AvailableModels() []Model {
	var out []Model
	for _, m := range c.models {
		if Available(m.Provider) {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return c.models
	}
	return out
}
