package provider

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/costwise/costwise/internal/catalog"
)

// defaultBaseURLs holds each provider family's OpenAI-compatible API root.
var defaultBaseURLs = map[string]string{
	"google":    "https://generativelanguage.googleapis.com/v1beta/openai",
	"openai":    "https://api.openai.com/v1",
	"anthropic": "https://api.anthropic.com/v1",
	"deepseek":  "https://api.deepseek.com/v1",
}

// Registry resolves model identifiers to provider clients. Models carry
// litellm-style identifiers ("gemini/gemini-2.0-flash"); the registry
// picks the client and strips the prefix on the wire.
type Registry struct {
	catalog *catalog.Catalog
	clients map[string]*Client
}

// NewRegistry builds a registry over an explicit client set. Used by tests
// and by callers that manage credentials themselves.
func NewRegistry(cat *catalog.Catalog, clients map[string]*Client) *Registry {
	if clients == nil {
		clients = map[string]*Client{}
	}
	return &Registry{catalog: cat, clients: clients}
}

// FromEnv builds a registry with a client for every catalog provider whose
// API key is set. A provider's API root can be overridden with
// <PROVIDER>_BASE_URL, which also makes local gateways testable.
func FromEnv(cat *catalog.Catalog, timeout time.Duration) *Registry {
	r := &Registry{catalog: cat, clients: map[string]*Client{}}
	for _, p := range cat.Providers() {
		key := os.Getenv(catalog.EnvKey(p))
		if key == "" {
			continue
		}
		base := os.Getenv(strings.ToUpper(p) + "_BASE_URL")
		if base == "" {
			base = defaultBaseURLs[p]
		}
		if base == "" {
			continue
		}
		r.clients[p] = NewClient(p, base, key, timeout)
	}
	return r
}

// Complete routes the call to the model's provider client.
func (r *Registry) Complete(ctx context.Context, model string, messages []Message, maxTokens int) (*Result, error) {
	prov := r.resolve(model)
	client, ok := r.clients[prov]
	if !ok {
		return nil, fmt.Errorf("provider.Complete: %s: %w", prov, ErrNotConfigured)
	}
	return client.Complete(ctx, wireModel(model), messages, maxTokens)
}

// Configured reports whether a client exists for the model's provider.
func (r *Registry) Configured(model string) bool {
	_, ok := r.clients[r.resolve(model)]
	return ok
}

// resolve finds the provider family for a model: the catalog entry wins,
// then the identifier prefix, else openai (bare identifiers like "gpt-4o").
func (r *Registry) resolve(model string) string {
	if r.catalog != nil {
		if m, ok := r.catalog.ByID(model); ok {
			return m.Provider
		}
	}
	prefix, _, found := strings.Cut(model, "/")
	if !found {
		return "openai"
	}
	if prefix == "gemini" {
		return "google"
	}
	return prefix
}

// wireModel strips the provider prefix: upstream APIs expect the bare
// model name ("gemini/gemini-2.0-flash" goes out as "gemini-2.0-flash").
func wireModel(model string) string {
	if _, rest, found := strings.Cut(model, "/"); found {
		return rest
	}
	return model
}
