package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costwise/costwise/internal/catalog"
)

func crossCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Model{
		{ID: "cheap", Provider: "alpha", Tier: 1, CostTier: 1},
		{ID: "mid", Provider: "beta", Tier: 2, CostTier: 2},
		{ID: "dear", Provider: "gamma", Tier: 3, CostTier: 3},
	})
	require.NoError(t, err)
	for _, p := range []string{"alpha", "beta", "gamma"} {
		t.Setenv(catalog.EnvKey(p), "")
	}
	return cat
}

func TestRouter_Single(t *testing.T) {
	r := New(catalog.Default(), ModeSingle, "openai")

	d := r.Route(1)
	assert.Equal(t, "gpt-4o-mini", d.Model)
	assert.Equal(t, "router:level=1", d.Reason)

	assert.Equal(t, "gpt-4o", r.Route(2).Model)
	assert.Equal(t, "o3-mini", r.Route(3).Model)
}

func TestRouter_Single_FallbackStrongest(t *testing.T) {
	// deepseek declares tiers 1 and 3 only; tier 2 falls back to the
	// strongest model of the ladder.
	r := New(catalog.Default(), ModeSingle, "deepseek")
	assert.Equal(t, "deepseek/deepseek-chat", r.Route(1).Model)
	assert.Equal(t, "deepseek/deepseek-reasoner", r.Route(2).Model)
	assert.Equal(t, "deepseek/deepseek-reasoner", r.Route(3).Model)
}

func TestRouter_Single_UnknownProvider(t *testing.T) {
	// An unknown ladder widens to the whole catalog.
	r := New(catalog.Default(), ModeSingle, "nobody")
	assert.Equal(t, "gemini/gemini-2.0-flash", r.Route(1).Model)
}

func TestRouter_Cross(t *testing.T) {
	r := New(crossCatalog(t), ModeCross, "")

	assert.Equal(t, "cheap", r.Route(1).Model)
	assert.Equal(t, "mid", r.Route(2).Model)
	assert.Equal(t, "dear", r.Route(3).Model)
}

func TestRouter_Cross_MedianEvenCount(t *testing.T) {
	cat, err := catalog.New([]catalog.Model{
		{ID: "a", Provider: "alpha", Tier: 1, CostTier: 1},
		{ID: "b", Provider: "alpha", Tier: 2, CostTier: 2},
		{ID: "c", Provider: "alpha", Tier: 2, CostTier: 2},
		{ID: "d", Provider: "alpha", Tier: 3, CostTier: 3},
	})
	require.NoError(t, err)
	t.Setenv(catalog.EnvKey("alpha"), "")

	// Even count takes the lower middle rank; ties go to declaration order.
	r := New(cat, ModeCross, "")
	assert.Equal(t, "b", r.Route(2).Model)
}

func TestRouter_Cross_Availability(t *testing.T) {
	cat := crossCatalog(t)
	t.Setenv(catalog.EnvKey("beta"), "test-key")

	// Only beta is configured, so every tier lands on its model.
	r := New(cat, ModeCross, "")
	assert.Equal(t, "mid", r.Route(1).Model)
	assert.Equal(t, "mid", r.Route(2).Model)
	assert.Equal(t, "mid", r.Route(3).Model)
}

func TestEscalate(t *testing.T) {
	next, ok := Escalate(1)
	assert.True(t, ok)
	assert.Equal(t, 2, next)

	next, ok = Escalate(2)
	assert.True(t, ok)
	assert.Equal(t, 3, next)

	next, ok = Escalate(3)
	assert.False(t, ok)
	assert.Equal(t, 3, next)
}

func TestValidTier(t *testing.T) {
	assert.False(t, ValidTier(0))
	assert.True(t, ValidTier(1))
	assert.True(t, ValidTier(3))
	assert.False(t, ValidTier(4))
}
