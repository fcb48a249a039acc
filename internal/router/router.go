// Package router selects a concrete model for a task's complexity tier.
package router

import (
	"fmt"
	"sort"

	"github.com/costwise/costwise/internal/catalog"
)

// Mode selects the routing strategy.
type Mode string

const (
	// ModeSingle routes within one configured provider's tier ladder.
	ModeSingle Mode = "single"
	// ModeCross routes across every available provider by cost-tier rank.
	ModeCross Mode = "cross"
)

// MaxTier is the highest complexity tier; there is no escalation past it.
const MaxTier = 3

// Decision is the outcome of one routing call. Model is the catalog
// model ID; unknown override IDs pass through here untouched.
type Decision struct {
	Model  string
	Reason string
}

// Escalate returns the tier one above t. ok is false at the top tier:
// no escalation is possible from there.
func Escalate(t int) (next int, ok bool) {
	if t >= MaxTier {
		return t, false
	}
	return t + 1, true
}

// ValidTier reports whether t is a declared complexity tier.
func ValidTier(t int) bool {
	return t >= 1 && t <= MaxTier
}

// Router picks one model per tier. It only reads the catalog, which is
// immutable after startup, so a single Router is safe for concurrent use.
type Router struct {
	catalog  *catalog.Catalog
	mode     Mode
	provider string
}

// New creates a Router. provider names the ladder used in single mode
// and is ignored in cross mode.
func New(cat *catalog.Catalog, mode Mode, provider string) *Router {
	return &Router{catalog: cat, mode: mode, provider: provider}
}

// Route returns exactly one model for the tier. It is a pure function of
// (tier, catalog, provider availability): same inputs, same decision.
func (r *Router) Route(tier int) Decision {
	var m catalog.Model
	if r.mode == ModeCross {
		m = r.routeCross(tier)
	} else {
		m = r.routeSingle(tier)
	}
	return Decision{Model: m.ID, Reason: fmt.Sprintf("router:level=%d", tier)}
}

// routeSingle walks the configured provider's models in declaration order
// and picks the first one serving the tier. With no exact match it falls
// back to the strongest model of the ladder.
func (r *Router) routeSingle(tier int) catalog.Model {
	ladder := r.catalog.ForProvider(r.provider)
	if len(ladder) == 0 {
		ladder = r.catalog.Models()
	}
	for _, m := range ladder {
		if m.Tier == tier {
			return m
		}
	}
	best := ladder[0]
	for _, m := range ladder[1:] {
		if m.Tier > best.Tier {
			best = m
		}
	}
	return best
}

// routeCross selects by cost-tier rank over all available-provider models:
// tier 1 takes the lowest rank, tier 3 the highest, tier 2 the statistical
// median (the lower of the two middle values on an even count). All ties
// resolve to the earliest declared model with the chosen rank.
func (r *Router) routeCross(tier int) catalog.Model {
	candidates := r.catalog.AvailableModels()

	ranks := make([]int, len(candidates))
	for i, m := range candidates {
		ranks[i] = m.CostTier
	}
	sort.Ints(ranks)

	var want int
	switch tier {
	case 1:
		want = ranks[0]
	case 2:
		want = ranks[(len(ranks)-1)/2]
	default:
		want = ranks[len(ranks)-1]
	}

	for _, m := range candidates {
		if m.CostTier == want {
			return m
		}
	}
	return candidates[0]
}
