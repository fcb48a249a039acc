// Package budget flags spending against per-call and daily limits.
// Both checks are advisory: they report, they never block a run.
package budget

// Guard compares estimated cost against the per-call ceiling.
type Guard struct {
	defaultLimit float64
}

// NewGuard creates a Guard with the process-wide default ceiling.
func NewGuard(defaultLimit float64) *Guard {
	return &Guard{defaultLimit: defaultLimit}
}

// Check reports whether cost exceeds the effective limit: the request
// override when present, else the default. The caller records the flag
// and proceeds either way.
func (g *Guard) Check(cost float64, override *float64) (exceeded bool, limit float64) {
	limit = g.defaultLimit
	if override != nil {
		limit = *override
	}
	return cost > limit, limit
}
