package budget

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Zone classifies cumulative spend against the daily cap.
type Zone int

const (
	ZoneNormal Zone = iota
	ZoneWarning
	ZoneCritical
)

func (z Zone) String() string {
	switch z {
	case ZoneWarning:
		return "warning"
	case ZoneCritical:
		return "critical"
	default:
		return "normal"
	}
}

// warningShare is the fraction of the daily cap where Warning begins.
const warningShare = 0.7

// SpendReader answers spend queries from the run log.
type SpendReader interface {
	CostSince(ctx context.Context, since time.Time) (float64, error)
}

// NotifySender dispatches a notification event.
type NotifySender interface {
	Send(event string, payload interface{})
}

// Monitor watches today's spend against the daily cap and raises a
// notification when the zone changes. Advisory, like the per-call guard.
type Monitor struct {
	store  SpendReader
	notify NotifySender
	cap    float64

	mu       sync.Mutex
	lastZone Zone
}

// NewMonitor creates a Monitor. A dailyCap of 0 disables zone tracking.
func NewMonitor(store SpendReader, notify NotifySender, dailyCap float64) *Monitor {
	return &Monitor{store: store, notify: notify, cap: dailyCap}
}

// CheckDaily classifies today's spend and notifies on zone transitions
// into Warning or Critical.
func (m *Monitor) CheckDaily(ctx context.Context) (Zone, error) {
	if m.cap <= 0 {
		return ZoneNormal, nil
	}
	spent, err := m.store.CostSince(ctx, MidnightUTC())
	if err != nil {
		return ZoneNormal, fmt.Errorf("budget.CheckDaily: spend query: %w", err)
	}
	zone := ZoneFor(spent, m.cap)

	m.mu.Lock()
	changed := zone != m.lastZone
	m.lastZone = zone
	m.mu.Unlock()

	if changed && zone > ZoneNormal && m.notify != nil {
		m.notify.Send("budget.zone", fmt.Sprintf(
			"daily spend $%.5f is %.0f%% of the $%.2f cap (%s)",
			spent, spent/m.cap*100, m.cap, zone))
	}
	return zone, nil
}

// ZoneFor classifies spend against a daily cap. A zero or negative cap
// disables classification.
func ZoneFor(spent, cap float64) Zone {
	if cap <= 0 {
		return ZoneNormal
	}
	share := spent / cap
	switch {
	case share >= 1.0:
		return ZoneCritical
	case share >= warningShare:
		return ZoneWarning
	default:
		return ZoneNormal
	}
}

// MidnightUTC returns the start of the current UTC day. Daily spend
// windows are anchored here so totals match across restarts.
func MidnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
