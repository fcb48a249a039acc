package auth

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// Lockout limits for failed key checks.
const (
	maxFailures = 5
	blockWindow = 15 * time.Minute
)

// Throttle blocks an IP after repeated failed key checks. State lives
// in memory: a restart clears it, which is fine for a lockout whose
// job is slowing down online brute force.
type Throttle struct {
	mu    sync.Mutex
	fails map[string][]time.Time
}

// NewThrottle creates an empty Throttle.
func NewThrottle() *Throttle {
	return &Throttle{fails: make(map[string][]time.Time)}
}

// Blocked reports whether ip has reached maxFailures inside blockWindow.
func (t *Throttle) Blocked(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.recent(ip)) >= maxFailures
}

// Fail records a failed attempt for ip.
func (t *Throttle) Fail(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fails[ip] = append(t.recent(ip), time.Now())
}

// Clear drops the failure history for ip after a successful check.
func (t *Throttle) Clear(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.fails, ip)
}

// recent prunes expired entries in place. Caller holds mu.
func (t *Throttle) recent(ip string) []time.Time {
	cutoff := time.Now().Add(-blockWindow)
	kept := t.fails[ip][:0]
	for _, ts := range t.fails[ip] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(t.fails, ip)
	} else {
		t.fails[ip] = kept
	}
	return kept
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
