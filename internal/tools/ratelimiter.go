package tools

import (
	"sync"

	"golang.org/x/time/rate"
)

// ToolRateLimiter enforces a per-session-key executions-per-hour budget
// on tool calls, mirroring the gateway's per-sender RPC limiter but
// scoped to hours rather than minutes since a runaway tool loop is a
// slower-burning problem than a chatty RPC client.
type ToolRateLimiter struct {
	perHour int
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewToolRateLimiter creates a limiter allowing perHour executions per
// session key, with a burst equal to perHour so a legitimate burst of
// tool calls within one agent iteration isn't throttled mid-turn. A
// perHour of 0 or less disables the limiter.
func NewToolRateLimiter(perHour int) *ToolRateLimiter {
	return &ToolRateLimiter{perHour: perHour, buckets: make(map[string]*rate.Limiter)}
}

func (t *ToolRateLimiter) Allow(sessionKey string) bool {
	if t.perHour <= 0 {
		return true
	}
	t.mu.Lock()
	lim, ok := t.buckets[sessionKey]
	if !ok {
		perSecond := rate.Limit(float64(t.perHour) / 3600.0)
		lim = rate.NewLimiter(perSecond, t.perHour)
		t.buckets[sessionKey] = lim
	}
	t.mu.Unlock()
	return lim.Allow()
}
