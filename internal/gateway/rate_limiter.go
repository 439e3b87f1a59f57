package gateway

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a per-sender requests-per-minute budget on inbound
// RPC calls. A zero or negative configured RPM disables it entirely.
type RateLimiter struct {
	rpm     int
	burst   int
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewRateLimiter(rpm, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 5
	}
	return &RateLimiter{rpm: rpm, burst: burst, buckets: make(map[string]*rate.Limiter)}
}

// Enabled reports whether rate limiting is active.
func (r *RateLimiter) Enabled() bool { return r.rpm > 0 }

// Allow reports whether key (typically a sender or connection ID) may
// proceed right now, lazily creating its bucket on first use.
func (r *RateLimiter) Allow(key string) bool {
	if !r.Enabled() {
		return true
	}
	r.mu.Lock()
	lim, ok := r.buckets[key]
	if !ok {
		perSecond := rate.Limit(float64(r.rpm) / 60.0)
		lim = rate.NewLimiter(perSecond, r.burst)
		r.buckets[key] = lim
	}
	r.mu.Unlock()
	return lim.Allow()
}

// gcInterval is how often idle buckets could be swept; left unexercised
// for now since a single-operator gateway has a small, bounded sender set.
const gcInterval = 30 * time.Minute
