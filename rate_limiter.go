package modelguard

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// RouteLimit is a (limit, window) pair for one route.
type RouteLimit struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of an admission check. Rejection is a first-class
// result, not an error; Reset is how long until the oldest retained request
// leaves the window.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration
}

// SlidingWindowLimiter is per-client-per-route admission control over a true
// rolling window: a burst straddling a window boundary is still counted
// against the limit. Safe for concurrent use.
type SlidingWindowLimiter struct {
	mu           sync.Mutex
	defaultLimit RouteLimit
	routes       map[string]RouteLimit
	windows      map[string][]time.Time
	now          func() time.Time
}

// LimiterOption configures a SlidingWindowLimiter.
type LimiterOption func(*SlidingWindowLimiter)

// WithRouteLimit sets a per-route override.
func WithRouteLimit(route string, limit RouteLimit) LimiterOption {
	return func(l *SlidingWindowLimiter) {
		l.routes[route] = limit
	}
}

// withClock substitutes the time source in tests.
func withClock(now func() time.Time) LimiterOption {
	return func(l *SlidingWindowLimiter) {
		l.now = now
	}
}

// NewSlidingWindowLimiter creates a limiter using defaultLimit for routes
// without an override.
func NewSlidingWindowLimiter(defaultLimit RouteLimit, opts ...LimiterOption) *SlidingWindowLimiter {
	if defaultLimit.Limit <= 0 {
		defaultLimit.Limit = 60
	}
	if defaultLimit.Window <= 0 {
		defaultLimit.Window = time.Minute
	}

	l := &SlidingWindowLimiter{
		defaultLimit: defaultLimit,
		routes:       make(map[string]RouteLimit),
		windows:      make(map[string][]time.Time),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetDefault replaces the limit used by routes without an override.
func (l *SlidingWindowLimiter) SetDefault(limit RouteLimit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit.Limit > 0 && limit.Window > 0 {
		l.defaultLimit = limit
	}
}

// SetRouteLimit sets or replaces a per-route override.
func (l *SlidingWindowLimiter) SetRouteLimit(route string, limit RouteLimit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.routes[route] = limit
}

// Check decides whether a request from clientKey to route may proceed.
// Admission appends the request instant to the window; rejection leaves the
// window untouched and reports when capacity frees up.
func (l *SlidingWindowLimiter) Check(clientKey, route string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit := l.defaultLimit
	if override, ok := l.routes[route]; ok {
		limit = override
	}

	key := clientKey + "|" + route
	now := l.now()
	cutoff := now.Add(-limit.Window)

	window := l.windows[key]
	pruned := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) >= limit.Limit {
		l.windows[key] = pruned
		// A zero-limit route rejects with an empty window; the full window
		// is the only honest retry horizon then.
		reset := limit.Window
		if len(pruned) > 0 {
			reset = pruned[0].Add(limit.Window).Sub(now)
		}
		return Decision{
			Allowed:   false,
			Limit:     limit.Limit,
			Remaining: 0,
			Reset:     reset,
		}
	}

	pruned = append(pruned, now)
	l.windows[key] = pruned
	return Decision{
		Allowed:   true,
		Limit:     limit.Limit,
		Remaining: limit.Limit - len(pruned),
		Reset:     limit.Window,
	}
}

// Prune drops windows that have gone fully idle. Callers may run it
// periodically to bound memory on churny client populations.
func (l *SlidingWindowLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, window := range l.windows {
		live := false
		for _, ts := range window {
			// The widest configured window bounds how long an entry can matter.
			if now.Sub(ts) < l.maxWindowLocked() {
				live = true
				break
			}
		}
		if !live {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

func (l *SlidingWindowLimiter) maxWindowLocked() time.Duration {
	max := l.defaultLimit.Window
	for _, rl := range l.routes {
		if rl.Window > max {
			max = rl.Window
		}
	}
	return max
}

// DefaultClientKey derives a stable client identity from a network address
// and a coarse client signature (for example a user-agent digest). The hash
// keeps raw addresses out of limiter keys and logs.
func DefaultClientKey(addr, signature string) string {
	h := fnv.New64a()
	h.Write([]byte(addr))
	h.Write([]byte{0})
	h.Write([]byte(signature))
	return fmt.Sprintf("%x", h.Sum64())
}
