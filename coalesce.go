package modelguard

import (
	"context"
	"time"

	"github.com/ChiragNSundar/modelguard/internal/singleflight"
)

// FetchGroup layers request coalescing over an ExpiringCache: concurrent
// callers asking for the same missing key share a single computation, and a
// successful result is written back to the cache before the waiters are
// released. Failures are broadcast verbatim to every waiter and never cached.
type FetchGroup struct {
	cache      *ExpiringCache
	group      *singleflight.Group
	cacheEmpty bool
	metrics    *MetricsCollector
}

// FetchOption configures a FetchGroup.
type FetchOption func(*FetchGroup)

// WithEmptyResults makes the group cache nil results as well. By default a
// nil value is returned to callers but not stored.
func WithEmptyResults() FetchOption {
	return func(fg *FetchGroup) {
		fg.cacheEmpty = true
	}
}

// WithFetchMetrics records coalescing hits on the given collector.
func WithFetchMetrics(mc *MetricsCollector) FetchOption {
	return func(fg *FetchGroup) {
		fg.metrics = mc
	}
}

// NewFetchGroup wires a coalescing layer in front of cache.
func NewFetchGroup(cache *ExpiringCache, opts ...FetchOption) *FetchGroup {
	fg := &FetchGroup{
		cache: cache,
		group: singleflight.New(),
	}
	for _, opt := range opts {
		opt(fg)
	}
	return fg
}

// GetOrFetch returns the cached value for key, or runs compute exactly once
// per cache-miss episode no matter how many callers ask concurrently.
// compute runs outside all locks and receives the owner's ctx; waiting
// callers are released early if their own ctx is canceled.
func (fg *FetchGroup) GetOrFetch(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (any, error)) (any, error) {
	if value, ok := fg.cache.Get(key); ok {
		return value, nil
	}

	value, err, shared := fg.group.Do(ctx, key, func() (any, error) {
		// Double-check under coalescing ownership: another owner may have
		// completed and populated the cache between our miss and now.
		if value, ok := fg.cache.Get(key); ok {
			return value, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if value != nil || fg.cacheEmpty {
			fg.cache.Set(key, value, ttl)
		}
		return value, nil
	})

	if shared && fg.metrics != nil {
		fg.metrics.RecordCoalescedWaiter()
	}

	return value, err
}

// Invalidate drops key from the underlying cache and forgets any stale
// in-flight bookkeeping for it.
func (fg *FetchGroup) Invalidate(key string) bool {
	fg.group.Forget(key)
	return fg.cache.Invalidate(key)
}

// Cache exposes the underlying cache for stats and invalidation.
func (fg *FetchGroup) Cache() *ExpiringCache {
	return fg.cache
}
