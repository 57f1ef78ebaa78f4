package modelguard

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client composes the reliability layers into one pipeline: sliding-window
// admission, coalesced caching, then tier-ordered fallback across model
// providers. One Client is constructed at process start and shared; it is
// safe for concurrent use and holds no hidden global state.
type Client struct {
	cache    *ExpiringCache
	fetch    *FetchGroup
	breakers *CircuitRegistry
	router   *Router
	limiter  *SlidingWindowLimiter

	retryPolicy RetryPolicy
	metrics     *MetricsCollector
	logger      Logger
	debug       *DebugConfig

	cacheEmpty      bool
	pendingModels   []ModelConfig
	pendingHandlers map[string]Handler
	pendingBreakers map[string]BreakerConfig
	validationError error
}

// New constructs a Client from functional options. Validation is best
// effort; check IsValid / ValidationError after construction.
func New(options ...Option) *Client {
	client := &Client{
		cache:    NewExpiringCache(1024, 5*time.Minute),
		breakers: NewCircuitRegistry(BreakerConfig{}),
		limiter:  NewSlidingWindowLimiter(RouteLimit{Limit: 60, Window: time.Minute}),
		debug:    DefaultDebugConfig(),
	}

	for _, option := range options {
		option(client)
	}

	for name, config := range client.pendingBreakers {
		client.breakers.Configure(name, config)
	}
	client.pendingBreakers = nil

	if client.router == nil {
		client.router = NewRouter(client.breakers)
	}
	for _, m := range client.pendingModels {
		client.router.AddModel(m)
	}
	for provider, handler := range client.pendingHandlers {
		client.router.RegisterHandler(provider, handler)
	}
	client.pendingModels = nil
	client.pendingHandlers = nil

	fetchOpts := []FetchOption{}
	if client.cacheEmpty {
		fetchOpts = append(fetchOpts, WithEmptyResults())
	}
	if client.metrics != nil {
		fetchOpts = append(fetchOpts, WithFetchMetrics(client.metrics))
		client.router.SetMetrics(client.metrics)
	}
	if client.logger != nil {
		client.router.SetLogger(client.logger)
	}
	client.router.SetDebug(client.debug)
	client.fetch = NewFetchGroup(client.cache, fetchOpts...)

	if err := client.validate(); err != nil {
		client.validationError = err
	}

	return client
}

// AddModel registers a routable model.
func (c *Client) AddModel(model ModelConfig) {
	c.router.AddModel(model)
}

// RegisterHandler binds a provider name to its handler.
func (c *Client) RegisterHandler(provider string, handler Handler) {
	c.router.RegisterHandler(provider, handler)
}

// Do executes req through the full pipeline. Admission is checked first when
// the request carries a client key; cacheable requests are coalesced so
// concurrent identical misses share one provider call.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	route := req.Route
	if route == "" {
		route = "default"
	}

	var requestID string
	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen != nil {
			requestID = c.debug.RequestIDGen()
		} else {
			requestID = uuid.NewString()
		}
	}

	if c.metrics != nil {
		c.metrics.RecordRequestStart(route)
		defer c.metrics.RecordRequestEnd(route)
	}

	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("request started", "requestID", requestID, "route", route, "cacheable", req.Cacheable)
	}

	if req.ClientKey != "" {
		decision := c.limiter.Check(req.ClientKey, route)
		if c.metrics != nil {
			c.metrics.RecordRateLimitDecision(route, decision.Allowed)
		}
		if !decision.Allowed {
			if c.debug != nil && c.debug.Enabled && c.debug.LogRateLimit && c.logger != nil {
				c.logger.Warn("request rejected by admission control", "requestID", requestID, "route", route, "reset", decision.Reset)
			}
			c.recordOutcome(route, "rate_limited", start)
			return nil, &RateLimitError{Route: route, Limit: decision.Limit, Reset: decision.Reset}
		}
	}

	if req.Cacheable {
		key := req.CacheKey
		if key == "" {
			key = DefaultCacheKey(req)
		}

		if value, hit := c.cache.Get(key); hit {
			if c.metrics != nil {
				c.metrics.RecordCacheHit(route)
			}
			if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
				c.logger.Debug("cache hit", "requestID", requestID, "cacheKey", key)
			}
			c.recordOutcome(route, "success", start)
			return value.(*Response), nil
		}

		value, err := c.fetch.GetOrFetch(ctx, key, req.CacheTTL, func(ctx context.Context) (any, error) {
			if c.metrics != nil {
				c.metrics.RecordCacheMiss(route)
			}
			if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
				c.logger.Debug("cache miss, calling router", "requestID", requestID, "cacheKey", key)
			}
			return c.callRouter(ctx, route, req)
		})
		if c.metrics != nil {
			c.metrics.RecordCacheSize(c.cache.Len())
		}
		if err != nil {
			c.recordOutcome(route, "error", start)
			return nil, err
		}
		c.recordOutcome(route, "success", start)
		return value.(*Response), nil
	}

	resp, err := c.callRouter(ctx, route, req)
	if err != nil {
		c.recordOutcome(route, "error", start)
		return nil, err
	}
	c.recordOutcome(route, "success", start)
	return resp, nil
}

// callRouter runs the fallback walk, applying the retry policy (if any)
// around the whole walk for transient failures.
func (c *Client) callRouter(ctx context.Context, route string, req *Request) (*Response, error) {
	resp, _, err := c.router.CallWithFallback(ctx, req, req.Capability)
	if err == nil || c.retryPolicy == nil {
		return resp, err
	}

	for attempt := 0; ; attempt++ {
		delay, retry := c.retryPolicy.ShouldRetry(err, attempt)
		if !retry {
			return nil, err
		}
		if c.metrics != nil {
			c.metrics.RecordRetry(route)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		resp, _, err = c.router.CallWithFallback(ctx, req, req.Capability)
		if err == nil {
			return resp, nil
		}
	}
}

func (c *Client) recordOutcome(route, outcome string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordRequest(route, outcome, time.Since(start))
	}
}

// Invalidate drops one cached response by key.
func (c *Client) Invalidate(key string) bool {
	return c.fetch.Invalidate(key)
}

// InvalidateRoute drops every cached response for a route.
func (c *Client) InvalidateRoute(route string) int {
	return c.cache.InvalidatePrefix(route + ":")
}

// CacheStats returns the cache snapshot.
func (c *Client) CacheStats() CacheStats {
	return c.cache.Stats()
}

// CircuitStatus returns every breaker's snapshot, keyed by name.
func (c *Client) CircuitStatus() map[string]BreakerStatus {
	status := c.breakers.Status()
	if c.metrics != nil {
		for name, s := range status {
			c.metrics.RecordCircuitBreakerState(name, s.State)
		}
	}
	return status
}

// Usage returns the router's per-model accounting.
func (c *Client) Usage() RouterUsage {
	return c.router.Usage()
}

// Health reports every model's routing availability.
func (c *Client) Health() map[string]ModelHealth {
	return c.router.Health()
}

// CheckAdmission exposes the limiter decision for callers that attach
// limit/remaining/reset fields to their own responses.
func (c *Client) CheckAdmission(clientKey, route string) Decision {
	return c.limiter.Check(clientKey, route)
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func (c *Client) validate() error {
	problems := c.router.validateModels()
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DefaultCacheKey derives a stable cache key from the request's route,
// capability and message contents. Mutating metadata is deliberately
// excluded; requests that must not share a key should set CacheKey.
func DefaultCacheKey(req *Request) string {
	h := fnv.New64a()
	h.Write([]byte(req.Capability))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(req.MaxTokens)))

	body := sha256.New()
	for _, m := range req.Messages {
		body.Write([]byte(m.Role))
		body.Write([]byte{0})
		body.Write([]byte(m.Content))
		body.Write([]byte{0})
	}
	h.Write(body.Sum(nil))

	route := req.Route
	if route == "" {
		route = "default"
	}
	return route + ":" + fmt.Sprintf("%x", h.Sum64())
}
