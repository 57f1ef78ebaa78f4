package modelguard

import "time"

// WithCache sizes the response cache.
func WithCache(maxSize int, defaultTTL time.Duration) Option {
	return func(c *Client) {
		c.cache = NewExpiringCache(maxSize, defaultTTL)
	}
}

// WithCacheEmpty makes the pipeline cache nil results as well.
func WithCacheEmpty() Option {
	return func(c *Client) {
		c.cacheEmpty = true
	}
}

// WithBreakerDefaults sets the config applied to breakers without a
// per-name override.
func WithBreakerDefaults(config BreakerConfig) Option {
	return func(c *Client) {
		c.breakers = NewCircuitRegistry(config)
	}
}

// WithBreakerOverride tunes a single named breaker independently.
func WithBreakerOverride(name string, config BreakerConfig) Option {
	return func(c *Client) {
		if c.pendingBreakers == nil {
			c.pendingBreakers = make(map[string]BreakerConfig)
		}
		c.pendingBreakers[name] = config
	}
}

// WithRouter substitutes a fully constructed router. The router must use the
// client's breaker registry for health reporting to line up.
func WithRouter(router *Router) Option {
	return func(c *Client) {
		c.router = router
	}
}

// WithModels registers routable models. The router is built after all
// options apply, so ordering against WithBreakerDefaults does not matter.
func WithModels(models ...ModelConfig) Option {
	return func(c *Client) {
		c.pendingModels = append(c.pendingModels, models...)
	}
}

// WithHandler binds a provider name to its handler.
func WithHandler(provider string, handler Handler) Option {
	return func(c *Client) {
		if c.pendingHandlers == nil {
			c.pendingHandlers = make(map[string]Handler)
		}
		c.pendingHandlers[provider] = handler
	}
}

// WithRateLimit sets the default admission limit.
func WithRateLimit(limit RouteLimit) Option {
	return func(c *Client) {
		c.limiter.SetDefault(limit)
	}
}

// WithRouteRateLimit overrides the admission limit for one route.
func WithRouteRateLimit(route string, limit RouteLimit) Option {
	return func(c *Client) {
		c.limiter.SetRouteLimit(route, limit)
	}
}

// WithRetryPolicy retries transient pipeline failures.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the logger used for debug and fallback output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a console logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithDebug enables debug logging with the default flag set.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithRequestIDGenerator substitutes the request ID source used in debug
// logs. Defaults to random UUIDs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}
