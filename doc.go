// Package modelguard makes calls to unreliable, rate-limited, latency-variable
// model providers safe, cheap and fast. It composes five reliability layers:
//
//   - Expiring cache with LRU eviction and TTL expiry
//   - Request coalescing (at most one computation per key, shared by all waiters)
//   - Per-dependency circuit breakers with a lazy registry
//   - Tier-ordered model fallback that skips unhealthy candidates
//   - Sliding-window admission control per client and route
//
// Design goals:
//   - One explicit Client per process, no package-level mutable state
//   - Functional options configure everything
//   - Safe concurrent use of a single *Client instance
//   - Rejections are typed results (CircuitOpenError, RateLimitError), never
//     confused with the provider's own failures
//   - Prometheus metrics and pluggable structured logging
//
// Typical usage:
//
//	client := modelguard.New(
//	    modelguard.WithCache(2048, 5*time.Minute),
//	    modelguard.WithBreakerDefaults(modelguard.BreakerConfig{FailureThreshold: 3}),
//	    modelguard.WithModels(
//	        modelguard.ModelConfig{Name: "primary", Tier: 1, Provider: "openai", ModelID: "gpt-4o"},
//	        modelguard.ModelConfig{Name: "backup", Tier: 2, Provider: "local", ModelID: "llama3"},
//	    ),
//	    modelguard.WithHandler("openai", openaiHandler),
//	    modelguard.WithHandler("local", localHandler),
//	    modelguard.WithRateLimit(modelguard.RouteLimit{Limit: 30, Window: time.Minute}),
//	)
//	resp, err := client.Do(ctx, &modelguard.Request{
//	    Route:     "/chat",
//	    ClientKey: modelguard.DefaultClientKey(addr, agent),
//	    Cacheable: true,
//	    Messages:  []modelguard.Message{{Role: "user", Content: "hello"}},
//	})
//
// Fallback always degrades toward higher tier numbers (cheaper, more
// available models) within a single call, never the reverse. Each model's
// failures feed its own breaker only, so one unhealthy model never affects
// another's admissibility.
package modelguard
