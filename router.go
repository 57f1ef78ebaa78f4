package modelguard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Router walks a tier-ordered candidate list of models, skipping unhealthy
// ones, executing each attempt through the model's own circuit breaker under
// the model's timeout, and returning the first success. One model's failures
// never affect another model's admissibility.
type Router struct {
	breakers *CircuitRegistry
	metrics  *MetricsCollector
	logger   Logger
	debug    *DebugConfig

	mu       sync.Mutex
	models   []ModelConfig // sorted ascending by tier, then name
	handlers map[string]Handler
	usage    map[string]*ModelUsage
	current  string
}

// NewRouter creates a router whose per-model breakers come from breakers.
func NewRouter(breakers *CircuitRegistry) *Router {
	return &Router{
		breakers: breakers,
		handlers: make(map[string]Handler),
		usage:    make(map[string]*ModelUsage),
	}
}

// AddModel registers a candidate. The list stays tier-ascending and
// deterministic (name breaks ties within a tier).
func (r *Router) AddModel(model ModelConfig) {
	if model.Timeout <= 0 {
		model.Timeout = 30 * time.Second
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.models = append(r.models, model)
	sort.SliceStable(r.models, func(i, j int) bool {
		if r.models[i].Tier != r.models[j].Tier {
			return r.models[i].Tier < r.models[j].Tier
		}
		return r.models[i].Name < r.models[j].Name
	})
}

// RegisterHandler binds a provider name to its handler. Every model whose
// Provider matches dispatches through it.
func (r *Router) RegisterHandler(provider string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[provider] = handler
}

// SetMetrics attaches a metrics collector.
func (r *Router) SetMetrics(mc *MetricsCollector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = mc
}

// SetLogger attaches a logger for fallback decisions.
func (r *Router) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// SetDebug attaches the debug configuration that gates per-stage logging.
func (r *Router) SetDebug(debug *DebugConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debug = debug
}

// logCircuitEnabled reports whether circuit-skip lines should be emitted.
// Without a debug config attached nothing is logged for skips.
func (r *Router) logCircuitEnabled() bool {
	return r.debug != nil && r.debug.Enabled && r.debug.LogCircuit
}

// logFallbackEnabled reports whether fallback warnings should be emitted.
// Fallback warnings stay on unless a debug config explicitly disables them.
func (r *Router) logFallbackEnabled() bool {
	return r.debug == nil || !r.debug.Enabled || r.debug.LogFallback
}

// CallWithFallback executes req against the first healthy candidate that can
// serve capability, degrading toward higher tiers on failure, timeout or
// circuit rejection. It returns the response and the name of the model that
// produced it, or an *ExhaustedError naming every attempted candidate.
// Cancellation of ctx stops the walk promptly.
func (r *Router) CallWithFallback(ctx context.Context, req *Request, capability string) (*Response, string, error) {
	candidates := r.candidates(capability)
	if len(candidates) == 0 {
		return nil, "", ErrNoCandidates
	}

	var attempted []string
	var lastErr error

	for i := range candidates {
		model := &candidates[i]

		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}

		cb := r.breakers.Get(model.Name)
		attempted = append(attempted, model.Name)

		// An open breaker is skipped without touching the handler; the
		// Allow call itself performs the open -> half-open transition
		// when the cool-down elapsed.
		if err := cb.Allow(); err != nil {
			lastErr = err
			r.recordSkip(model, "circuit_open")
			if r.logger != nil && r.logCircuitEnabled() {
				r.logger.Debug("circuit open, skipping model", "model", model.Name, "tier", model.Tier)
			}
			continue
		}

		resp, err := r.attempt(ctx, model, req)
		if err != nil {
			cb.RecordFailure()
			lastErr = err
			r.recordSkip(model, "handler_failure")
			if r.logger != nil && r.logFallbackEnabled() {
				r.logger.Warn("model call failed, trying next candidate", "model", model.Name, "tier", model.Tier, "error", err.Error())
			}
			continue
		}

		cb.RecordSuccess()
		r.recordSuccess(model, req, resp)
		return resp, model.Name, nil
	}

	return nil, "", &ExhaustedError{Attempted: attempted, LastErr: lastErr}
}

// attempt runs one provider call under the model's timeout.
func (r *Router) attempt(ctx context.Context, model *ModelConfig, req *Request) (*Response, error) {
	r.mu.Lock()
	handler, ok := r.handlers[model.Provider]
	r.mu.Unlock()
	if !ok {
		return nil, &HandlerError{
			Model:    model.Name,
			Provider: model.Provider,
			Cause:    errors.New("no handler registered for provider"),
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, model.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := handler.Invoke(callCtx, model.ModelID, req)
	elapsed := time.Since(start)

	if err != nil {
		return nil, &HandlerError{
			Model:    model.Name,
			Provider: model.Provider,
			Timeout:  errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded,
			Cause:    err,
		}
	}
	if resp == nil {
		return nil, &HandlerError{
			Model:    model.Name,
			Provider: model.Provider,
			Cause:    errors.New("handler returned nil response"),
		}
	}

	if resp.Model == "" {
		resp.Model = model.Name
	}
	resp.Provider = model.Provider
	if resp.Duration == 0 {
		resp.Duration = elapsed
	}
	return resp, nil
}

// recordSuccess accumulates usage and cost for a completed call.
func (r *Router) recordSuccess(model *ModelConfig, req *Request, resp *Response) {
	tokensIn := resp.TokensIn
	if tokensIn == 0 {
		tokensIn = estimateTokens(req.Messages)
	}
	tokensOut := resp.TokensOut
	if tokensOut == 0 {
		tokensOut = len(resp.Content) / 4
	}
	cost := float64(tokensIn+tokensOut) / 1000 * model.CostPerUnit

	r.mu.Lock()
	usage, ok := r.usage[model.Name]
	if !ok {
		usage = &ModelUsage{}
		r.usage[model.Name] = usage
	}
	usage.Calls++
	usage.TokensIn += int64(tokensIn)
	usage.TokensOut += int64(tokensOut)
	usage.EstimatedCost += cost
	r.current = model.Name
	metrics := r.metrics
	r.mu.Unlock()

	if metrics != nil {
		metrics.RecordModelCall(model.Name, model.Provider, resp.Duration)
		metrics.RecordModelCost(model.Name, cost)
	}
}

func (r *Router) recordSkip(model *ModelConfig, reason string) {
	r.mu.Lock()
	metrics := r.metrics
	r.mu.Unlock()
	if metrics != nil {
		metrics.RecordFallback(model.Name, reason)
	}
}

// candidates snapshots the capability-filtered, tier-ordered list under the
// lock so a slow provider call never blocks configuration reads.
func (r *Router) candidates(capability string) []ModelConfig {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ModelConfig, 0, len(r.models))
	for _, m := range r.models {
		if m.HasCapability(capability) {
			out = append(out, m)
		}
	}
	return out
}

// Usage returns the accounting snapshot across all models.
func (r *Router) Usage() RouterUsage {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := RouterUsage{
		Models:       make(map[string]ModelUsage, len(r.usage)),
		CurrentModel: r.current,
	}
	for name, usage := range r.usage {
		out.Models[name] = *usage
		out.TotalCost += usage.EstimatedCost
	}
	return out
}

// Health reports each configured model's routing availability.
func (r *Router) Health() map[string]ModelHealth {
	r.mu.Lock()
	models := make([]ModelConfig, len(r.models))
	copy(models, r.models)
	r.mu.Unlock()

	out := make(map[string]ModelHealth, len(models))
	for _, m := range models {
		state := r.breakers.Get(m.Name).State()
		out[m.Name] = ModelHealth{
			Tier:         m.Tier,
			Provider:     m.Provider,
			CircuitState: state,
			Available:    state != StateOpen,
		}
	}
	return out
}

// validateModels returns one problem string per misconfigured model. Models
// whose provider has no registered handler are reported only when at least
// one handler exists, so construction order stays flexible in tests.
func (r *Router) validateModels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var problems []string
	seen := make(map[string]bool, len(r.models))
	for _, m := range r.models {
		if m.Name == "" {
			problems = append(problems, "model with empty name")
			continue
		}
		if seen[m.Name] {
			problems = append(problems, fmt.Sprintf("duplicate model name %q", m.Name))
		}
		seen[m.Name] = true
		if len(r.handlers) > 0 {
			if _, ok := r.handlers[m.Provider]; !ok {
				problems = append(problems, fmt.Sprintf("model %q references unregistered provider %q", m.Name, m.Provider))
			}
		}
	}
	return problems
}

// estimateTokens approximates prompt volume at four characters per token,
// used when the provider does not report usage.
func estimateTokens(messages []Message) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
	}
	return chars / 4
}
