package modelguard

import (
	"sort"
	"sync"
)

// CircuitRegistry lazily creates and memoizes one breaker per dependency
// name. Breakers live for the process lifetime; the registry never removes
// them. Safe for concurrent use.
type CircuitRegistry struct {
	mu            sync.RWMutex
	breakers      map[string]*CircuitBreaker
	defaultConfig BreakerConfig
	overrides     map[string]BreakerConfig
}

// NewCircuitRegistry creates a registry whose breakers default to config.
func NewCircuitRegistry(config BreakerConfig) *CircuitRegistry {
	return &CircuitRegistry{
		breakers:      make(map[string]*CircuitBreaker),
		defaultConfig: config,
		overrides:     make(map[string]BreakerConfig),
	}
}

// Configure sets a per-name config override. It only affects breakers not
// yet created; existing breakers keep their tuning.
func (r *CircuitRegistry) Configure(name string, config BreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[name] = config
}

// Get returns the breaker for name, creating it on first use with the
// per-name override or the registry default.
func (r *CircuitRegistry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	cb, exists := r.breakers[name]
	r.mu.RUnlock()
	if exists {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	config := r.defaultConfig
	if override, ok := r.overrides[name]; ok {
		config = override
	}
	cb = NewCircuitBreaker(name, config)
	r.breakers[name] = cb
	return cb
}

// Names returns the sorted names of all breakers created so far.
func (r *CircuitRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status returns the snapshot of every breaker, keyed by name.
func (r *CircuitRegistry) Status() map[string]BreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]BreakerStatus, len(r.breakers))
	for name, cb := range r.breakers {
		status[name] = cb.Status()
	}
	return status
}

// ResetAll forces every breaker back to closed. Operator action.
func (r *CircuitRegistry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
}
