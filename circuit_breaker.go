package modelguard

import (
	"context"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds circuit breaker tuning. Zero values fall back to the
// defaults applied by NewCircuitBreaker.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration
	HalfOpenMaxCalls int
}

// CircuitStats is the call accounting owned by one breaker. It is only
// mutated under the breaker's lock.
type CircuitStats struct {
	TotalCalls           int64     `json:"total_calls"`
	SuccessfulCalls      int64     `json:"successful_calls"`
	FailedCalls          int64     `json:"failed_calls"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	LastFailureTime      time.Time `json:"last_failure_time"`
}

// BreakerStatus is the observable snapshot of one breaker.
type BreakerStatus struct {
	Name                string       `json:"name"`
	State               CircuitState `json:"state"`
	TotalCalls          int64        `json:"total_calls"`
	SuccessfulCalls     int64        `json:"successful_calls"`
	FailedCalls         int64        `json:"failed_calls"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	FailureRate         float64      `json:"failure_rate"`
}

// CircuitBreaker isolates one unreliable dependency. After
// FailureThreshold consecutive failures it rejects calls outright for
// RecoveryTimeout, then admits probes with at most HalfOpenMaxCalls in
// flight at a time; the probes decide between closing again and re-opening.
// Safe for concurrent use.
type CircuitBreaker struct {
	name   string
	config BreakerConfig

	mu            sync.Mutex
	state         CircuitState
	stats         CircuitStats
	halfOpenCalls int
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(name string, config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 1
	}

	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  StateClosed,
	}
}

// Name returns the breaker's dependency name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Allow decides whether a call may proceed right now. It returns nil to
// admit or a *CircuitOpenError to reject. An open breaker whose recovery
// timeout elapsed transitions to half-open and admits the triggering call
// as the first probe.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		elapsed := time.Since(cb.stats.LastFailureTime)
		if elapsed >= cb.config.RecoveryTimeout {
			cb.state = StateHalfOpen
			cb.halfOpenCalls = 1
			cb.stats.ConsecutiveSuccesses = 0
			return nil
		}
		return &CircuitOpenError{Breaker: cb.name, Retry: cb.config.RecoveryTimeout - elapsed}
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
			return &CircuitOpenError{Breaker: cb.name}
		}
		cb.halfOpenCalls++
		return nil
	default:
		return &CircuitOpenError{Breaker: cb.name}
	}
}

// RecordSuccess notes a successful call. In the half-open state the finished
// probe returns its budget slot, so sequential probes can accumulate the
// successes needed to close even when HalfOpenMaxCalls is below
// SuccessThreshold.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.TotalCalls++
	cb.stats.SuccessfulCalls++
	cb.stats.ConsecutiveFailures = 0
	cb.stats.ConsecutiveSuccesses++

	if cb.state == StateHalfOpen {
		if cb.halfOpenCalls > 0 {
			cb.halfOpenCalls--
		}
		if cb.stats.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
			cb.state = StateClosed
			cb.halfOpenCalls = 0
			cb.stats.ConsecutiveSuccesses = 0
		}
	}
}

// RecordFailure notes a failed call. In the closed state it may trip the
// breaker open; in half-open a single failure re-opens it immediately and
// cancels the remaining probe budget.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.TotalCalls++
	cb.stats.FailedCalls++
	cb.stats.ConsecutiveSuccesses = 0
	cb.stats.ConsecutiveFailures++
	cb.stats.LastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.stats.ConsecutiveFailures >= cb.config.FailureThreshold {
			cb.state = StateOpen
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.halfOpenCalls = 0
	}
}

// Call wraps fn with admission and accounting. A rejected call returns the
// CircuitOpenError without invoking fn.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.Allow(); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		cb.RecordFailure()
		return err
	}

	cb.RecordSuccess()
	return nil
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a copy of the breaker's accounting.
func (cb *CircuitBreaker) Stats() CircuitStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats
}

// Status returns the observable snapshot of the breaker.
func (cb *CircuitBreaker) Status() BreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	status := BreakerStatus{
		Name:                cb.name,
		State:               cb.state,
		TotalCalls:          cb.stats.TotalCalls,
		SuccessfulCalls:     cb.stats.SuccessfulCalls,
		FailedCalls:         cb.stats.FailedCalls,
		ConsecutiveFailures: cb.stats.ConsecutiveFailures,
	}
	if cb.stats.TotalCalls > 0 {
		status.FailureRate = float64(cb.stats.FailedCalls) / float64(cb.stats.TotalCalls)
	}
	return status
}

// Reset forces the breaker back to closed and zeroes all counters. Operator
// action only; recovery normally happens through half-open probes.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.stats = CircuitStats{}
	cb.halfOpenCalls = 0
}
