package modelguard

import (
	"time"

	"github.com/ChiragNSundar/modelguard/internal/backoff"
)

// RetryPolicy decides whether a failed pipeline call should be retried and
// after how long. attempt is zero-based: the first retry is attempt 0.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) (time.Duration, bool)
}

// BackoffStrategy selects the delay algorithm used by DefaultRetryPolicy.
type BackoffStrategy int

const (
	ExponentialJitter BackoffStrategy = iota
	DecorrelatedJitter
)

// DefaultRetryPolicy retries transient failures with bounded backoff. It is
// applied by the Client around the whole fallback walk, never inside a
// single candidate attempt.
type DefaultRetryPolicy struct {
	maxRetries int
	cfg        backoff.Config
	strategy   backoff.Strategy
}

// NewDefaultRetryPolicy creates a policy retrying transient errors at most
// maxRetries times with exponential jitter between initial and max.
func NewDefaultRetryPolicy(maxRetries int, initial, max time.Duration, multiplier, jitter float64) *DefaultRetryPolicy {
	return NewRetryPolicyWithStrategy(maxRetries, initial, max, multiplier, jitter, ExponentialJitter)
}

// NewRetryPolicyWithStrategy is NewDefaultRetryPolicy with an explicit
// backoff strategy.
func NewRetryPolicyWithStrategy(maxRetries int, initial, max time.Duration, multiplier, jitter float64, strategy BackoffStrategy) *DefaultRetryPolicy {
	p := &DefaultRetryPolicy{
		maxRetries: maxRetries,
		cfg: backoff.Config{
			Initial:    initial,
			Max:        max,
			Multiplier: multiplier,
			Jitter:     jitter,
		},
	}
	switch strategy {
	case DecorrelatedJitter:
		p.strategy = backoff.Decorrelated{}
	default:
		p.strategy = backoff.Exponential{}
	}
	return p
}

// ShouldRetry implements RetryPolicy.
func (p *DefaultRetryPolicy) ShouldRetry(err error, attempt int) (time.Duration, bool) {
	if attempt >= p.maxRetries {
		return 0, false
	}
	if !IsTransient(err) {
		return 0, false
	}
	return p.strategy.Delay(attempt, p.cfg), true
}
