package modelguard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common failure scenarios
var (
	// ErrCircuitOpen is returned when a breaker refuses a call without
	// invoking the handler.
	ErrCircuitOpen = errors.New("modelguard: circuit open")

	// ErrRateLimited is returned when admission control denies a request.
	ErrRateLimited = errors.New("modelguard: rate limited")

	// ErrExhausted is returned when every fallback candidate failed.
	ErrExhausted = errors.New("modelguard: all candidates exhausted")

	// ErrNoCandidates is returned when filtering leaves no model to try.
	ErrNoCandidates = errors.New("modelguard: no candidates for request")
)

// CircuitOpenError signals that a breaker rejected the call outright. It is
// distinct from the handler's own failure so callers can tell "upstream
// failed" apart from "we refused to even try".
type CircuitOpenError struct {
	Breaker string
	Retry   time.Duration
}

func (e *CircuitOpenError) Error() string {
	if e.Retry > 0 {
		return fmt.Sprintf("circuit %q open, retry in %s", e.Breaker, e.Retry.Round(time.Millisecond))
	}
	return fmt.Sprintf("circuit %q open", e.Breaker)
}

func (e *CircuitOpenError) Is(target error) bool { return target == ErrCircuitOpen }

// HandlerError wraps a provider call that failed or timed out, recording
// which candidate was being tried.
type HandlerError struct {
	Model    string
	Provider string
	Timeout  bool
	Cause    error
}

func (e *HandlerError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("model %q (provider %s) timed out: %v", e.Model, e.Provider, e.Cause)
	}
	return fmt.Sprintf("model %q (provider %s) failed: %v", e.Model, e.Provider, e.Cause)
}

func (e *HandlerError) Unwrap() error { return e.Cause }

// ExhaustedError is returned when the router ran out of candidates. It
// carries every attempted model name and the last observed error.
type ExhaustedError struct {
	Attempted []string
	LastErr   error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all candidates exhausted [%s]: %v", strings.Join(e.Attempted, ", "), e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// RateLimitError reports a denied admission together with the retry horizon.
type RateLimitError struct {
	Route string
	Limit int
	Reset time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for route %q (limit %d, reset in %s)", e.Route, e.Limit, e.Reset.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// IsTransient determines if an error represents a transient failure that
// might succeed on retry. Circuit-open and rate-limit rejections are
// transient (the condition clears with time), as are timeouts and provider
// failures. Cancellation by the caller is not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrExhausted) {
		return true
	}

	var handlerErr *HandlerError
	if errors.As(err, &handlerErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
