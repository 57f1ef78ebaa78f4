package modelguard

import (
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyStopsAtMaxRetries(t *testing.T) {
	p := NewDefaultRetryPolicy(2, 10*time.Millisecond, time.Second, 2.0, 0)
	transient := &HandlerError{Model: "m", Cause: errors.New("down")}

	if _, retry := p.ShouldRetry(transient, 0); !retry {
		t.Error("expected retry at attempt 0")
	}
	if _, retry := p.ShouldRetry(transient, 1); !retry {
		t.Error("expected retry at attempt 1")
	}
	if _, retry := p.ShouldRetry(transient, 2); retry {
		t.Error("expected no retry once the budget is spent")
	}
}

func TestRetryPolicySkipsNonTransient(t *testing.T) {
	p := NewDefaultRetryPolicy(3, 10*time.Millisecond, time.Second, 2.0, 0)

	if _, retry := p.ShouldRetry(errors.New("validation failed"), 0); retry {
		t.Error("non-transient errors must not be retried")
	}
}

func TestRetryPolicyDelayGrowsAndCaps(t *testing.T) {
	p := NewDefaultRetryPolicy(10, 10*time.Millisecond, 80*time.Millisecond, 2.0, 0)
	transient := &ExhaustedError{LastErr: errors.New("down")}

	prev := time.Duration(0)
	for attempt := 0; attempt < 6; attempt++ {
		delay, retry := p.ShouldRetry(transient, attempt)
		if !retry {
			t.Fatalf("expected retry at attempt %d", attempt)
		}
		if delay < prev {
			t.Errorf("attempt %d: delay %v shrank below %v without jitter", attempt, delay, prev)
		}
		if delay > 80*time.Millisecond {
			t.Errorf("attempt %d: delay %v exceeds cap", attempt, delay)
		}
		prev = delay
	}
}

func TestRetryPolicyDecorrelatedWithinBounds(t *testing.T) {
	p := NewRetryPolicyWithStrategy(5, 10*time.Millisecond, 200*time.Millisecond, 2.0, 0.5, DecorrelatedJitter)
	transient := &HandlerError{Model: "m", Cause: errors.New("down")}

	for attempt := 0; attempt < 5; attempt++ {
		delay, retry := p.ShouldRetry(transient, attempt)
		if !retry {
			t.Fatalf("expected retry at attempt %d", attempt)
		}
		if delay < 10*time.Millisecond || delay > 200*time.Millisecond {
			t.Errorf("attempt %d: delay %v outside [initial, max]", attempt, delay)
		}
	}
}
