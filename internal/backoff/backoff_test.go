package backoff

import (
	"testing"
	"time"
)

func TestExponentialGrowth(t *testing.T) {
	cfg := Config{Initial: 10 * time.Millisecond, Max: time.Second, Multiplier: 2.0}
	var s Exponential

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 10 * time.Millisecond},
		{1, 20 * time.Millisecond},
		{2, 40 * time.Millisecond},
		{3, 80 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := s.Delay(tc.attempt, cfg); got != tc.want {
			t.Errorf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}

func TestExponentialCapsAtMax(t *testing.T) {
	cfg := Config{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Multiplier: 2.0}
	var s Exponential

	if got := s.Delay(10, cfg); got != 50*time.Millisecond {
		t.Errorf("expected cap at max, got %v", got)
	}
	// Extreme attempts must not overflow into negative durations.
	if got := s.Delay(1000, cfg); got < 0 || got > 50*time.Millisecond {
		t.Errorf("out-of-range delay for huge attempt: %v", got)
	}
}

func TestExponentialJitterWithinBounds(t *testing.T) {
	cfg := Config{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2.0, Jitter: 0.5}
	var s Exponential

	for i := 0; i < 100; i++ {
		got := s.Delay(1, cfg)
		if got < 200*time.Millisecond || got > 300*time.Millisecond {
			t.Fatalf("jittered delay %v outside [base, base*1.5]", got)
		}
	}
}

func TestJitterClamped(t *testing.T) {
	cfg := Config{Initial: 10 * time.Millisecond, Max: time.Second, Multiplier: 2.0, Jitter: 5.0}
	var s Exponential

	for i := 0; i < 50; i++ {
		got := s.Delay(0, cfg)
		if got < 10*time.Millisecond || got > 20*time.Millisecond {
			t.Fatalf("clamped jitter exceeded one full delay: %v", got)
		}
	}
}

func TestDecorrelatedBounds(t *testing.T) {
	cfg := Config{Initial: 10 * time.Millisecond, Max: 500 * time.Millisecond}
	var s Decorrelated

	if got := s.Delay(0, cfg); got != 10*time.Millisecond {
		t.Errorf("attempt 0 must return the base delay, got %v", got)
	}

	for attempt := 1; attempt < 8; attempt++ {
		for i := 0; i < 20; i++ {
			got := s.Delay(attempt, cfg)
			if got < 10*time.Millisecond || got > 500*time.Millisecond {
				t.Fatalf("attempt %d: delay %v outside [base, max]", attempt, got)
			}
		}
	}
}
