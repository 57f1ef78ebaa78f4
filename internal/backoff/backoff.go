// Package backoff computes retry delays. Two strategies are provided:
// exponential growth with uniform jitter, and AWS-style decorrelated jitter
// for smoother tail latencies.
package backoff

import (
	"math/rand"
	"time"
)

// Config bounds the delay computation shared by all strategies.
type Config struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64 // fraction of the delay randomized, clamped to [0, 1]
}

// Strategy turns an attempt number into a delay.
type Strategy interface {
	Delay(attempt int, cfg Config) time.Duration
}

// Exponential grows the delay by cfg.Multiplier per attempt and adds uniform
// jitter on top, capped at cfg.Max.
type Exponential struct{}

func (Exponential) Delay(attempt int, cfg Config) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Cap growth so the float math cannot overflow into negatives.
	if attempt > 30 {
		attempt = 30
	}

	delay := float64(cfg.Initial)
	for i := 0; i < attempt; i++ {
		delay *= cfg.Multiplier
	}
	if delay < 0 || delay > float64(cfg.Max) {
		delay = float64(cfg.Max)
	}

	if jitter := clampJitter(cfg.Jitter); jitter > 0 {
		delay += delay * jitter * rand.Float64()
		if delay > float64(cfg.Max) {
			delay = float64(cfg.Max)
		}
	}
	return time.Duration(delay)
}

// Decorrelated implements decorrelated jitter: each delay is drawn uniformly
// between the base and three times the previous upper bound, capped at
// cfg.Max. Stateless form: the upper bound is derived from the attempt.
type Decorrelated struct{}

func (Decorrelated) Delay(attempt int, cfg Config) time.Duration {
	if attempt <= 0 {
		return cfg.Initial
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(cfg.Initial)
	upper := base
	for i := 0; i < attempt; i++ {
		upper *= 3
	}
	if upper < base {
		upper = base
	}
	if upper > float64(cfg.Max) || upper < 0 {
		upper = float64(cfg.Max)
	}
	if upper < base {
		upper = base
	}

	delay := base + rand.Float64()*(upper-base)
	if delay > float64(cfg.Max) {
		delay = float64(cfg.Max)
	}
	return time.Duration(delay)
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}
