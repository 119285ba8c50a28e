// Package backoff computes the wait between retry attempts.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy defines the interface for backoff calculation algorithms.
type Strategy interface {
	// Delay returns how long to wait before retry number attempt (1-based).
	Delay(attempt int) time.Duration
}

// Constant waits the same duration before every retry.
type Constant struct {
	Interval time.Duration
}

// Delay implements Strategy.
func (s Constant) Delay(int) time.Duration {
	if s.Interval < 0 {
		return 0
	}
	return s.Interval
}

// Exponential implements exponential backoff with uniform jitter, capped at Max.
type Exponential struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// Delay implements Strategy.
func (s Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	multiplier := s.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}

	backoff := time.Duration(float64(s.Initial) * Pow(multiplier, attempt-1))
	if s.Max > 0 && (backoff < 0 || backoff > s.Max) {
		backoff = s.Max
	}

	jitter := clampJitter(s.Jitter)
	if jitter > 0 {
		jitterAmount := time.Duration(float64(backoff) * jitter * rand.Float64())
		if s.Max > 0 && backoff+jitterAmount > s.Max {
			backoff = s.Max
		} else {
			backoff += jitterAmount
		}
	}
	return backoff
}

// clampJitter ensures jitter is within valid bounds [0, 1].
func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// Pow calculates base^exponent using integer exponentiation.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
