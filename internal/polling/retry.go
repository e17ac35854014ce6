// Package polling keeps derived read state fresh with bounded retries and a
// safe canonical-empty fallback. Read failures never escape as errors; they
// degrade to a staleness indicator.
package polling

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures the bounded retry loop.
type RetryConfig struct {
	// MaxRetries is the total number of fetch attempts.
	MaxRetries int
	// InitialBackoff is the backoff after the first failed attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
	// Jitter adds randomness to backoff (0.0 to 1.0).
	Jitter float64
}

// DefaultRetryConfig returns sensible defaults for read retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

// Backoff returns the wait before retry attempt n (1-based), exponential and
// capped, with jitter applied.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(attempt-1))
	if max := float64(c.MaxBackoff); backoff > max {
		backoff = max
	}
	if c.Jitter > 0 {
		backoff += backoff * c.Jitter * (rand.Float64()*2 - 1)
	}
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}

// transientError marks a failure as retryable.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps an error to mark it retryable: timeouts, 5xx responses,
// service-unavailable conditions.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether the error chain carries the transient marker.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
