package polling

import (
	"context"
	"sync"
	"time"

	"github.com/curvelabs/launchpad/internal/metrics"
	"github.com/curvelabs/launchpad/pkg/logger"
)

// Result is the outcome of a fetch. It is always populated: on failure Data
// holds the source's canonical-empty value and Valid is false.
type Result[T any] struct {
	Data     T
	Valid    bool
	Attempts int
	// StaleErr carries the last failure for logging and soft staleness
	// display. It is informational; Fetch itself never fails.
	StaleErr error
}

// FetchFunc retrieves fresh data. Mark retryable failures with Transient.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Source wraps a fetch function with bounded retry, per-attempt timeouts, and
// a canonical-empty fallback.
type Source[T any] struct {
	name    string
	fetch   FetchFunc[T]
	empty   T
	retry   RetryConfig
	timeout time.Duration
	log     *logger.Logger

	mu       sync.Mutex
	lastGood *T
}

// SourceConfig configures a Source.
type SourceConfig struct {
	// Name labels the source in logs and metrics.
	Name string
	// Timeout bounds each individual fetch attempt. Zero means 10s.
	Timeout time.Duration
	// Retry overrides DefaultRetryConfig when MaxRetries > 0.
	Retry RetryConfig
	// Logger is optional.
	Logger *logger.Logger
}

// NewSource creates a polling source. empty is the canonical-empty value
// returned when all attempts fail.
func NewSource[T any](cfg SourceConfig, empty T, fetch FetchFunc[T]) *Source[T] {
	retry := cfg.Retry
	if retry.MaxRetries <= 0 {
		retry = DefaultRetryConfig()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("polling")
	}
	return &Source[T]{
		name:    cfg.Name,
		fetch:   fetch,
		empty:   empty,
		retry:   retry,
		timeout: timeout,
		log:     log.WithField("source", cfg.Name),
	}
}

// Fetch attempts the read up to MaxRetries times, backing off between
// transient failures. All failure paths resolve to the canonical-empty
// result; no error or panic ever escapes.
func (s *Source[T]) Fetch(ctx context.Context) Result[T] {
	var lastErr error

	for attempt := 1; attempt <= s.retry.MaxRetries; attempt++ {
		data, err := s.attempt(ctx)
		if err == nil {
			s.setLastGood(data)
			metrics.PollAttempt(s.name, "ok")
			return Result[T]{Data: data, Valid: true, Attempts: attempt}
		}
		lastErr = err

		if !IsTransient(err) {
			metrics.PollAttempt(s.name, "fatal")
			s.log.WithError(err).Warn("fetch failed with non-retryable error")
			return Result[T]{Data: s.empty, Attempts: attempt, StaleErr: err}
		}
		metrics.PollAttempt(s.name, "transient")

		if attempt == s.retry.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return Result[T]{Data: s.empty, Attempts: attempt, StaleErr: ctx.Err()}
		case <-time.After(s.retry.Backoff(attempt)):
		}
	}

	s.log.WithError(lastErr).Warnf("fetch exhausted %d attempts", s.retry.MaxRetries)
	return Result[T]{Data: s.empty, Attempts: s.retry.MaxRetries, StaleErr: lastErr}
}

func (s *Source[T]) attempt(ctx context.Context) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = s.empty
			err = Transient(panicError{r})
		}
	}()

	actx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.fetch(actx)
}

type panicError struct{ v any }

func (e panicError) Error() string { return "fetch panicked" }

// LastKnown returns the most recent successful fetch, for displaying
// last-known-good data while the source is stale.
func (s *Source[T]) LastKnown() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastGood == nil {
		var zero T
		return zero, false
	}
	return *s.lastGood, true
}

func (s *Source[T]) setLastGood(data T) {
	s.mu.Lock()
	s.lastGood = &data
	s.mu.Unlock()
}

// Subscription is a handle to a recurring poll. Stop is idempotent and tears
// the timer down deterministically; no orphaned timer keeps firing.
type Subscription struct {
	stop chan struct{}
	once sync.Once
	done chan struct{}
}

// Stop cancels the recurring poll. Safe to call more than once.
func (s *Subscription) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

// StartPolling re-invokes Fetch at every interval and hands each result to
// onResult, until the subscription is stopped or ctx is done. The first fetch
// fires immediately.
func (s *Source[T]) StartPolling(ctx context.Context, interval time.Duration, onResult func(Result[T])) *Subscription {
	sub := &Subscription{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		onResult(s.Fetch(ctx))
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.stop:
				return
			case <-ticker.C:
				onResult(s.Fetch(ctx))
			}
		}
	}()

	return sub
}
