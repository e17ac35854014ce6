package polling

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

type candleSet struct {
	Candles []string
	Count   int
}

var emptyCandles = candleSet{Candles: []string{}, Count: 0}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxRetries:     attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestSource_ExhaustsExactlyMaxRetries(t *testing.T) {
	var calls int32
	src := NewSource(SourceConfig{Name: "candles", Retry: fastRetry(3)}, emptyCandles,
		func(ctx context.Context) (candleSet, error) {
			atomic.AddInt32(&calls, 1)
			return emptyCandles, Transient(errors.New("503 service unavailable"))
		})

	res := src.Fetch(context.Background())

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("made %d attempts, want exactly 3", got)
	}
	if res.Valid {
		t.Fatalf("exhausted fetch must be invalid")
	}
	if res.Data.Count != 0 || res.Data.Candles == nil || len(res.Data.Candles) != 0 {
		t.Fatalf("expected canonical-empty result, got %+v", res.Data)
	}
	if res.StaleErr == nil {
		t.Fatalf("stale error should carry the last failure")
	}
}

func TestSource_NonTransientFailsFast(t *testing.T) {
	var calls int32
	src := NewSource(SourceConfig{Name: "candles", Retry: fastRetry(5)}, emptyCandles,
		func(ctx context.Context) (candleSet, error) {
			atomic.AddInt32(&calls, 1)
			return emptyCandles, errors.New("400 bad request")
		})

	res := src.Fetch(context.Background())
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("non-retryable failure retried %d times", got)
	}
	if res.Valid {
		t.Fatalf("expected invalid result")
	}
}

func TestSource_RecoversAfterTransient(t *testing.T) {
	var calls int32
	src := NewSource(SourceConfig{Name: "candles", Retry: fastRetry(3)}, emptyCandles,
		func(ctx context.Context) (candleSet, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return emptyCandles, Transient(errors.New("timeout"))
			}
			return candleSet{Candles: []string{"c1"}, Count: 1}, nil
		})

	res := src.Fetch(context.Background())
	if !res.Valid || res.Attempts != 3 {
		t.Fatalf("expected success on attempt 3, got %+v", res)
	}

	last, ok := src.LastKnown()
	if !ok || last.Count != 1 {
		t.Fatalf("last-known-good not recorded")
	}
}

func TestSource_FetchNeverPanics(t *testing.T) {
	src := NewSource(SourceConfig{Name: "candles", Retry: fastRetry(2)}, emptyCandles,
		func(ctx context.Context) (candleSet, error) {
			panic("upstream decoded garbage")
		})

	res := src.Fetch(context.Background())
	if res.Valid {
		t.Fatalf("panicking fetch must resolve to canonical-empty")
	}
}

func TestSource_StartPollingStopIsDeterministic(t *testing.T) {
	var fetches int32
	src := NewSource(SourceConfig{Name: "balances", Retry: fastRetry(1)}, emptyCandles,
		func(ctx context.Context) (candleSet, error) {
			atomic.AddInt32(&fetches, 1)
			return emptyCandles, nil
		})

	var results int32
	sub := src.StartPolling(context.Background(), 5*time.Millisecond, func(Result[candleSet]) {
		atomic.AddInt32(&results, 1)
	})

	time.Sleep(25 * time.Millisecond)
	sub.Stop()
	sub.Stop() // idempotent

	settled := atomic.LoadInt32(&fetches)
	time.Sleep(25 * time.Millisecond)
	if got := atomic.LoadInt32(&fetches); got != settled {
		t.Fatalf("timer kept firing after Stop: %d -> %d", settled, got)
	}
	if atomic.LoadInt32(&results) == 0 {
		t.Fatalf("no results delivered before stop")
	}
}

func TestRetryConfig_BackoffCapped(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     10,
	}
	for attempt := 1; attempt <= 6; attempt++ {
		if b := cfg.Backoff(attempt); b > time.Second {
			t.Fatalf("backoff(%d) = %v exceeds cap", attempt, b)
		}
	}
	if cfg.Backoff(1) != 100*time.Millisecond {
		t.Fatalf("backoff(1) = %v, want initial", cfg.Backoff(1))
	}
}

func TestTransientMarker(t *testing.T) {
	base := fmt.Errorf("wrapped: %w", Transient(errors.New("boom")))
	if !IsTransient(base) {
		t.Fatalf("transient marker lost through wrapping")
	}
	if IsTransient(errors.New("plain")) {
		t.Fatalf("plain error classified transient")
	}
	if Transient(nil) != nil {
		t.Fatalf("Transient(nil) should be nil")
	}
}
