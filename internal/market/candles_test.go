package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/curvelabs/launchpad/internal/polling"
)

func TestClient_Candles_EmptyHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candles": [], "count": 0}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	set, err := client.Candles(context.Background(), "token-1", "1h", 100)
	if err != nil {
		t.Fatalf("empty history must not error: %v", err)
	}
	if set.Count != 0 || len(set.Candles) != 0 || set.Candles == nil {
		t.Fatalf("expected canonical empty set, got %+v", set)
	}
}

func TestClient_Candles_BareArrayShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"time": 1700000000, "open": 1.5, "close": 1.6, "high": 1.7, "low": 1.4, "volume": 42}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	set, err := client.Candles(context.Background(), "token-1", "1h", 100)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if set.Count != 1 || set.Candles[0].Close != 1.6 {
		t.Fatalf("unexpected set %+v", set)
	}
}

func TestClient_Candles_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.Candles(context.Background(), "token-1", "1h", 100)
	if err == nil || !polling.IsTransient(err) {
		t.Fatalf("503 should be transient, got %v", err)
	}
}

func TestClient_Candles_ClientErrorIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.Candles(context.Background(), "missing", "1h", 100)
	if err == nil || polling.IsTransient(err) {
		t.Fatalf("404 should not be transient, got %v", err)
	}
}

func TestClient_TimeframesOrDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"timeframes": []}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	frames := client.TimeframesOrDefault(context.Background(), "token-1")
	if len(frames) != 1 || frames[0] != DefaultTimeframe {
		t.Fatalf("expected default timeframe fallback, got %v", frames)
	}

	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"timeframes": ["5m", "1h", "1d"]}`))
	}))
	defer srv2.Close()

	frames = NewClient(srv2.URL, time.Second).TimeframesOrDefault(context.Background(), "token-1")
	if len(frames) != 3 || frames[0] != "5m" {
		t.Fatalf("unexpected timeframes %v", frames)
	}
}

func TestService_ServesLastKnownGoodWhenStale(t *testing.T) {
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"candles": [{"time": 1, "close": 2.5}], "count": 1}`))
	}))
	defer srv.Close()

	svc := NewService(ServiceConfig{
		Client: NewClient(srv.URL, time.Second),
		Retry: polling.RetryConfig{
			MaxRetries:     2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			Multiplier:     1,
		},
	})

	res := svc.Candles(context.Background(), "token-1", "1h")
	if !res.Valid || res.Data.Count != 1 {
		t.Fatalf("warm fetch failed: %+v", res)
	}

	failing.Store(true)
	res = svc.Candles(context.Background(), "token-1", "1h")
	if res.Valid {
		t.Fatalf("stale fetch reported valid")
	}
	if res.Data.Count != 1 || res.Data.Candles[0].Close != 2.5 {
		t.Fatalf("last-known-good not served: %+v", res.Data)
	}
}
