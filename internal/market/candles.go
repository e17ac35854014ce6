// Package market reads time-series market data for launched tokens through
// the polling layer, with last-known-good fallback.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/curvelabs/launchpad/internal/polling"
)

// DefaultTimeframe is used when an entity reports no timeframes.
const DefaultTimeframe = "1h"

// Candle is one OHLCV bar.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// CandleSet is the canonical candle payload. An entity with no history is
// represented as the empty set, never an error.
type CandleSet struct {
	Candles []Candle `json:"candles"`
	Count   int      `json:"count"`
}

// EmptyCandleSet returns the canonical-empty value.
func EmptyCandleSet() CandleSet {
	return CandleSet{Candles: []Candle{}, Count: 0}
}

// Client fetches candles and timeframes from the time-series endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a market data client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Candles fetches up to limit candles for an entity and timeframe. Transient
// upstream failures are marked for the polling retry loop.
func (c *Client) Candles(ctx context.Context, entityID, timeframe string, limit int) (CandleSet, error) {
	endpoint := fmt.Sprintf("%s/candles?entity=%s&timeframe=%s&limit=%d",
		c.baseURL, url.QueryEscape(entityID), url.QueryEscape(timeframe), limit)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return EmptyCandleSet(), err
	}
	return parseCandles(body), nil
}

// Timeframes fetches the timeframes available for an entity.
func (c *Client) Timeframes(ctx context.Context, entityID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/timeframes?entity=%s", c.baseURL, url.QueryEscape(entityID))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var frames []string
	for _, v := range gjson.GetBytes(body, "timeframes").Array() {
		frames = append(frames, v.String())
	}
	return frames, nil
}

// TimeframesOrDefault never fails: an entity with no timeframes (or an
// unreachable endpoint) falls back to the single default timeframe.
func (c *Client) TimeframesOrDefault(ctx context.Context, entityID string) []string {
	frames, err := c.Timeframes(ctx, entityID)
	if err != nil || len(frames) == 0 {
		return []string{DefaultTimeframe}
	}
	return frames
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network failures and timeouts are retryable.
		return nil, polling.Transient(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, polling.Transient(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, polling.Transient(fmt.Errorf("upstream status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return body, nil
}

// parseCandles tolerates both the enveloped {"candles": [...]} shape and a
// bare array, since the endpoint changed shape across upstream versions.
func parseCandles(body []byte) CandleSet {
	root := gjson.ParseBytes(body)
	arr := root.Get("candles")
	if !arr.Exists() && root.IsArray() {
		arr = root
	}
	if !arr.IsArray() {
		return EmptyCandleSet()
	}

	set := EmptyCandleSet()
	for _, item := range arr.Array() {
		set.Candles = append(set.Candles, Candle{
			Time:   item.Get("time").Int(),
			Open:   item.Get("open").Float(),
			High:   item.Get("high").Float(),
			Low:    item.Get("low").Float(),
			Close:  item.Get("close").Float(),
			Volume: item.Get("volume").Float(),
		})
	}
	set.Count = len(set.Candles)
	return set
}

// MarshalCandles serializes a candle set for the last-known-good cache.
func MarshalCandles(set CandleSet) []byte {
	b, _ := json.Marshal(set)
	return b
}

// UnmarshalCandles deserializes a cached candle set.
func UnmarshalCandles(b []byte) (CandleSet, bool) {
	var set CandleSet
	if err := json.Unmarshal(b, &set); err != nil {
		return EmptyCandleSet(), false
	}
	if set.Candles == nil {
		set.Candles = []Candle{}
	}
	return set, true
}
