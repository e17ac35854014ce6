package market

import (
	"context"
	"time"

	"github.com/curvelabs/launchpad/internal/cache"
	"github.com/curvelabs/launchpad/internal/polling"
	"github.com/curvelabs/launchpad/pkg/logger"
)

// Service serves candle data with bounded-retry fetches and last-known-good
// fallback. Read failures never block callers; they degrade to stale data.
type Service struct {
	client *Client
	cache  cache.Cache
	log    *logger.Logger

	interval time.Duration
	retry    polling.RetryConfig
	limit    int
}

// ServiceConfig configures the market data service.
type ServiceConfig struct {
	Client   *Client
	Cache    cache.Cache
	Logger   *logger.Logger
	Interval time.Duration
	Retry    polling.RetryConfig
	Limit    int
}

// NewService creates a market data service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemory()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDefault("market")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 200
	}
	return &Service{
		client:   cfg.Client,
		cache:    cfg.Cache,
		log:      cfg.Logger,
		interval: cfg.Interval,
		retry:    cfg.Retry,
		limit:    cfg.Limit,
	}
}

func cacheKey(entityID, timeframe string) string {
	return "candles:" + entityID + ":" + timeframe
}

func (s *Service) source(entityID, timeframe string) *polling.Source[CandleSet] {
	return polling.NewSource(polling.SourceConfig{
		Name:   "candles",
		Retry:  s.retry,
		Logger: s.log,
	}, EmptyCandleSet(), func(ctx context.Context) (CandleSet, error) {
		return s.client.Candles(ctx, entityID, timeframe, s.limit)
	})
}

// Candles fetches candles with retry. On exhaustion it serves the cached
// last-known-good set, marked invalid so the caller can surface staleness.
func (s *Service) Candles(ctx context.Context, entityID, timeframe string) polling.Result[CandleSet] {
	res := s.source(entityID, timeframe).Fetch(ctx)
	key := cacheKey(entityID, timeframe)

	if res.Valid {
		if err := s.cache.Set(ctx, key, MarshalCandles(res.Data), time.Hour); err != nil {
			s.log.WithError(err).Warn("cache candle set")
		}
		return res
	}

	if b, ok := s.cache.Get(ctx, key); ok {
		if cached, ok := UnmarshalCandles(b); ok {
			res.Data = cached
		}
	}
	return res
}

// Timeframes returns the entity's timeframes, falling back to the default.
func (s *Service) Timeframes(ctx context.Context, entityID string) []string {
	return s.client.TimeframesOrDefault(ctx, entityID)
}

// Watch polls candles at the configured interval until the returned
// subscription is stopped. The owner calls Stop exactly once.
func (s *Service) Watch(ctx context.Context, entityID, timeframe string, onResult func(polling.Result[CandleSet])) *polling.Subscription {
	src := s.source(entityID, timeframe)
	return src.StartPolling(ctx, s.interval, onResult)
}
