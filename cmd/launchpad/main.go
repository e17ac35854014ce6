// Command launchpad runs the token-launch orchestration daemon: the HTTP API,
// the ledger gateway, and the workflow store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/curvelabs/launchpad/internal/backend"
	"github.com/curvelabs/launchpad/internal/cache"
	"github.com/curvelabs/launchpad/internal/chain"
	"github.com/curvelabs/launchpad/internal/config"
	"github.com/curvelabs/launchpad/internal/httpapi"
	"github.com/curvelabs/launchpad/internal/launch"
	"github.com/curvelabs/launchpad/internal/market"
	"github.com/curvelabs/launchpad/internal/store"
	"github.com/curvelabs/launchpad/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "launchpad: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:   cfg.Service.LogLevel,
		JSON:    cfg.Service.LogJSON,
		Service: cfg.Service.Name,
	})
	defer log.Sync()

	client, err := chain.NewClient(chain.Config{
		RPCURL:    cfg.Ledger.RPCURL,
		NetworkID: cfg.Ledger.NetworkID,
	})
	if err != nil {
		return fmt.Errorf("chain client: %w", err)
	}
	gateway := chain.NewRPCGateway(client, cfg.LedgerPollInterval())

	workflowStore, closeStore, err := buildStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var backendClient *backend.Client
	if cfg.Backend.BaseURL != "" {
		backendClient = backend.NewClient(backend.ClientConfig{
			BaseURL:    cfg.Backend.BaseURL,
			ServiceID:  cfg.Backend.ServiceID,
			SigningKey: []byte(cfg.Backend.SigningKey),
		})
	}

	launchService, err := launch.NewService(launch.Config{
		Gateway: gateway,
		Store:   workflowStore,
		Backend: backendClient,
		Contracts: launch.Contracts{
			ProviderFactory: cfg.Ledger.ProviderFactory,
			CurveFactory:    cfg.Ledger.CurveFactory,
			PaymentToken:    cfg.Ledger.PaymentToken,
		},
		Logger:      log.WithField("component", "launch"),
		SubmitRate:  rate.Limit(cfg.Ledger.SubmitPerSecond),
		SubmitBurst: cfg.Ledger.SubmitBurst,
	})
	if err != nil {
		return fmt.Errorf("launch service: %w", err)
	}

	var marketService *market.Service
	if cfg.Market.BaseURL != "" {
		marketService = market.NewService(market.ServiceConfig{
			Client:   market.NewClient(cfg.Market.BaseURL, 0),
			Cache:    buildCache(cfg),
			Logger:   log.WithField("component", "market"),
			Interval: cfg.MarketPollInterval(),
			Limit:    cfg.Market.CandleLimit,
		})
	}

	server := httpapi.NewServer(httpapi.Config{
		Launch:          launchService,
		Market:          marketService,
		Logger:          log.WithField("component", "httpapi"),
		ExplorerBaseURL: cfg.Ledger.ExplorerBaseURL,
	})

	httpServer := &http.Server{
		Addr:              cfg.Service.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Service.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildStore(cfg *config.Config, log *logger.Logger) (store.WorkflowStore, func(), error) {
	if cfg.Store.PostgresDSN == "" {
		log.Info("using in-memory workflow store")
		return store.NewMemory(), func() {}, nil
	}

	pg, err := store.NewPostgres(cfg.Store.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("workflow store: %w", err)
	}
	if err := pg.Migrate(cfg.Store.MigrationsPath); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("workflow store: %w", err)
	}
	log.Info("using postgres workflow store")
	return pg, func() { pg.Close() }, nil
}

func buildCache(cfg *config.Config) cache.Cache {
	if cfg.Redis.Addr == "" {
		return cache.NewMemory()
	}
	return cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Service.Name)
}
