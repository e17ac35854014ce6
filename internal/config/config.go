// Package config loads the daemon configuration from a YAML file with
// environment overrides. Missing values fall back to usable defaults so a
// bare binary still starts against a local node.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Backend BackendConfig `yaml:"backend"`
	Market  MarketConfig  `yaml:"market"`
	Store   StoreConfig   `yaml:"store"`
	Redis   RedisConfig   `yaml:"redis"`
}

// ServiceConfig configures the HTTP surface and logging.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// LedgerConfig configures the chain client and platform contracts.
type LedgerConfig struct {
	RPCURL              string `yaml:"rpc_url"`
	NetworkID           uint32 `yaml:"network_id"`
	ExplorerBaseURL     string `yaml:"explorer_base_url"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`

	ProviderFactory string `yaml:"provider_factory"`
	CurveFactory    string `yaml:"curve_factory"`
	PaymentToken    string `yaml:"payment_token"`

	// SubmitPerSecond caps ledger writes across all flows.
	SubmitPerSecond float64 `yaml:"submit_per_second"`
	SubmitBurst     int     `yaml:"submit_burst"`
}

// BackendConfig configures the metadata service client.
type BackendConfig struct {
	BaseURL    string `yaml:"base_url"`
	ServiceID  string `yaml:"service_id"`
	SigningKey string `yaml:"signing_key"`
}

// MarketConfig configures the time-series endpoint polling.
type MarketConfig struct {
	BaseURL             string `yaml:"base_url"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	CandleLimit         int    `yaml:"candle_limit"`
}

// LedgerPollInterval returns the receipt poll interval as a duration.
func (c *Config) LedgerPollInterval() time.Duration {
	return time.Duration(c.Ledger.PollIntervalSeconds) * time.Second
}

// MarketPollInterval returns the candle poll interval as a duration.
func (c *Config) MarketPollInterval() time.Duration {
	return time.Duration(c.Market.PollIntervalSeconds) * time.Second
}

// StoreConfig selects the workflow store backend.
type StoreConfig struct {
	PostgresDSN    string `yaml:"postgres_dsn"`
	MigrationsPath string `yaml:"migrations_path"`
}

// RedisConfig configures the optional market data cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Load reads the YAML file at path, applies environment overrides, and fills
// defaults. A missing file is not an error; the defaults and environment
// alone are enough to run.
func Load(path string) (*Config, error) {
	// A local .env is optional and only feeds the override pass.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Service.Listen, "LAUNCHPAD_LISTEN")
	overrideString(&c.Service.LogLevel, "LAUNCHPAD_LOG_LEVEL")
	overrideBool(&c.Service.LogJSON, "LAUNCHPAD_LOG_JSON")
	overrideString(&c.Ledger.RPCURL, "LAUNCHPAD_RPC_URL")
	overrideString(&c.Ledger.ExplorerBaseURL, "LAUNCHPAD_EXPLORER_URL")
	overrideString(&c.Ledger.ProviderFactory, "LAUNCHPAD_PROVIDER_FACTORY")
	overrideString(&c.Ledger.CurveFactory, "LAUNCHPAD_CURVE_FACTORY")
	overrideString(&c.Ledger.PaymentToken, "LAUNCHPAD_PAYMENT_TOKEN")
	overrideString(&c.Backend.BaseURL, "LAUNCHPAD_BACKEND_URL")
	overrideString(&c.Backend.ServiceID, "LAUNCHPAD_BACKEND_SERVICE_ID")
	overrideString(&c.Backend.SigningKey, "LAUNCHPAD_BACKEND_SIGNING_KEY")
	overrideString(&c.Market.BaseURL, "LAUNCHPAD_MARKET_URL")
	overrideString(&c.Store.PostgresDSN, "LAUNCHPAD_POSTGRES_DSN")
	overrideString(&c.Store.MigrationsPath, "LAUNCHPAD_MIGRATIONS_PATH")
	overrideString(&c.Redis.Addr, "LAUNCHPAD_REDIS_ADDR")
	overrideString(&c.Redis.Password, "LAUNCHPAD_REDIS_PASSWORD")
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "launchpad"
	}
	if c.Service.Listen == "" {
		c.Service.Listen = ":8080"
	}
	if c.Service.LogLevel == "" {
		c.Service.LogLevel = "info"
	}
	if c.Ledger.RPCURL == "" {
		c.Ledger.RPCURL = "http://localhost:10332"
	}
	if c.Ledger.PollIntervalSeconds == 0 {
		c.Ledger.PollIntervalSeconds = 2
	}
	if c.Ledger.SubmitPerSecond == 0 {
		c.Ledger.SubmitPerSecond = 1
	}
	if c.Ledger.SubmitBurst == 0 {
		c.Ledger.SubmitBurst = 1
	}
	if c.Market.PollIntervalSeconds == 0 {
		c.Market.PollIntervalSeconds = 15
	}
	if c.Market.CandleLimit == 0 {
		c.Market.CandleLimit = 200
	}
	if c.Store.MigrationsPath == "" {
		c.Store.MigrationsPath = "internal/store/migrations"
	}
}

func overrideString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func overrideBool(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*target = parsed
		}
	}
}
