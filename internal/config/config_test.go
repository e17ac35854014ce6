package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.Listen != ":8080" {
		t.Fatalf("listen = %q, want :8080", cfg.Service.Listen)
	}
	if cfg.LedgerPollInterval() != 2*time.Second {
		t.Fatalf("poll interval = %v", cfg.LedgerPollInterval())
	}
	if cfg.Market.CandleLimit != 200 {
		t.Fatalf("candle limit = %d", cfg.Market.CandleLimit)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
service:
  listen: ":9000"
  log_level: debug
ledger:
  rpc_url: http://node.example:10332
  payment_token: "0xgas"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LAUNCHPAD_RPC_URL", "http://override.example:10332")
	t.Setenv("LAUNCHPAD_LOG_JSON", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.Listen != ":9000" || cfg.Service.LogLevel != "debug" {
		t.Fatalf("file values not applied: %+v", cfg.Service)
	}
	if cfg.Ledger.RPCURL != "http://override.example:10332" {
		t.Fatalf("env override not applied: %q", cfg.Ledger.RPCURL)
	}
	if !cfg.Service.LogJSON {
		t.Fatalf("LAUNCHPAD_LOG_JSON override not applied")
	}
	if cfg.Ledger.PaymentToken != "0xgas" {
		t.Fatalf("payment token = %q", cfg.Ledger.PaymentToken)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Service.Name != "launchpad" {
		t.Fatalf("defaults not applied: %+v", cfg.Service)
	}
}
