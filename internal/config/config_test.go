package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const sampleTOML = `
mode = "full"
symbols = ["BTC", "ETH"]

[coinmarketcap]
enabled = true
api_key = "cmc-key"
interval = "2m"

[dexscreener]
enabled = true

[[dexscreener.tokens.bsc]]
symbol = "CAKE"
address = "0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82"

[arbitrage]
threshold = 2.5
pairs = [["MEXC", "DexScreener"], ["MEXC", "CoinMarketCap"]]

[postgres]
password = "pg-pass"

[s3]
bucket = "archive"

[archive]
enabled = true
retention_days = 14
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CoinMarketCap.Interval.Duration != 2*time.Minute {
		t.Errorf("cmc interval = %v, want 2m", cfg.CoinMarketCap.Interval.Duration)
	}
	if cfg.DexScreener.Interval.Duration != 10*time.Second {
		t.Errorf("dexscreener interval = %v, want default 10s", cfg.DexScreener.Interval.Duration)
	}
	if !cfg.Arbitrage.Threshold.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("threshold = %s, want 2.5", cfg.Arbitrage.Threshold)
	}
	if got := cfg.DexScreener.Tokens["bsc"]; len(got) != 1 || got[0].Symbol != "CAKE" {
		t.Errorf("bsc tokens = %+v", got)
	}
	if len(cfg.ActivePairs()) != 2 {
		t.Errorf("active pairs = %v, want 2", cfg.ActivePairs())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARBWATCH_MODE", "collect")
	t.Setenv("ARBWATCH_SYMBOLS", "sol, doge ,")
	t.Setenv("ARBWATCH_ARBITRAGE_THRESHOLD", "0.75")
	t.Setenv("ARBWATCH_POSTGRES_PORT", "not-a-number")
	t.Setenv("ARBWATCH_MEXC_PING_INTERVAL", "20s")

	cfg, err := Load(writeConfig(t, sampleTOML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeCollect {
		t.Errorf("Mode = %q, want collect", cfg.Mode)
	}
	if strings.Join(cfg.Symbols, ",") != "sol,doge" {
		t.Errorf("Symbols = %v", cfg.Symbols)
	}
	if !cfg.Arbitrage.Threshold.Equal(decimal.RequireFromString("0.75")) {
		t.Errorf("threshold = %s", cfg.Arbitrage.Threshold)
	}
	if cfg.Postgres.Port != 5432 {
		t.Errorf("unparsable override changed port to %d", cfg.Postgres.Port)
	}
	if cfg.MEXC.PingInterval.Duration != 20*time.Second {
		t.Errorf("ping interval = %v", cfg.MEXC.PingInterval.Duration)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	if _, err := Load(writeConfig(t, "[mexc]\nping_interval = \"soon\"\n")); err == nil {
		t.Error("expected decode error")
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.LogLevel = "loud"
	cfg.Arbitrage.Pairs = [][]string{{"MEXC", "MEXC"}, {"MEXC", "Binance"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown mode", "unknown log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateMonitorNeedsActivePair(t *testing.T) {
	cfg := Defaults()
	cfg.Symbols = []string{"BTC"}
	cfg.Arbitrage.Pairs = [][]string{{"MEXC", "Binance"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{`unknown source "Binance"`, "no pair has both sources enabled"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateArchiveCron(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = ModeFull
	cfg.Archive.Enabled = true
	cfg.Archive.Cron = "0 25 * * *"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "archive: cron") {
		t.Errorf("expected cron error, got %v", err)
	}

	cfg.Archive.Cron = "@daily"
	if err := cfg.Validate(); err != nil && strings.Contains(err.Error(), "archive: cron") {
		t.Errorf("descriptor rejected: %v", err)
	}
}

func TestServerModeSkipsSourceChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = ModeServer
	if err := cfg.Validate(); err != nil {
		t.Errorf("server mode with defaults: %v", err)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	red := RedactedConfig(cfg)
	if red.CoinMarketCap.APIKey != redacted || red.Postgres.Password != redacted {
		t.Errorf("secrets not redacted: %q %q", red.CoinMarketCap.APIKey, red.Postgres.Password)
	}
	if cfg.CoinMarketCap.APIKey != "cmc-key" {
		t.Error("redaction mutated the original")
	}
	red.Symbols[0] = "XXX"
	red.Arbitrage.Pairs[0][0] = "XXX"
	if cfg.Symbols[0] != "BTC" || cfg.Arbitrage.Pairs[0][0] != "MEXC" {
		t.Error("redacted copy shares slices with the original")
	}
	if red.Redis.Password != "" {
		t.Error("empty secrets should stay empty")
	}
}
