// Package config defines the arbwatch configuration, its defaults and its
// validation rules.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// Run modes.
const (
	ModeMonitor = "monitor"
	ModeCollect = "collect"
	ModeServer  = "server"
	ModeFull    = "full"
)

// Source names accepted in arbitrage pairs.
const (
	SourceMEXC          = "MEXC"
	SourceCoinMarketCap = "CoinMarketCap"
	SourceDexScreener   = "DexScreener"
	SourcePancakeSwap   = "PancakeSwap"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by ARBWATCH_* environment variables.
type Config struct {
	Mode             string   `toml:"mode"`
	LogLevel         string   `toml:"log_level"`
	Symbols          []string `toml:"symbols"`
	PriceLogInterval duration `toml:"price_log_interval"`

	MEXC          MEXCConfig          `toml:"mexc"`
	CoinMarketCap CoinMarketCapConfig `toml:"coinmarketcap"`
	DexScreener   DexScreenerConfig   `toml:"dexscreener"`
	Pancake       PancakeConfig       `toml:"pancake"`
	Arbitrage     ArbitrageConfig     `toml:"arbitrage"`
	Notify        NotifyConfig        `toml:"notify"`
	Persist       PersistConfig       `toml:"persist"`
	Postgres      PostgresConfig      `toml:"postgres"`
	Redis         RedisConfig         `toml:"redis"`
	S3            S3Config            `toml:"s3"`
	Archive       ArchiveConfig       `toml:"archive"`
	Server        ServerConfig        `toml:"server"`
}

// RetryConfig is a bounded exponential backoff.
type RetryConfig struct {
	MaxAttempts    int      `toml:"max_attempts"`
	InitialBackoff duration `toml:"initial_backoff"`
	MaxBackoff     duration `toml:"max_backoff"`
}

// MEXCConfig configures the futures ticker stream.
type MEXCConfig struct {
	Enabled          bool     `toml:"enabled"`
	URL              string   `toml:"url"`
	PingInterval     duration `toml:"ping_interval"`
	ReconnectDelay   duration `toml:"reconnect_delay"`
	HandshakeTimeout duration `toml:"handshake_timeout"`
}

// CoinMarketCapConfig configures the latest-quotes poller.
type CoinMarketCapConfig struct {
	Enabled        bool        `toml:"enabled"`
	BaseURL        string      `toml:"base_url"`
	APIKey         string      `toml:"api_key"`
	Interval       duration    `toml:"interval"`
	CallsPerMinute int         `toml:"calls_per_minute"`
	Timeout        duration    `toml:"timeout"`
	Retry          RetryConfig `toml:"retry"`
}

// DexToken is one token contract polled on DexScreener.
type DexToken struct {
	Symbol  string `toml:"symbol"`
	Address string `toml:"address"`
}

// DexScreenerConfig configures the DexScreener poller. Tokens are keyed by
// chain ID ("bsc", "ethereum").
type DexScreenerConfig struct {
	Enabled        bool                  `toml:"enabled"`
	BaseURL        string                `toml:"base_url"`
	Interval       duration              `toml:"interval"`
	CallsPerMinute int                   `toml:"calls_per_minute"`
	Timeout        duration              `toml:"timeout"`
	Retry          RetryConfig           `toml:"retry"`
	Tokens         map[string][]DexToken `toml:"tokens"`
}

// PancakeConfig configures the on-chain router quotes. Tokens maps a base
// symbol to its BEP-20 address.
type PancakeConfig struct {
	Enabled        bool              `toml:"enabled"`
	RPCURL         string            `toml:"rpc_url"`
	Router         string            `toml:"router"`
	WBNB           string            `toml:"wbnb"`
	BUSD           string            `toml:"busd"`
	Interval       duration          `toml:"interval"`
	CallsPerMinute int               `toml:"calls_per_minute"`
	CallTimeout    duration          `toml:"call_timeout"`
	Retry          RetryConfig       `toml:"retry"`
	Tokens         map[string]string `toml:"tokens"`
}

// ArbitrageConfig configures the comparators. Each pair is
// [primary, secondary].
type ArbitrageConfig struct {
	Threshold     decimal.Decimal `toml:"threshold"`
	Decimals      int32           `toml:"decimals"`
	CheckInterval duration        `toml:"check_interval"`
	Pairs         [][]string      `toml:"pairs"`
}

// NotifyConfig configures the alert channels.
type NotifyConfig struct {
	TelegramAPIURL    string      `toml:"telegram_api_url"`
	TelegramToken     string      `toml:"telegram_token"`
	TelegramChatID    string      `toml:"telegram_chat_id"`
	DiscordWebhookURL string      `toml:"discord_webhook_url"`
	MessagesPerMinute int         `toml:"messages_per_minute"`
	DeliveryTimeout   duration    `toml:"delivery_timeout"`
	Retry             RetryConfig `toml:"retry"`
}

// PersistConfig configures the batching buffer in front of Postgres.
type PersistConfig struct {
	Enabled         bool     `toml:"enabled"`
	BatchSize       int      `toml:"batch_size"`
	FlushInterval   duration `toml:"flush_interval"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// PostgresConfig holds the database connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds the Redis connection and mirror settings.
type RedisConfig struct {
	Enabled        bool     `toml:"enabled"`
	Addr           string   `toml:"addr"`
	Password       string   `toml:"password"`
	DB             int      `toml:"db"`
	PoolSize       int      `toml:"pool_size"`
	MaxRetries     int      `toml:"max_retries"`
	TLSEnabled     bool     `toml:"tls_enabled"`
	DialTimeout    duration `toml:"dial_timeout"`
	MirrorInterval duration `toml:"mirror_interval"`
	MirrorTTL      duration `toml:"mirror_ttl"`
	StreamMaxLen   int64    `toml:"stream_max_len"`
}

// S3Config holds the archive bucket settings.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the retention job.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	Cron          string `toml:"cron"`
	RetentionDays int    `toml:"retention_days"`
	Prune         bool   `toml:"prune"`
	MaxRows       int    `toml:"max_rows"`
}

// ServerConfig configures the HTTP read surface.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKeyHash      string   `toml:"api_key_hash"`
	RateLimit       int      `toml:"rate_limit"`
	RateWindow      duration `toml:"rate_window"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// duration wraps time.Duration so TOML strings like "5s" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func defaultRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialBackoff: duration{time.Second}, MaxBackoff: duration{10 * time.Second}}
}

// Defaults returns a Config populated with production defaults.
func Defaults() Config {
	return Config{
		Mode:             ModeMonitor,
		LogLevel:         "info",
		PriceLogInterval: duration{time.Minute},
		MEXC: MEXCConfig{
			Enabled:          true,
			URL:              "wss://contract.mexc.com/edge",
			PingInterval:     duration{15 * time.Second},
			ReconnectDelay:   duration{5 * time.Second},
			HandshakeTimeout: duration{15 * time.Second},
		},
		CoinMarketCap: CoinMarketCapConfig{
			BaseURL:        "https://pro-api.coinmarketcap.com/v1/cryptocurrency/quotes/latest",
			Interval:       duration{time.Minute},
			CallsPerMinute: 30,
			Timeout:        duration{10 * time.Second},
			Retry:          defaultRetry(),
		},
		DexScreener: DexScreenerConfig{
			BaseURL:        "https://api.dexscreener.com",
			Interval:       duration{10 * time.Second},
			CallsPerMinute: 60,
			Timeout:        duration{10 * time.Second},
			Retry:          defaultRetry(),
		},
		Pancake: PancakeConfig{
			RPCURL:         "https://bsc-dataseed.binance.org",
			Interval:       duration{5 * time.Second},
			CallsPerMinute: 60,
			CallTimeout:    duration{10 * time.Second},
			Retry:          defaultRetry(),
		},
		Arbitrage: ArbitrageConfig{
			Threshold:     decimal.NewFromInt(1),
			Decimals:      2,
			CheckInterval: duration{5 * time.Second},
			Pairs: [][]string{
				{SourceMEXC, SourceDexScreener},
				{SourceMEXC, SourceCoinMarketCap},
				{SourceMEXC, SourcePancakeSwap},
			},
		},
		Notify: NotifyConfig{
			MessagesPerMinute: 20,
			DeliveryTimeout:   duration{time.Minute},
			Retry:             defaultRetry(),
		},
		Persist: PersistConfig{
			Enabled:         true,
			BatchSize:       1000,
			FlushInterval:   duration{time.Second},
			ShutdownTimeout: duration{10 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbwatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			PoolSize:       10,
			MaxRetries:     3,
			DialTimeout:    duration{5 * time.Second},
			MirrorInterval: duration{time.Second},
			MirrorTTL:      duration{5 * time.Minute},
			StreamMaxLen:   10000,
		},
		S3: S3Config{
			Region:         "us-east-1",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Cron:          "0 3 * * *",
			RetentionDays: 30,
		},
		Server: ServerConfig{
			Port:            8080,
			RateLimit:       120,
			RateWindow:      duration{time.Minute},
			ShutdownTimeout: duration{10 * time.Second},
		},
	}
}

var validModes = map[string]bool{ModeMonitor: true, ModeCollect: true, ModeServer: true, ModeFull: true}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// RunsSources reports whether the mode ingests prices.
func (c *Config) RunsSources() bool { return c.Mode != ModeServer }

// RunsComparators reports whether the mode detects opportunities.
func (c *Config) RunsComparators() bool { return c.Mode == ModeMonitor || c.Mode == ModeFull }

// RunsServer reports whether the mode serves HTTP.
func (c *Config) RunsServer() bool { return c.Mode == ModeServer || c.Mode == ModeFull }

// NeedsPostgres reports whether the mode opens a database pool.
func (c *Config) NeedsPostgres() bool {
	return c.RunsServer() || (c.RunsSources() && c.Persist.Enabled)
}

// SourceEnabled reports whether a named source is switched on.
func (c *Config) SourceEnabled(name string) bool {
	switch name {
	case SourceMEXC:
		return c.MEXC.Enabled
	case SourceCoinMarketCap:
		return c.CoinMarketCap.Enabled
	case SourceDexScreener:
		return c.DexScreener.Enabled
	case SourcePancakeSwap:
		return c.Pancake.Enabled
	}
	return false
}

// ActivePairs returns the configured pairs whose sources are both enabled.
func (c *Config) ActivePairs() [][2]string {
	var out [][2]string
	for _, p := range c.Arbitrage.Pairs {
		if len(p) == 2 && p[0] != p[1] && c.SourceEnabled(p[0]) && c.SourceEnabled(p[1]) {
			out = append(out, [2]string{p[0], p[1]})
		}
	}
	return out
}

// Validate checks the configuration and returns one error listing every
// problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if !validModes[c.Mode] {
		add("unknown mode %q (valid: monitor, collect, server, full)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	if c.RunsSources() {
		c.validateSources(add)
	}
	if c.RunsComparators() {
		c.validateArbitrage(add)
	}

	if c.NeedsPostgres() && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			add("postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
		}
		if c.Postgres.Database == "" {
			add("postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		add("postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		add("postgres: pool_min_conns must not exceed pool_max_conns")
	}
	if c.Persist.Enabled && c.Persist.BatchSize < 1 {
		add("persist: batch_size must be >= 1")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		add("redis: addr must not be empty when enabled")
	}

	if c.Archive.Enabled {
		if c.Mode != ModeFull {
			add("archive: only runs in full mode")
		}
		if c.S3.Bucket == "" || c.S3.Region == "" {
			add("s3: bucket and region are required when archive is enabled")
		}
		if _, err := cron.ParseStandard(c.Archive.Cron); err != nil {
			add("archive: cron %q: %v", c.Archive.Cron, err)
		}
		if c.Archive.RetentionDays < 1 {
			add("archive: retention_days must be >= 1")
		}
	}

	if c.RunsServer() && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		add("server: port must be 1-65535, got %d", c.Server.Port)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validateSources(add func(string, ...any)) {
	if !c.MEXC.Enabled && !c.CoinMarketCap.Enabled && !c.DexScreener.Enabled && !c.Pancake.Enabled {
		add("no price source is enabled")
	}
	if (c.MEXC.Enabled || c.CoinMarketCap.Enabled) && len(c.Symbols) == 0 {
		add("symbols must not be empty when mexc or coinmarketcap is enabled")
	}
	if c.MEXC.Enabled && c.MEXC.PingInterval.Duration <= 0 {
		add("mexc: ping_interval must be positive")
	}
	if c.CoinMarketCap.Enabled {
		if c.CoinMarketCap.APIKey == "" {
			add("coinmarketcap: api_key is required when enabled")
		}
		validatePoll(add, "coinmarketcap", c.CoinMarketCap.CallsPerMinute, c.CoinMarketCap.Retry)
	}
	if c.DexScreener.Enabled {
		if len(c.DexScreener.Tokens) == 0 {
			add("dexscreener: tokens must not be empty when enabled")
		}
		for chain, tokens := range c.DexScreener.Tokens {
			for _, t := range tokens {
				if t.Symbol == "" || t.Address == "" {
					add("dexscreener: token on %s needs symbol and address", chain)
				}
			}
		}
		validatePoll(add, "dexscreener", c.DexScreener.CallsPerMinute, c.DexScreener.Retry)
	}
	if c.Pancake.Enabled {
		if c.Pancake.RPCURL == "" {
			add("pancake: rpc_url is required when enabled")
		}
		if len(c.Pancake.Tokens) == 0 {
			add("pancake: tokens must not be empty when enabled")
		}
		validatePoll(add, "pancake", c.Pancake.CallsPerMinute, c.Pancake.Retry)
	}
	if c.Notify.MessagesPerMinute < 1 {
		add("notify: messages_per_minute must be >= 1")
	}
	if c.Notify.Retry.MaxAttempts < 1 {
		add("notify: retry.max_attempts must be >= 1")
	}
}

func validatePoll(add func(string, ...any), name string, calls int, r RetryConfig) {
	if calls < 1 {
		add("%s: calls_per_minute must be >= 1", name)
	}
	if r.MaxAttempts < 1 {
		add("%s: retry.max_attempts must be >= 1", name)
	}
	if r.MaxBackoff.Duration < r.InitialBackoff.Duration {
		add("%s: retry.max_backoff must be >= initial_backoff", name)
	}
}

func (c *Config) validateArbitrage(add func(string, ...any)) {
	if !c.Arbitrage.Threshold.IsPositive() {
		add("arbitrage: threshold must be > 0")
	}
	if c.Arbitrage.Decimals < 0 {
		add("arbitrage: decimals must be >= 0")
	}
	known := map[string]bool{SourceMEXC: true, SourceCoinMarketCap: true, SourceDexScreener: true, SourcePancakeSwap: true}
	for _, p := range c.Arbitrage.Pairs {
		if len(p) != 2 || p[0] == p[1] {
			add("arbitrage: pair %v must name two different sources", p)
			continue
		}
		for _, src := range p {
			if !known[src] {
				add("arbitrage: pair %v uses unknown source %q", p, src)
			}
		}
	}
	if len(c.ActivePairs()) == 0 {
		add("arbitrage: no pair has both sources enabled")
	}
}
