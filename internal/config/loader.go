package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ARBWATCH_"

// Load decodes the TOML file at path over Defaults, loads .env when
// present and applies ARBWATCH_* overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides lets deployments inject secrets and endpoints without
// editing the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "MODE")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStringSlice(&cfg.Symbols, "SYMBOLS")
	setDuration(&cfg.PriceLogInterval, "PRICE_LOG_INTERVAL")

	setBool(&cfg.MEXC.Enabled, "MEXC_ENABLED")
	setStr(&cfg.MEXC.URL, "MEXC_URL")
	setDuration(&cfg.MEXC.PingInterval, "MEXC_PING_INTERVAL")
	setDuration(&cfg.MEXC.ReconnectDelay, "MEXC_RECONNECT_DELAY")

	setBool(&cfg.CoinMarketCap.Enabled, "COINMARKETCAP_ENABLED")
	setStr(&cfg.CoinMarketCap.BaseURL, "COINMARKETCAP_BASE_URL")
	setStr(&cfg.CoinMarketCap.APIKey, "COINMARKETCAP_API_KEY")
	setDuration(&cfg.CoinMarketCap.Interval, "COINMARKETCAP_INTERVAL")
	setInt(&cfg.CoinMarketCap.CallsPerMinute, "COINMARKETCAP_CALLS_PER_MINUTE")

	setBool(&cfg.DexScreener.Enabled, "DEXSCREENER_ENABLED")
	setStr(&cfg.DexScreener.BaseURL, "DEXSCREENER_BASE_URL")
	setDuration(&cfg.DexScreener.Interval, "DEXSCREENER_INTERVAL")
	setInt(&cfg.DexScreener.CallsPerMinute, "DEXSCREENER_CALLS_PER_MINUTE")

	setBool(&cfg.Pancake.Enabled, "PANCAKE_ENABLED")
	setStr(&cfg.Pancake.RPCURL, "PANCAKE_RPC_URL")
	setDuration(&cfg.Pancake.Interval, "PANCAKE_INTERVAL")
	setInt(&cfg.Pancake.CallsPerMinute, "PANCAKE_CALLS_PER_MINUTE")

	setDecimal(&cfg.Arbitrage.Threshold, "ARBITRAGE_THRESHOLD")
	setDuration(&cfg.Arbitrage.CheckInterval, "ARBITRAGE_CHECK_INTERVAL")

	setStr(&cfg.Notify.TelegramToken, "NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NOTIFY_DISCORD_WEBHOOK_URL")
	setInt(&cfg.Notify.MessagesPerMinute, "NOTIFY_MESSAGES_PER_MINUTE")

	setBool(&cfg.Persist.Enabled, "PERSIST_ENABLED")
	setInt(&cfg.Persist.BatchSize, "PERSIST_BATCH_SIZE")
	setDuration(&cfg.Persist.FlushInterval, "PERSIST_FLUSH_INTERVAL")

	setStr(&cfg.Postgres.DSN, "POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POSTGRES_POOL_MAX_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POSTGRES_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")

	setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.S3.Region, "S3_REGION")
	setStr(&cfg.S3.Bucket, "S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "S3_FORCE_PATH_STYLE")

	setBool(&cfg.Archive.Enabled, "ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "ARCHIVE_CRON")
	setInt(&cfg.Archive.RetentionDays, "ARCHIVE_RETENTION_DAYS")
	setBool(&cfg.Archive.Prune, "ARCHIVE_PRUNE")

	setInt(&cfg.Server.Port, "SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKeyHash, "SERVER_API_KEY_HASH")
	setInt(&cfg.Server.RateLimit, "SERVER_RATE_LIMIT")
}

// Each setter only writes when ARBWATCH_<key> is set and parses.

func lookup(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setDecimal(dst *decimal.Decimal, key string) {
	if v, ok := lookup(key); ok {
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
