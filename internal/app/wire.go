package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/arbwatch/internal/blob/s3"
	"github.com/alanyoungcy/arbwatch/internal/cache/redis"
	"github.com/alanyoungcy/arbwatch/internal/config"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/notify"
	"github.com/alanyoungcy/arbwatch/internal/retry"
	"github.com/alanyoungcy/arbwatch/internal/store/postgres"
)

// Dependencies bundles the external clients and stores the modes share.
// Every field is nil when its backend is not configured for the mode.
type Dependencies struct {
	Postgres      *postgres.Client
	Prices        *postgres.PriceStore
	Opportunities *postgres.OpportunityStore

	Redis   *redis.Client
	Mirror  domain.PriceMirror
	Bus     domain.SignalBus
	Limiter domain.RateLimiter

	S3         *s3blob.Client
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	Dispatcher *notify.Dispatcher
}

// needsS3 reports whether the mode archives or lists archives.
func needsS3(cfg *config.Config) bool {
	if cfg.Archive.Enabled {
		return true
	}
	return cfg.RunsServer() && cfg.S3.Bucket != ""
}

// Wire constructs the dependencies for cfg and returns them with a cleanup
// function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if cfg.NeedsPostgres() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.Postgres = pgClient
		deps.Prices = postgres.NewPriceStore(pgClient.Pool())
		deps.Opportunities = postgres.NewOpportunityStore(pgClient.Pool())
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			MaxRetries:  cfg.Redis.MaxRetries,
			TLSEnabled:  cfg.Redis.TLSEnabled,
			DialTimeout: cfg.Redis.DialTimeout.Duration,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.Mirror = redis.NewPriceMirror(redisClient, cfg.Redis.MirrorTTL.Duration)
		deps.Bus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
		deps.Limiter = redis.NewRateLimiter(redisClient)
	}

	// --- S3 blob storage ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		reader := s3blob.NewReader(s3Client)
		deps.S3 = s3Client
		deps.BlobReader = reader
		if cfg.Archive.Enabled && deps.Prices != nil {
			deps.Archiver = s3blob.NewArchiver(
				s3blob.NewWriter(s3Client),
				reader,
				deps.Prices,
				deps.Opportunities,
				cfg.Archive.MaxRows,
				logger,
			)
		}
	}

	// --- Notifications ---
	deps.Dispatcher = notify.NewDispatcher(buildSenders(cfg.Notify), notify.DispatcherConfig{
		MessagesPerMinute: cfg.Notify.MessagesPerMinute,
		Retry:             retryPolicy(cfg.Notify.Retry),
		DeliveryTimeout:   cfg.Notify.DeliveryTimeout.Duration,
	}, logger)

	return deps, cleanup, nil
}

func buildSenders(cfg config.NotifyConfig) []notify.Sender {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramAPIURL, cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return senders
}

func retryPolicy(r config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialBackoff.Duration,
		MaxDelay:     r.MaxBackoff.Duration,
	}
}
