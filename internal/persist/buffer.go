// Package persist batches price observations and opportunities in memory
// and writes them to durable storage by size or on a timer.
package persist

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Config tunes the buffer.
type Config struct {
	BatchSize       int
	FlushInterval   time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the production batching parameters.
func DefaultConfig() Config {
	return Config{
		BatchSize:       1000,
		FlushInterval:   time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Buffer accepts records without blocking and flushes them in batches.
// Failed writes are logged and dropped.
type Buffer struct {
	cfg    Config
	prices *batchQueue[domain.PriceObservation]
	opps   *batchQueue[domain.Opportunity]
	pw     domain.PriceWriter
	ow     domain.OpportunityWriter
	kick   chan struct{}
	logger *slog.Logger
}

// New creates a buffer. A nil ow disables opportunity persistence.
func New(pw domain.PriceWriter, ow domain.OpportunityWriter, cfg Config, logger *slog.Logger) *Buffer {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	return &Buffer{
		cfg:    cfg,
		prices: newBatchQueue[domain.PriceObservation](cfg.BatchSize),
		opps:   newBatchQueue[domain.Opportunity](cfg.BatchSize),
		pw:     pw,
		ow:     ow,
		kick:   make(chan struct{}, 1),
		logger: logger.With(slog.String("component", "persist_buffer")),
	}
}

// BufferPrice queues obs for persistence.
func (b *Buffer) BufferPrice(obs domain.PriceObservation) {
	if b.prices.add(obs) {
		b.signal()
	}
}

// BufferOpportunity queues opp for persistence.
func (b *Buffer) BufferOpportunity(opp domain.Opportunity) {
	if b.ow == nil {
		return
	}
	if b.opps.add(opp) {
		b.signal()
	}
}

// Publish lets the buffer sit behind a price feed.
func (b *Buffer) Publish(obs domain.PriceObservation) { b.BufferPrice(obs) }

// Accept lets the buffer act as a comparator sink.
func (b *Buffer) Accept(_ context.Context, opp domain.Opportunity) { b.BufferOpportunity(opp) }

// Pending returns how many prices and opportunities await a write.
func (b *Buffer) Pending() (prices, opportunities int) {
	return b.prices.pending(), b.opps.pending()
}

func (b *Buffer) signal() {
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

// Run flushes once at start, on every interval tick, whenever a batch
// fills, and a final time on shutdown with a fresh deadline.
func (b *Buffer) Run(ctx context.Context) error {
	b.logger.Info("persist buffer started",
		slog.Int("batch_size", b.cfg.BatchSize),
		slog.Duration("flush_interval", b.cfg.FlushInterval),
	)
	b.Flush(ctx)

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), b.cfg.ShutdownTimeout)
			b.Flush(final)
			cancel()
			b.logger.Info("persist buffer stopped")
			return nil
		case <-b.kick:
			b.write(ctx, b.prices.takeReady(), b.opps.takeReady())
		case <-ticker.C:
			b.Flush(ctx)
		}
	}
}

// Flush writes everything pending. An empty buffer issues no write.
func (b *Buffer) Flush(ctx context.Context) {
	b.write(ctx, b.prices.takeAll(), b.opps.takeAll())
}

func (b *Buffer) write(ctx context.Context, prices [][]domain.PriceObservation, opps [][]domain.Opportunity) {
	for _, batch := range prices {
		if len(batch) == 0 {
			continue
		}
		if err := b.pw.InsertPrices(ctx, batch); err != nil {
			b.logger.Error("price batch write failed, dropping",
				slog.Int("count", len(batch)),
				slog.String("error", err.Error()),
			)
			continue
		}
		b.logger.Debug("price batch written", slog.Int("count", len(batch)))
	}
	for _, batch := range opps {
		if len(batch) == 0 {
			continue
		}
		if err := b.ow.InsertOpportunities(ctx, batch); err != nil {
			b.logger.Error("opportunity batch write failed, dropping",
				slog.Int("count", len(batch)),
				slog.String("error", err.Error()),
			)
			continue
		}
		b.logger.Debug("opportunity batch written", slog.Int("count", len(batch)))
	}
}
