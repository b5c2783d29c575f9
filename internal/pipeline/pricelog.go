package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/periodic"
)

// PriceLogger writes every cached price to the log on a fixed interval,
// one line per source and symbol.
type PriceLogger struct {
	caches   []LatestSource
	interval time.Duration
	logger   *slog.Logger
}

// NewPriceLogger creates the job.
func NewPriceLogger(interval time.Duration, logger *slog.Logger, caches ...LatestSource) *PriceLogger {
	return &PriceLogger{
		caches:   caches,
		interval: interval,
		logger:   logger.With(slog.String("component", "price_logger")),
	}
}

// Run logs every interval until ctx is cancelled.
func (p *PriceLogger) Run(ctx context.Context) error {
	return periodic.Run(ctx, p.interval, p.Log)
}

// Log emits one snapshot.
func (p *PriceLogger) Log(ctx context.Context) {
	for _, c := range p.caches {
		latest := c.AllLatest()
		symbols := make([]string, 0, len(latest))
		for sym := range latest {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		for _, sym := range symbols {
			obs := latest[sym]
			p.logger.InfoContext(ctx, "last price",
				slog.String("source", c.Source()),
				slog.String("symbol", sym),
				slog.String("price", obs.Value.String()),
				slog.Time("observed_at", obs.ObservedAt),
			)
		}
	}
}
