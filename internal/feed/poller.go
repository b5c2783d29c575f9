package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/periodic"
	"github.com/alanyoungcy/arbwatch/internal/ratelimit"
	"github.com/alanyoungcy/arbwatch/internal/retry"
)

// Strategy is the per-source half of a polling source: how requests are
// grouped and how one group is fetched and parsed.
type Strategy interface {
	// Name is the source name attached to every observation.
	Name() string
	// Batches lists the request groups for one cycle.
	Batches() []string
	// Fetch performs one request group. Entries with unusable prices are
	// dropped by the strategy, not reported as errors.
	Fetch(ctx context.Context, batch string) ([]domain.PriceObservation, error)
}

// PollerConfig tunes a Poller.
type PollerConfig struct {
	Interval       time.Duration
	CallsPerMinute int
	Retry          retry.Policy
}

// Poller runs a Strategy on a fixed schedule behind a rate window, retrying
// transient failures and publishing whatever it parsed.
type Poller struct {
	strategy Strategy
	interval time.Duration
	policy   retry.Policy
	limiter  *ratelimit.Window
	pub      Publisher
	logger   *slog.Logger
}

// NewPoller creates a poller for strategy that publishes into pub.
func NewPoller(strategy Strategy, cfg PollerConfig, pub Publisher, logger *slog.Logger) *Poller {
	return &Poller{
		strategy: strategy,
		interval: cfg.Interval,
		policy:   cfg.Retry,
		limiter:  ratelimit.NewWindow(cfg.CallsPerMinute),
		pub:      pub,
		logger: logger.With(
			slog.String("component", "poller"),
			slog.String("source", strategy.Name()),
		),
	}
}

// Name returns the source name.
func (p *Poller) Name() string { return p.strategy.Name() }

// Run polls until ctx is cancelled. Cycle failures are logged, never returned.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started",
		slog.Duration("interval", p.interval),
		slog.Int("calls_per_minute", p.limiter.Limit()),
	)
	return periodic.Run(ctx, p.interval, func(ctx context.Context) {
		p.Poll(ctx)
	})
}

// Poll runs one cycle and returns how many observations were published.
// A cycle consumes a single unit of the rate window regardless of how many
// batches the strategy splits it into.
func (p *Poller) Poll(ctx context.Context) int {
	if !p.limiter.TryAcquire() {
		p.logger.Warn("rate limit reached, skipping cycle",
			slog.Int("limit", p.limiter.Limit()),
		)
		return 0
	}

	published := 0
	for _, batch := range p.strategy.Batches() {
		if ctx.Err() != nil {
			return published
		}

		var got []domain.PriceObservation
		err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
			var err error
			got, err = p.strategy.Fetch(ctx, batch)
			return err
		}, func(attempt int, wait time.Duration, err error) {
			p.logger.Warn("fetch failed, retrying",
				slog.String("batch", batch),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()),
			)
		})
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("fetch failed, skipping batch",
					slog.String("batch", batch),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		for _, obs := range got {
			p.pub.Publish(obs)
			published++
		}
	}

	p.logger.Debug("poll cycle complete", slog.Int("published", published))
	return published
}
