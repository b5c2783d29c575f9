package arbitrage

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/periodic"
)

// Snapshotter is a price cache the comparator can read.
type Snapshotter interface {
	Source() string
	AllLatest() map[string]domain.PriceObservation
}

// Sink receives every opportunity a comparator emits.
type Sink interface {
	Accept(ctx context.Context, opp domain.Opportunity)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, opp domain.Opportunity)

// Accept calls f(ctx, opp).
func (f SinkFunc) Accept(ctx context.Context, opp domain.Opportunity) { f(ctx, opp) }

// Config tunes a comparator.
type Config struct {
	Threshold decimal.Decimal // minimum absolute divergence, in percent
	Decimals  int32           // rounding of the divergence percentage
	Interval  time.Duration
}

// Comparator checks one ordered pair of sources on a fixed schedule and
// keeps the most recent opportunity per symbol.
type Comparator struct {
	primary   Snapshotter
	secondary Snapshotter
	cfg       Config
	sinks     []Sink
	now       func() time.Time
	logger    *slog.Logger

	mu   sync.RWMutex
	last map[string]domain.Opportunity
}

// NewComparator creates a comparator for primary against secondary.
func NewComparator(primary, secondary Snapshotter, cfg Config, logger *slog.Logger, sinks ...Sink) *Comparator {
	if cfg.Decimals < 0 {
		cfg.Decimals = 2
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	c := &Comparator{
		primary:   primary,
		secondary: secondary,
		cfg:       cfg,
		sinks:     sinks,
		now:       time.Now,
		last:      make(map[string]domain.Opportunity),
	}
	c.logger = logger.With(
		slog.String("component", "comparator"),
		slog.String("pair", c.Name()),
	)
	return c
}

// Name identifies the pair, e.g. "MEXC/DexScreener".
func (c *Comparator) Name() string {
	return c.primary.Source() + "/" + c.secondary.Source()
}

// Run checks the pair every interval until ctx is cancelled.
func (c *Comparator) Run(ctx context.Context) error {
	c.logger.Info("comparator started",
		slog.String("threshold", c.cfg.Threshold.String()),
		slog.Duration("interval", c.cfg.Interval),
	)
	return periodic.Run(ctx, c.cfg.Interval, func(ctx context.Context) {
		c.Check(ctx)
	})
}

// Check runs one comparison and returns the opportunities it emitted.
func (c *Comparator) Check(ctx context.Context) []domain.Opportunity {
	prim := c.primary.AllLatest()
	sec := c.secondary.AllLatest()
	if len(prim) == 0 || len(sec) == 0 {
		c.logger.Debug("skipping check, a source has no prices",
			slog.Int("primary", len(prim)),
			slog.Int("secondary", len(sec)),
		)
		return nil
	}

	symbols := make([]string, 0, len(prim))
	for sym := range prim {
		if _, ok := sec[sym]; ok {
			symbols = append(symbols, sym)
		}
	}
	if len(symbols) == 0 {
		return nil
	}
	sort.Strings(symbols)

	var emitted []domain.Opportunity
	for _, sym := range symbols {
		p, s := prim[sym], sec[sym]
		div := Divergence(p.Value, s.Value, c.cfg.Decimals)
		if div.Abs().LessThan(c.cfg.Threshold) {
			continue
		}

		opp := domain.Opportunity{
			ID:                uuid.NewString(),
			Symbol:            sym,
			PrimarySource:     c.primary.Source(),
			SecondarySource:   c.secondary.Source(),
			PrimaryValue:      p.Value,
			SecondaryValue:    s.Value,
			DivergencePercent: div,
			DetectedAt:        c.now(),
		}

		c.mu.Lock()
		c.last[sym] = opp
		c.mu.Unlock()

		c.logger.Info("opportunity detected",
			slog.String("symbol", sym),
			slog.String("primary", p.Value.String()),
			slog.String("secondary", s.Value.String()),
			slog.String("divergence_pct", div.String()),
		)
		for _, sink := range c.sinks {
			sink.Accept(ctx, opp)
		}
		emitted = append(emitted, opp)
	}
	return emitted
}

// Get returns the last opportunity detected for symbol.
func (c *Comparator) Get(symbol string) (domain.Opportunity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	opp, ok := c.last[symbol]
	return opp, ok
}

// LastDetected returns the most recent opportunity per symbol, sorted by
// symbol.
func (c *Comparator) LastDetected() []domain.Opportunity {
	c.mu.RLock()
	out := make([]domain.Opportunity, 0, len(c.last))
	for _, opp := range c.last {
		out = append(out, opp)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
