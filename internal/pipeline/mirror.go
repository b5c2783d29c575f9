package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/periodic"
	"github.com/alanyoungcy/arbwatch/internal/wire"
)

// LatestSource is a price cache the mirror can snapshot.
type LatestSource interface {
	Source() string
	AllLatest() map[string]domain.PriceObservation
}

// MirrorSync copies every cache into Redis on a fixed interval and
// publishes observations that changed since the previous pass.
type MirrorSync struct {
	caches   []LatestSource
	mirror   domain.PriceMirror
	bus      domain.SignalBus
	interval time.Duration
	logger   *slog.Logger

	// last published ObservedAt per source+symbol; only touched by Sync.
	seen map[string]time.Time
}

// NewMirrorSync creates the job. bus may be nil to skip publishing.
func NewMirrorSync(mirror domain.PriceMirror, bus domain.SignalBus, interval time.Duration, logger *slog.Logger, caches ...LatestSource) *MirrorSync {
	return &MirrorSync{
		caches:   caches,
		mirror:   mirror,
		bus:      bus,
		interval: interval,
		logger:   logger.With(slog.String("component", "price_mirror")),
		seen:     make(map[string]time.Time),
	}
}

// Run syncs every interval until ctx is cancelled.
func (m *MirrorSync) Run(ctx context.Context) error {
	return periodic.Run(ctx, m.interval, func(ctx context.Context) { m.Sync(ctx) })
}

// Sync performs one pass and returns how many observations were mirrored.
func (m *MirrorSync) Sync(ctx context.Context) int {
	var all, fresh []domain.PriceObservation
	for _, c := range m.caches {
		for _, obs := range c.AllLatest() {
			all = append(all, obs)
			key := obs.Source + ":" + obs.Symbol
			if prev, ok := m.seen[key]; !ok || obs.ObservedAt.After(prev) {
				fresh = append(fresh, obs)
			}
		}
	}
	if len(all) == 0 {
		return 0
	}

	if err := m.mirror.SetPrices(ctx, all); err != nil {
		m.logger.Warn("mirror prices failed",
			slog.Int("count", len(all)),
			slog.String("error", err.Error()),
		)
		return 0
	}
	for _, obs := range fresh {
		m.seen[obs.Source+":"+obs.Symbol] = obs.ObservedAt
	}

	if m.bus != nil {
		for _, obs := range fresh {
			payload, err := wire.PriceJSON(obs)
			if err != nil {
				continue
			}
			if err := m.bus.Publish(ctx, wire.ChannelPrices, payload); err != nil {
				m.logger.Warn("publish price failed", slog.String("error", err.Error()))
				break
			}
		}
	}
	return len(all)
}
