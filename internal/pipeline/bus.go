package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/wire"
)

// OpportunityBus forwards detected opportunities to Redis: JSON on the
// live pub/sub channel and protobuf on the replayable stream.
type OpportunityBus struct {
	bus     domain.SignalBus
	timeout time.Duration
	logger  *slog.Logger
}

// busTimeout bounds each Redis call made from the comparator loop.
const busTimeout = 2 * time.Second

// NewOpportunityBus creates the sink.
func NewOpportunityBus(bus domain.SignalBus, logger *slog.Logger) *OpportunityBus {
	return &OpportunityBus{
		bus:     bus,
		timeout: busTimeout,
		logger:  logger.With(slog.String("component", "opportunity_bus")),
	}
}

// Accept publishes opp. Failures are logged. Each Redis call is bounded by
// the bus timeout, so a stalled Redis delays the comparator by at most two
// timeouts per opportunity.
func (b *OpportunityBus) Accept(ctx context.Context, opp domain.Opportunity) {
	if payload, err := wire.OpportunityJSON(opp); err != nil {
		b.logger.Error("encode opportunity", slog.String("error", err.Error()))
	} else if err := b.publish(ctx, payload); err != nil {
		b.logger.Warn("publish opportunity failed",
			slog.String("symbol", opp.Symbol),
			slog.String("error", err.Error()),
		)
	}

	payload, err := wire.MarshalOpportunity(opp)
	if err != nil {
		b.logger.Error("encode opportunity", slog.String("error", err.Error()))
		return
	}
	if err := b.streamAppend(ctx, payload); err != nil {
		b.logger.Warn("stream append failed",
			slog.String("symbol", opp.Symbol),
			slog.String("error", err.Error()),
		)
	}
}

func (b *OpportunityBus) publish(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.bus.Publish(ctx, wire.ChannelOpportunities, payload)
}

func (b *OpportunityBus) streamAppend(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.bus.StreamAppend(ctx, wire.StreamOpportunities, payload)
}
