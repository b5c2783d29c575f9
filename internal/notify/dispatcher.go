package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/ratelimit"
	"github.com/alanyoungcy/arbwatch/internal/retry"
)

// DispatcherConfig tunes delivery.
type DispatcherConfig struct {
	MessagesPerMinute int
	Retry             retry.Policy
	// DeliveryTimeout bounds one notification including all retries.
	DeliveryTimeout time.Duration
}

// Dispatcher delivers opportunities to every configured sender without
// blocking the caller. It enforces its own per-minute ceiling and drops
// notifications beyond it.
type Dispatcher struct {
	senders []Sender
	limiter *ratelimit.Window
	cfg     DispatcherConfig
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher over senders.
func NewDispatcher(senders []Sender, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.MessagesPerMinute <= 0 {
		cfg.MessagesPerMinute = 20
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = time.Minute
	}
	return &Dispatcher{
		senders: senders,
		limiter: ratelimit.NewWindow(cfg.MessagesPerMinute),
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Accept lets the dispatcher act as a comparator sink.
func (d *Dispatcher) Accept(ctx context.Context, opp domain.Opportunity) {
	d.Notify(ctx, opp)
}

// Notify starts delivery of opp and returns at once. The returned channel
// yields true once every sender accepted the message, or false if the
// message was dropped or any sender failed.
func (d *Dispatcher) Notify(ctx context.Context, opp domain.Opportunity) <-chan bool {
	result := make(chan bool, 1)

	if len(d.senders) == 0 {
		d.logger.DebugContext(ctx, "no senders configured, skipping notification",
			slog.String("symbol", opp.Symbol),
		)
		result <- false
		return result
	}
	if !d.limiter.TryAcquire() {
		d.logger.WarnContext(ctx, "notification dropped, rate limit reached",
			slog.String("symbol", opp.Symbol),
			slog.Int("limit", d.limiter.Limit()),
		)
		result <- false
		return result
	}

	// Delivery outlives the caller's context so shutdown can drain it.
	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.DeliveryTimeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		result <- d.deliver(deliverCtx, opp)
	}()
	return result
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, opp domain.Opportunity) bool {
	title, body := FormatOpportunity(opp)

	ok := true
	for _, s := range d.senders {
		err := retry.Do(ctx, d.cfg.Retry, func(ctx context.Context) error {
			return s.Send(ctx, title, body)
		}, func(attempt int, wait time.Duration, err error) {
			d.logger.WarnContext(ctx, "send failed, retrying",
				slog.String("sender", s.Name()),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()),
			)
		})
		if err != nil {
			d.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("symbol", opp.Symbol),
				slog.String("error", err.Error()),
			)
			ok = false
			continue
		}
		d.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("symbol", opp.Symbol),
		)
	}
	return ok
}
