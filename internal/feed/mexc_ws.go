package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/platform/mexc"
)

// MEXCConfig tunes the streaming source.
type MEXCConfig struct {
	URL              string
	Symbols          []string
	PingInterval     time.Duration
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
}

// MEXCFeed keeps one subscribed session to the MEXC ticker stream alive,
// publishing every push for a configured symbol. It walks
// Disconnected -> Connecting -> Subscribed -> Degraded -> Connecting until
// its context is cancelled.
type MEXCFeed struct {
	cfg     MEXCConfig
	symbols map[string]struct{}
	pub     Publisher
	logger  *slog.Logger

	state    stateHolder
	sessions atomic.Int64
}

// NewMEXCFeed creates a streaming source for cfg.Symbols.
func NewMEXCFeed(cfg MEXCConfig, pub Publisher, logger *slog.Logger) *MEXCFeed {
	if cfg.URL == "" {
		cfg.URL = mexc.DefaultURL
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 15 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 15 * time.Second
	}
	symbols := make(map[string]struct{}, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols[s] = struct{}{}
	}
	return &MEXCFeed{
		cfg:     cfg,
		symbols: symbols,
		pub:     pub,
		logger:  logger.With(slog.String("component", "mexc_ws_feed")),
	}
}

// Name returns the source name.
func (f *MEXCFeed) Name() string { return domain.SourceMEXC }

// State returns the current session state.
func (f *MEXCFeed) State() State { return f.state.load() }

// Sessions returns how many sessions reached the dial stage.
func (f *MEXCFeed) Sessions() int64 { return f.sessions.Load() }

// Run connects and reconnects with a fixed delay until ctx is cancelled.
// It only returns nil.
func (f *MEXCFeed) Run(ctx context.Context) error {
	if len(f.symbols) == 0 {
		f.logger.Info("no symbols to subscribe, exiting")
		return nil
	}
	defer f.state.store(StateDisconnected)

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := f.runSession(ctx)
		if ctx.Err() != nil {
			return nil
		}

		f.state.store(StateDegraded)
		f.logger.Warn("mexc ws disconnected, reconnecting",
			slog.String("error", errString(err)),
			slog.Duration("delay", f.cfg.ReconnectDelay),
		)

		timer := time.NewTimer(f.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (f *MEXCFeed) runSession(ctx context.Context) error {
	f.state.store(StateConnecting)
	f.sessions.Add(1)

	conn, err := mexc.Dial(ctx, f.cfg.URL, f.cfg.HandshakeTimeout)
	if err != nil {
		return err
	}

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessCtx.Done()
		_ = conn.Close()
	}()

	liveness := 2 * f.cfg.PingInterval
	conn.ExtendDeadline(liveness)

	for _, sym := range f.cfg.Symbols {
		if err := conn.Subscribe(sym); err != nil {
			return err
		}
	}
	f.state.store(StateSubscribed)
	f.logger.Info("mexc ws subscribed", slog.Int("symbols", len(f.cfg.Symbols)))

	pingErr := make(chan error, 1)
	go f.pingLoop(sessCtx, conn, pingErr)

	for {
		raw, err := conn.Read()
		if err != nil {
			select {
			case perr := <-pingErr:
				return perr
			default:
			}
			if ctx.Err() != nil {
				return nil
			}
			return errors.Join(domain.ErrWSDisconnect, err)
		}
		conn.ExtendDeadline(liveness)
		f.handleFrame(raw)
	}
}

func (f *MEXCFeed) pingLoop(ctx context.Context, conn *mexc.Conn, errc chan<- error) {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				errc <- fmt.Errorf("keepalive: %w", err)
				_ = conn.Close()
				return
			}
		}
	}
}

func (f *MEXCFeed) handleFrame(raw []byte) {
	frame, err := mexc.ParseFrame(raw)
	if err != nil {
		f.logger.Warn("dropping unparseable frame", slog.String("error", err.Error()))
		return
	}

	switch frame.Kind {
	case mexc.FrameTicker:
		t := frame.Ticker
		if _, ok := f.symbols[t.Symbol]; !ok {
			return
		}
		observed := time.Now()
		if t.Timestamp > 0 {
			observed = time.UnixMilli(t.Timestamp)
		}
		f.pub.Publish(domain.PriceObservation{
			Symbol:     t.Symbol,
			Value:      t.LastPrice,
			Source:     domain.SourceMEXC,
			ObservedAt: observed,
		})
	case mexc.FramePong:
		f.logger.Debug("pong")
	case mexc.FrameSubAck:
		f.logger.Debug("subscription acknowledged", slog.String("data", string(frame.Raw)))
	case mexc.FrameError:
		f.logger.Warn("server error frame", slog.String("data", string(frame.Raw)))
	}
}

func errString(err error) string {
	if err == nil {
		return "session ended"
	}
	return err.Error()
}
