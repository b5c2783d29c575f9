package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbwatch/internal/arbitrage"
	"github.com/alanyoungcy/arbwatch/internal/config"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/feed"
	"github.com/alanyoungcy/arbwatch/internal/persist"
	"github.com/alanyoungcy/arbwatch/internal/pipeline"
	"github.com/alanyoungcy/arbwatch/internal/platform/coinmarketcap"
	"github.com/alanyoungcy/arbwatch/internal/platform/dexscreener"
	"github.com/alanyoungcy/arbwatch/internal/platform/pancake"
	"github.com/alanyoungcy/arbwatch/internal/pricecache"
	"github.com/alanyoungcy/arbwatch/internal/server"
	"github.com/alanyoungcy/arbwatch/internal/server/handler"
	"github.com/alanyoungcy/arbwatch/internal/server/ws"
)

// runner is any long-lived component. Run returns nil once ctx is done.
type runner interface {
	Run(ctx context.Context) error
}

// ingest is the source side of the pipeline: one cache per enabled source,
// the goroutines feeding them and the optional persistence buffer.
type ingest struct {
	caches   []*pricecache.Cache
	bySource map[string]*pricecache.Cache
	runners  []runner
	mexc     *feed.MEXCFeed
	buffer   *persist.Buffer
}

// MonitorMode ingests prices, detects opportunities and notifies.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	in, err := a.buildIngest(ctx, deps)
	if err != nil {
		return err
	}
	_, comparators := a.buildComparators(deps, in)

	runners := append(in.runners, comparators...)
	runners = append(runners, a.sidecars(deps, in)...)
	return a.run(ctx, deps, runners)
}

// CollectMode ingests and persists prices without running comparators.
func (a *App) CollectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting collect mode")

	in, err := a.buildIngest(ctx, deps)
	if err != nil {
		return err
	}
	runners := append(in.runners, a.sidecars(deps, in)...)
	return a.run(ctx, deps, runners)
}

// ServerMode serves the read API from Postgres, Redis and S3 only.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	return a.run(ctx, deps, a.buildServer(deps, nil, nil))
}

// FullMode runs ingestion, detection, the API and the archive cron in one
// process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	in, err := a.buildIngest(ctx, deps)
	if err != nil {
		return err
	}
	agg, comparators := a.buildComparators(deps, in)

	runners := append(in.runners, comparators...)
	runners = append(runners, a.sidecars(deps, in)...)
	runners = append(runners, a.buildServer(deps, in, agg)...)

	if deps.Archiver != nil {
		runners = append(runners, pipeline.NewArchiver(deps.Archiver, deps.Prices, deps.Opportunities, pipeline.ArchiverConfig{
			Cron:          a.cfg.Archive.Cron,
			RetentionDays: a.cfg.Archive.RetentionDays,
			Prune:         a.cfg.Archive.Prune,
		}, a.logger))
	}
	return a.run(ctx, deps, runners)
}

// run starts every runner under one errgroup. The first failure cancels
// the rest; in-flight notifications are awaited before returning.
func (a *App) run(ctx context.Context, deps *Dependencies, runners []runner) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error {
			return r.Run(ctx)
		})
	}
	err := g.Wait()
	if deps.Dispatcher != nil {
		deps.Dispatcher.Wait()
	}
	return err
}

// buildIngest creates a cache and a producer for every enabled source.
// Observations go to the cache and, when persistence is on, the buffer.
func (a *App) buildIngest(ctx context.Context, deps *Dependencies) (*ingest, error) {
	cfg := a.cfg
	in := &ingest{bySource: make(map[string]*pricecache.Cache)}

	if cfg.Persist.Enabled && deps.Prices != nil {
		in.buffer = persist.New(deps.Prices, deps.Opportunities, persist.Config{
			BatchSize:       cfg.Persist.BatchSize,
			FlushInterval:   cfg.Persist.FlushInterval.Duration,
			ShutdownTimeout: cfg.Persist.ShutdownTimeout.Duration,
		}, a.logger)
		in.runners = append(in.runners, in.buffer)
	}

	// publisherFor registers the cache for source and returns its fan-out.
	publisherFor := func(source string) feed.Publisher {
		cache := pricecache.New(source)
		in.caches = append(in.caches, cache)
		in.bySource[source] = cache
		if in.buffer == nil {
			return cache
		}
		return feed.Fanout{cache, in.buffer}
	}

	symbols := pairSymbols(cfg.Symbols)

	if cfg.MEXC.Enabled {
		in.mexc = feed.NewMEXCFeed(feed.MEXCConfig{
			URL:              cfg.MEXC.URL,
			Symbols:          symbols,
			PingInterval:     cfg.MEXC.PingInterval.Duration,
			ReconnectDelay:   cfg.MEXC.ReconnectDelay.Duration,
			HandshakeTimeout: cfg.MEXC.HandshakeTimeout.Duration,
		}, publisherFor(domain.SourceMEXC), a.logger)
		in.runners = append(in.runners, in.mexc)
	}

	if cfg.CoinMarketCap.Enabled {
		c := cfg.CoinMarketCap
		client := coinmarketcap.NewClient(c.BaseURL, c.APIKey, symbols, c.Timeout.Duration, a.logger)
		in.runners = append(in.runners, feed.NewPoller(client, feed.PollerConfig{
			Interval:       c.Interval.Duration,
			CallsPerMinute: c.CallsPerMinute,
			Retry:          retryPolicy(c.Retry),
		}, publisherFor(domain.SourceCoinMarketCap), a.logger))
	}

	if cfg.DexScreener.Enabled {
		c := cfg.DexScreener
		client := dexscreener.NewClient(c.BaseURL, dexTokens(c.Tokens), c.Timeout.Duration, a.logger)
		in.runners = append(in.runners, feed.NewPoller(client, feed.PollerConfig{
			Interval:       c.Interval.Duration,
			CallsPerMinute: c.CallsPerMinute,
			Retry:          retryPolicy(c.Retry),
		}, publisherFor(domain.SourceDexScreener), a.logger))
	}

	if cfg.Pancake.Enabled {
		c := cfg.Pancake
		client, closeRPC, err := pancake.Dial(ctx, c.RPCURL, pancake.Config{
			Router:      c.Router,
			WBNB:        c.WBNB,
			BUSD:        c.BUSD,
			Tokens:      c.Tokens,
			CallTimeout: c.CallTimeout.Duration,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("app: pancake: %w", err)
		}
		a.closers = append(a.closers, closeRPC)
		in.runners = append(in.runners, feed.NewPoller(client, feed.PollerConfig{
			Interval:       c.Interval.Duration,
			CallsPerMinute: c.CallsPerMinute,
			Retry:          retryPolicy(c.Retry),
		}, publisherFor(domain.SourcePancakeSwap), a.logger))
	}

	a.logger.Info("sources ready",
		slog.Int("sources", len(in.caches)),
		slog.Int("symbols", len(symbols)),
		slog.Bool("persist", in.buffer != nil),
	)
	return in, nil
}

// buildComparators creates one comparator per active pair and the
// aggregate view over them.
func (a *App) buildComparators(deps *Dependencies, in *ingest) (*arbitrage.Aggregate, []runner) {
	sinks := []arbitrage.Sink{deps.Dispatcher}
	if in.buffer != nil {
		sinks = append(sinks, in.buffer)
	}
	if deps.Bus != nil {
		sinks = append(sinks, pipeline.NewOpportunityBus(deps.Bus, a.logger))
	}

	cmpCfg := arbitrage.Config{
		Threshold: a.cfg.Arbitrage.Threshold,
		Decimals:  a.cfg.Arbitrage.Decimals,
		Interval:  a.cfg.Arbitrage.CheckInterval.Duration,
	}
	agg := arbitrage.NewAggregate()
	var runners []runner
	for _, pair := range a.cfg.ActivePairs() {
		primary, secondary := in.bySource[pair[0]], in.bySource[pair[1]]
		if primary == nil || secondary == nil {
			continue
		}
		c := arbitrage.NewComparator(primary, secondary, cmpCfg, a.logger, sinks...)
		agg.Register(c)
		runners = append(runners, c)
	}
	a.logger.Info("comparators ready", slog.Any("pairs", agg.Names()))
	return agg, runners
}

// sidecars are the periodic jobs reading the caches: the Redis mirror and
// the price log.
func (a *App) sidecars(deps *Dependencies, in *ingest) []runner {
	latest := make([]pipeline.LatestSource, len(in.caches))
	for i, c := range in.caches {
		latest[i] = c
	}

	var runners []runner
	if deps.Mirror != nil {
		runners = append(runners, pipeline.NewMirrorSync(deps.Mirror, deps.Bus, a.cfg.Redis.MirrorInterval.Duration, a.logger, latest...))
	}
	if a.cfg.PriceLogInterval.Duration > 0 {
		runners = append(runners, pipeline.NewPriceLogger(a.cfg.PriceLogInterval.Duration, a.logger, latest...))
	}
	return runners
}

// buildServer assembles the HTTP API and, with Redis, the WebSocket hub.
// in and agg are nil in server mode.
func (a *App) buildServer(deps *Dependencies, in *ingest, agg *arbitrage.Aggregate) []runner {
	checks := make(map[string]handler.Checker)
	if deps.Postgres != nil {
		checks["postgres"] = deps.Postgres
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis
	}
	if deps.S3 != nil {
		checks["s3"] = deps.S3
	}

	var (
		snapshots []handler.Snapshot
		sized     []handler.Sized
		stream    func() string
	)
	if in != nil {
		for _, c := range in.caches {
			snapshots = append(snapshots, c)
			sized = append(sized, c)
		}
		if in.mexc != nil {
			stream = func() string { return in.mexc.State().String() }
		}
	}

	var view handler.OpportunityView
	if agg != nil {
		view = agg
	}
	var history handler.OpportunityHistory
	if deps.Opportunities != nil {
		history = deps.Opportunities
	}

	h := server.Handlers{
		Health:        handler.NewHealthHandler(checks, a.logger),
		Status:        handler.NewStatusHandler(a.cfg.Mode, a.startedAt, stream, sized...),
		Prices:        handler.NewPriceHandler(deps.Mirror, a.logger, snapshots...),
		Opportunities: handler.NewOpportunityHandler(view, history, a.logger),
	}
	if deps.Prices != nil {
		h.Analytics = handler.NewAnalyticsHandler(deps.Prices, a.logger)
	}
	if deps.BlobReader != nil {
		h.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	var runners []runner
	var hub *ws.Hub
	if deps.Bus != nil {
		hub = ws.NewHub(deps.Bus, a.cfg.Mode, a.logger)
		runners = append(runners, hub)
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKeyHash:      a.cfg.Server.APIKeyHash,
		RateLimit:       a.cfg.Server.RateLimit,
		RateWindow:      a.cfg.Server.RateWindow.Duration,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout.Duration,
	}, h, hub, deps.Limiter, a.logger)
	return append(runners, srv)
}

// pairSymbols turns configured assets ("btc", "ETH_USDT") into pipeline
// symbols ("BTC_USDT", "ETH_USDT"), dropping blanks and duplicates.
func pairSymbols(assets []string) []string {
	seen := make(map[string]bool, len(assets))
	out := make([]string, 0, len(assets))
	for _, s := range assets {
		base := strings.TrimSpace(domain.BaseAsset(strings.TrimSpace(s)))
		if base == "" {
			continue
		}
		sym := domain.PairSymbol(base)
		if seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

func dexTokens(in map[string][]config.DexToken) map[string][]dexscreener.Token {
	out := make(map[string][]dexscreener.Token, len(in))
	for chain, tokens := range in {
		for _, t := range tokens {
			out[chain] = append(out[chain], dexscreener.Token{Symbol: t.Symbol, Address: t.Address})
		}
	}
	return out
}
