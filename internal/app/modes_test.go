package app

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/alanyoungcy/arbwatch/internal/config"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/notify"
)

func testApp(cfg config.Config) *App {
	return New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPairSymbols(t *testing.T) {
	got := pairSymbols([]string{"btc", " ETH_USDT", "BTC", "", "  "})
	want := []string{"BTC_USDT", "ETH_USDT"}
	if !slices.Equal(got, want) {
		t.Errorf("pairSymbols = %v, want %v", got, want)
	}
}

func TestDexTokens(t *testing.T) {
	got := dexTokens(map[string][]config.DexToken{
		"bsc": {{Symbol: "CAKE", Address: "0xabc"}, {Symbol: "BNB", Address: "0xdef"}},
	})
	if len(got["bsc"]) != 2 || got["bsc"][1].Symbol != "BNB" {
		t.Errorf("dexTokens = %+v", got)
	}
}

func TestBuildComparatorsSkipsDisabledSources(t *testing.T) {
	cfg := config.Defaults()
	cfg.Symbols = []string{"BTC"}
	cfg.Persist.Enabled = false
	cfg.CoinMarketCap.Enabled = true
	cfg.CoinMarketCap.APIKey = "key"

	a := testApp(cfg)
	deps := &Dependencies{Dispatcher: notify.NewDispatcher(nil, notify.DispatcherConfig{}, a.logger)}

	in, err := a.buildIngest(context.Background(), deps)
	if err != nil {
		t.Fatalf("buildIngest: %v", err)
	}
	if in.buffer != nil {
		t.Error("buffer built with persistence disabled")
	}
	if len(in.caches) != 2 || in.bySource[domain.SourceMEXC] == nil || in.bySource[domain.SourceCoinMarketCap] == nil {
		t.Fatalf("caches = %v", in.bySource)
	}
	// MEXC feed and CoinMarketCap poller.
	if len(in.runners) != 2 {
		t.Errorf("runners = %d, want 2", len(in.runners))
	}

	agg, comparators := a.buildComparators(deps, in)
	if len(comparators) != 1 {
		t.Fatalf("comparators = %d, want 1", len(comparators))
	}
	if names := agg.Names(); len(names) != 1 || names[0] != "MEXC/CoinMarketCap" {
		t.Errorf("names = %v", names)
	}
}

func TestSidecarsWithoutRedis(t *testing.T) {
	cfg := config.Defaults()
	a := testApp(cfg)
	if got := a.sidecars(&Dependencies{}, &ingest{}); len(got) != 1 {
		t.Errorf("sidecars = %d, want only the price logger", len(got))
	}

	cfg.PriceLogInterval.Duration = 0
	a = testApp(cfg)
	if got := a.sidecars(&Dependencies{}, &ingest{}); len(got) != 0 {
		t.Errorf("sidecars = %d, want none", len(got))
	}
}

func TestBuildServerWithoutBackends(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = config.ModeServer
	a := testApp(cfg)

	runners := a.buildServer(&Dependencies{}, nil, nil)
	// No bus means no hub, only the HTTP server.
	if len(runners) != 1 {
		t.Errorf("runners = %d, want 1", len(runners))
	}
}
