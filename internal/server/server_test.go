package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/pricecache"
	"github.com/alanyoungcy/arbwatch/internal/server/handler"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHistory struct {
	recentLimit int
}

func (f *fakeHistory) ListRecent(_ context.Context, limit int) ([]domain.Opportunity, error) {
	f.recentLimit = limit
	return []domain.Opportunity{{ID: "a", Symbol: "BTC_USDT"}}, nil
}

func (f *fakeHistory) ListBySymbol(_ context.Context, symbol string, _ domain.ListOpts) ([]domain.Opportunity, error) {
	return nil, nil
}

type fakePrices struct{}

func (fakePrices) ListPrices(context.Context, string, domain.ListOpts) ([]domain.PriceObservation, error) {
	return nil, nil
}

func (fakePrices) LatestPrice(_ context.Context, symbol, source string) (domain.PriceObservation, error) {
	if symbol == "BTC_USDT" && source == domain.SourceMEXC {
		return domain.PriceObservation{Symbol: symbol, Source: source, Value: decimal.NewFromInt(100)}, nil
	}
	return domain.PriceObservation{}, domain.ErrNotFound
}

func (fakePrices) AveragePrice(context.Context, string, string, time.Time, time.Time) (decimal.Decimal, error) {
	return decimal.RequireFromString("101.5"), nil
}

type fakeView struct{}

func (fakeView) Names() []string { return []string{"MEXC/DexScreener"} }
func (fakeView) Opportunities() []domain.Opportunity {
	return []domain.Opportunity{{ID: "live", Symbol: "ETH_USDT"}}
}

type failingCheck struct{}

func (failingCheck) Health(context.Context) error { return errors.New("connection refused") }

type countingLimiter struct {
	calls atomic.Int32
	limit int32
}

func (l *countingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return l.calls.Add(1) <= l.limit, nil
}

func newTestServer(t *testing.T, cfg Config, limiter domain.RateLimiter, checks map[string]handler.Checker) *httptest.Server {
	t.Helper()
	logger := testLogger()
	mexc := pricecache.New(domain.SourceMEXC)
	mexc.Publish(domain.PriceObservation{Symbol: "BTC_USDT", Value: decimal.NewFromInt(100), Source: domain.SourceMEXC})

	h := Handlers{
		Health:        handler.NewHealthHandler(checks, logger),
		Status:        handler.NewStatusHandler("full", time.Now(), func() string { return "subscribed" }, mexc),
		Prices:        handler.NewPriceHandler(nil, logger, mexc),
		Opportunities: handler.NewOpportunityHandler(fakeView{}, &fakeHistory{}, logger),
		Analytics:     handler.NewAnalyticsHandler(fakePrices{}, logger),
	}
	srv := NewServer(cfg, h, nil, limiter, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, ts *httptest.Server, path string, header http.Header) (int, map[string]any) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func TestReadRoutes(t *testing.T) {
	ts := newTestServer(t, Config{}, nil, nil)

	tests := []struct {
		path   string
		status int
		key    string
	}{
		{"/api/health", http.StatusOK, "status"},
		{"/api/status", http.StatusOK, "stream_state"},
		{"/api/prices", http.StatusOK, "sources"},
		{"/api/prices/mexc", http.StatusOK, "prices"},
		{"/api/prices/unknown", http.StatusNotFound, "error"},
		{"/api/prices/MEXC/btc_usdt", http.StatusOK, "value"},
		{"/api/opportunities", http.StatusOK, "comparators"},
		{"/api/opportunities/recent?limit=5", http.StatusOK, "opportunities"},
		{"/api/opportunities/BTC_USDT", http.StatusOK, "opportunities"},
		{"/api/analytics/prices/BTC_USDT/latest", http.StatusOK, "value"},
		{"/api/analytics/prices/DOGE_USDT/latest", http.StatusNotFound, "error"},
		{"/api/analytics/prices/BTC_USDT/average?from=2025-01-01&to=2025-01-02", http.StatusOK, "average"},
		{"/api/analytics/prices/BTC_USDT/average?from=2025-01-03&to=2025-01-02", http.StatusBadRequest, "error"},
		{"/api/analytics/prices/BTC_USDT?from=bad", http.StatusBadRequest, "error"},
	}
	for _, tt := range tests {
		status, body := getJSON(t, ts, tt.path, nil)
		if status != tt.status {
			t.Errorf("GET %s status = %d, want %d", tt.path, status, tt.status)
		}
		if _, ok := body[tt.key]; !ok {
			t.Errorf("GET %s body missing %q: %v", tt.path, tt.key, body)
		}
	}
}

func TestAverageResponse(t *testing.T) {
	ts := newTestServer(t, Config{}, nil, nil)
	_, body := getJSON(t, ts, "/api/analytics/prices/btc_usdt/average?source=MEXC", nil)
	if body["average"] != "101.5" {
		t.Errorf("average = %v, want 101.5", body["average"])
	}
	if body["symbol"] != "BTC_USDT" {
		t.Errorf("symbol = %v, want BTC_USDT", body["symbol"])
	}
}

func TestHealthDegraded(t *testing.T) {
	ts := newTestServer(t, Config{}, nil, map[string]handler.Checker{"postgres": failingCheck{}, "redis": nil})
	status, body := getJSON(t, ts, "/api/health", nil)
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
	deps, _ := body["dependencies"].(map[string]any)
	if _, ok := deps["redis"]; ok {
		t.Error("nil checker should be skipped")
	}
	if deps["postgres"] != "connection refused" {
		t.Errorf("postgres = %v", deps["postgres"])
	}
}

func TestAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	ts := newTestServer(t, Config{APIKeyHash: string(hash)}, nil, nil)

	if status, _ := getJSON(t, ts, "/api/health", nil); status != http.StatusOK {
		t.Errorf("health without key = %d, want 200", status)
	}
	if status, _ := getJSON(t, ts, "/api/prices", nil); status != http.StatusUnauthorized {
		t.Errorf("no key = %d, want 401", status)
	}
	if status, _ := getJSON(t, ts, "/api/prices", http.Header{"X-Api-Key": {"wrong"}}); status != http.StatusUnauthorized {
		t.Errorf("wrong key = %d, want 401", status)
	}
	if status, _ := getJSON(t, ts, "/api/prices", http.Header{"Authorization": {"Bearer s3cret"}}); status != http.StatusOK {
		t.Errorf("bearer key = %d, want 200", status)
	}
	if status, _ := getJSON(t, ts, "/api/prices?api_key=s3cret", nil); status != http.StatusOK {
		t.Errorf("query key = %d, want 200", status)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{limit: 2}
	ts := newTestServer(t, Config{RateLimit: 2, RateWindow: time.Minute}, limiter, nil)

	for i := 0; i < 2; i++ {
		if status, _ := getJSON(t, ts, "/api/status", nil); status != http.StatusOK {
			t.Fatalf("request %d = %d, want 200", i, status)
		}
	}
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", resp.Header.Get("Retry-After"))
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, Config{CORSOrigins: []string{"https://dash.example"}}, nil, nil)
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/prices", nil)
	req.Header.Set("Origin", "https://dash.example")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://dash.example" {
		t.Errorf("allow origin = %q", got)
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "GET") {
		t.Error("GET not advertised")
	}
}
