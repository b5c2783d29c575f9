// Package coinmarketcap polls the CoinMarketCap latest-quotes endpoint.
package coinmarketcap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/platform"
)

// DefaultBaseURL is the production latest-quotes endpoint.
const DefaultBaseURL = "https://pro-api.coinmarketcap.com/v1/cryptocurrency/quotes/latest"

const (
	apiKeyHeader = "X-CMC_PRO_API_KEY"
	convert      = "USD"
)

// Client fetches USD quotes for a fixed set of symbols in a single request.
type Client struct {
	baseURL    string
	apiKey     string
	bases      []string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for symbols such as "BTC_USDT".
func NewClient(baseURL, apiKey string, symbols []string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	seen := make(map[string]struct{}, len(symbols))
	bases := make([]string, 0, len(symbols))
	for _, s := range symbols {
		b := domain.BaseAsset(s)
		if _, ok := seen[b]; ok || b == "" {
			continue
		}
		seen[b] = struct{}{}
		bases = append(bases, b)
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		bases:      bases,
		httpClient: platform.NewHTTPClient(timeout),
		logger:     logger.With(slog.String("component", "coinmarketcap")),
	}
}

// Name returns the source name.
func (c *Client) Name() string { return domain.SourceCoinMarketCap }

// Batches returns a single comma-joined batch of base assets.
func (c *Client) Batches() []string {
	if len(c.bases) == 0 {
		return nil
	}
	return []string{strings.Join(c.bases, ",")}
}

// Fetch requests quotes for a comma-separated list of base assets.
func (c *Client) Fetch(ctx context.Context, batch string) ([]domain.PriceObservation, error) {
	params := url.Values{}
	params.Set("symbol", batch)
	params.Set("convert", convert)

	header := http.Header{}
	header.Set(apiKeyHeader, c.apiKey)

	body, err := platform.GetBody(ctx, c.httpClient, "coinmarketcap", c.baseURL+"?"+params.Encode(), header)
	if err != nil {
		return nil, err
	}
	return c.parse(body, time.Now())
}

func (c *Client) parse(body []byte, now time.Time) ([]domain.PriceObservation, error) {
	var resp QuotesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("coinmarketcap: decode response: %w: %w", domain.ErrMalformedResponse, err)
	}
	if resp.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("coinmarketcap: api error %d: %s: %w",
			resp.Status.ErrorCode, resp.Status.ErrorMessage, domain.ErrMalformedResponse)
	}
	data := bytes.TrimSpace(resp.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] != '{' {
		return nil, fmt.Errorf("coinmarketcap: data is not an object: %w", domain.ErrMalformedResponse)
	}

	var assets map[string]json.RawMessage
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("coinmarketcap: decode data: %w: %w", domain.ErrMalformedResponse, err)
	}

	keys := make([]string, 0, len(assets))
	for k := range assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.PriceObservation, 0, len(assets))
	for _, sym := range keys {
		var a Asset
		if err := json.Unmarshal(assets[sym], &a); err != nil {
			c.logger.Warn("dropping undecodable asset", slog.String("symbol", sym), slog.String("error", err.Error()))
			continue
		}
		q, ok := a.Quote[convert]
		if !ok || q.Price == nil || !q.Price.IsPositive() {
			c.logger.Warn("dropping asset without usable price", slog.String("symbol", sym))
			continue
		}
		out = append(out, domain.PriceObservation{
			Symbol:     domain.PairSymbol(sym),
			Value:      *q.Price,
			Source:     domain.SourceCoinMarketCap,
			ObservedAt: now,
		})
	}
	return out, nil
}
