// Package dexscreener polls the DexScreener tokens endpoint, one request
// per chain.
package dexscreener

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/platform"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.dexscreener.com"

// Client fetches USD prices for tokens grouped by chain.
type Client struct {
	baseURL    string
	tokens     map[string][]Token
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for tokens keyed by chain ID ("bsc", "ethereum").
func NewClient(baseURL string, tokens map[string][]Token, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: platform.NewHTTPClient(timeout),
		logger:     logger.With(slog.String("component", "dexscreener")),
	}
}

// Name returns the source name.
func (c *Client) Name() string { return domain.SourceDexScreener }

// Batches returns the configured chain IDs in a stable order.
func (c *Client) Batches() []string {
	chains := make([]string, 0, len(c.tokens))
	for chain, toks := range c.tokens {
		if len(toks) > 0 {
			chains = append(chains, chain)
		}
	}
	sort.Strings(chains)
	return chains
}

// Fetch requests every configured token on chain in one call.
func (c *Client) Fetch(ctx context.Context, chain string) ([]domain.PriceObservation, error) {
	toks := c.tokens[chain]
	if len(toks) == 0 {
		return nil, nil
	}
	addrs := make([]string, len(toks))
	for i, t := range toks {
		addrs[i] = t.Address
	}

	url := fmt.Sprintf("%s/tokens/v1/%s/%s", c.baseURL, chain, strings.Join(addrs, ","))
	body, err := platform.GetBody(ctx, c.httpClient, "dexscreener", url, nil)
	if err != nil {
		return nil, err
	}
	return c.parse(chain, body, time.Now())
}

// parse keeps, per configured token, the pair with the deepest liquidity
// where that token is the base side.
func (c *Client) parse(chain string, body []byte, now time.Time) ([]domain.PriceObservation, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("dexscreener: response is not an array: %w", domain.ErrMalformedResponse)
	}
	var pairs []Pair
	if err := json.Unmarshal(trimmed, &pairs); err != nil {
		return nil, fmt.Errorf("dexscreener: decode pairs: %w: %w", domain.ErrMalformedResponse, err)
	}

	byAddr := make(map[string]Token, len(c.tokens[chain]))
	for _, t := range c.tokens[chain] {
		byAddr[strings.ToLower(t.Address)] = t
	}

	best := make(map[string]Pair)
	for _, p := range pairs {
		tok, ok := byAddr[strings.ToLower(p.BaseToken.Address)]
		if !ok {
			continue
		}
		if p.PriceUSD == nil || !p.PriceUSD.IsPositive() {
			c.logger.Warn("dropping pair without usable price",
				slog.String("chain", chain),
				slog.String("pair", p.PairAddress),
			)
			continue
		}
		sym := tok.Symbol
		if sym == "" {
			sym = p.BaseToken.Symbol
		}
		if cur, ok := best[sym]; !ok || p.liquidityUSD() > cur.liquidityUSD() {
			best[sym] = p
		}
	}

	syms := make([]string, 0, len(best))
	for s := range best {
		syms = append(syms, s)
	}
	sort.Strings(syms)

	out := make([]domain.PriceObservation, 0, len(best))
	for _, s := range syms {
		out = append(out, domain.PriceObservation{
			Symbol:     domain.PairSymbol(s),
			Value:      *best[s].PriceUSD,
			Source:     domain.SourceDexScreener,
			ObservedAt: now,
		})
	}
	return out, nil
}
