// Package pancake quotes token prices from the PancakeSwap router on BNB
// Smart Chain by simulating a swap of one whole token into BUSD.
package pancake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/retry"
)

// Well-known BSC mainnet addresses.
const (
	DefaultRouter = "0x10ED43C718714eb63d5aA57B78B54704E256024E"
	DefaultWBNB   = "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"
	DefaultBUSD   = "0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56"
)

// priceScale is the number of decimals kept on a quote.
const priceScale = 8

// oneToken is 10^18, one whole unit of an 18-decimal token.
var oneToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ContractCaller is the read-only slice of an RPC client used for quotes.
type ContractCaller interface {
	CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Config names the router, the routing hops and the quoted tokens.
type Config struct {
	Router      string
	WBNB        string
	BUSD        string
	Tokens      map[string]string // symbol -> token address
	CallTimeout time.Duration
}

// Client quotes each configured token through token -> WBNB -> BUSD.
type Client struct {
	caller  ContractCaller
	router  common.Address
	wbnb    common.Address
	busd    common.Address
	tokens  map[string]common.Address
	timeout time.Duration
	logger  *slog.Logger
}

// Dial connects to a BSC JSON-RPC endpoint and returns a quoting client
// with a close function for the connection.
func Dial(ctx context.Context, rpcURL string, cfg Config, logger *slog.Logger) (*Client, func(), error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("pancake: dial rpc: %w", err)
	}
	c, err := NewClient(ec, cfg, logger)
	if err != nil {
		ec.Close()
		return nil, nil, err
	}
	return c, ec.Close, nil
}

// NewClient validates cfg and builds a client on top of caller.
func NewClient(caller ContractCaller, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Router == "" {
		cfg.Router = DefaultRouter
	}
	if cfg.WBNB == "" {
		cfg.WBNB = DefaultWBNB
	}
	if cfg.BUSD == "" {
		cfg.BUSD = DefaultBUSD
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	for _, a := range []string{cfg.Router, cfg.WBNB, cfg.BUSD} {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("pancake: invalid address %q", a)
		}
	}
	tokens := make(map[string]common.Address, len(cfg.Tokens))
	for sym, addr := range cfg.Tokens {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("pancake: invalid address %q for %s", addr, sym)
		}
		tokens[sym] = common.HexToAddress(addr)
	}
	return &Client{
		caller:  caller,
		router:  common.HexToAddress(cfg.Router),
		wbnb:    common.HexToAddress(cfg.WBNB),
		busd:    common.HexToAddress(cfg.BUSD),
		tokens:  tokens,
		timeout: cfg.CallTimeout,
		logger:  logger.With(slog.String("component", "pancake")),
	}, nil
}

// Name returns the source name.
func (c *Client) Name() string { return domain.SourcePancakeSwap }

// Batches returns one batch per configured token symbol.
func (c *Client) Batches() []string {
	syms := make([]string, 0, len(c.tokens))
	for s := range c.tokens {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

// Fetch quotes a single token.
func (c *Client) Fetch(ctx context.Context, symbol string) ([]domain.PriceObservation, error) {
	token, ok := c.tokens[symbol]
	if !ok {
		return nil, fmt.Errorf("pancake: unknown token %q", symbol)
	}
	price, err := c.Quote(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("pancake: quote %s: %w", symbol, err)
	}
	return []domain.PriceObservation{{
		Symbol:     domain.PairSymbol(symbol),
		Value:      price,
		Source:     domain.SourcePancakeSwap,
		ObservedAt: time.Now(),
	}}, nil
}

// Quote returns the BUSD value of one whole token, rounded half-up to
// eight decimals.
func (c *Client) Quote(ctx context.Context, token common.Address) (decimal.Decimal, error) {
	path := []common.Address{token, c.wbnb, c.busd}
	data, err := routerABI.Pack(methodGetAmountsOut, oneToken, path)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pack getAmountsOut: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.caller.CallContract(callCtx, geth.CallMsg{To: &c.router, Data: data}, nil)
	if err != nil {
		return decimal.Zero, classifyRPCError(err)
	}

	outputs, err := routerABI.Unpack(methodGetAmountsOut, resp)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unpack getAmountsOut: %w: %w", domain.ErrMalformedResponse, err)
	}
	if len(outputs) == 0 {
		return decimal.Zero, fmt.Errorf("empty getAmountsOut result: %w", domain.ErrInvalidQuote)
	}
	amounts, ok := outputs[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		return decimal.Zero, fmt.Errorf("empty getAmountsOut result: %w", domain.ErrInvalidQuote)
	}

	last := amounts[len(amounts)-1]
	if last == nil || last.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("non-positive quote: %w", domain.ErrInvalidQuote)
	}
	return ScaleAmount(last), nil
}

// ScaleAmount converts an 18-decimal integer amount into a decimal with
// eight places, rounding half away from zero.
func ScaleAmount(amount *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(amount, -18).Round(priceScale)
}

// classifyRPCError maps HTTP failures from the RPC transport onto
// retry.StatusError so throttling and server errors are retried.
func classifyRPCError(err error) error {
	var he rpc.HTTPError
	if errors.As(err, &he) {
		return &retry.StatusError{Service: "bsc-rpc", Code: he.StatusCode, Body: string(he.Body)}
	}
	return fmt.Errorf("call router: %w", err)
}
