package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source names used across the pipeline. They appear in logs, cache
// snapshots, persisted rows and notification text.
const (
	SourceMEXC          = "MEXC"
	SourceCoinMarketCap = "CoinMarketCap"
	SourceDexScreener   = "DexScreener"
	SourcePancakeSwap   = "PancakeSwap"
)

// QuoteSuffix is appended to a base asset to form a pipeline symbol.
const QuoteSuffix = "_USDT"

// PriceObservation is one quote for one symbol from one source.
type PriceObservation struct {
	Symbol     string          `json:"symbol"`
	Value      decimal.Decimal `json:"value"`
	Source     string          `json:"source"`
	ObservedAt time.Time       `json:"observed_at"`
}

// PairSymbol normalises a base asset ("btc") into "BTC_USDT".
func PairSymbol(base string) string {
	return strings.ToUpper(strings.TrimSpace(base)) + QuoteSuffix
}

// BaseAsset returns the part of a pipeline symbol before the first
// underscore ("BTC_USDT" -> "BTC").
func BaseAsset(symbol string) string {
	base, _, _ := strings.Cut(symbol, "_")
	return base
}
