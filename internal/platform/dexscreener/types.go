package dexscreener

import "github.com/shopspring/decimal"

// Token is a configured token on one chain.
type Token struct {
	Symbol  string `toml:"symbol" json:"symbol"`
	Address string `toml:"address" json:"address"`
}

// Pair is one trading pair from the tokens endpoint.
type Pair struct {
	ChainID     string           `json:"chainId"`
	DexID       string           `json:"dexId"`
	PairAddress string           `json:"pairAddress"`
	BaseToken   PairToken        `json:"baseToken"`
	QuoteToken  PairToken        `json:"quoteToken"`
	PriceUSD    *decimal.Decimal `json:"priceUsd"`
	Liquidity   *Liquidity       `json:"liquidity"`
}

// PairToken identifies one side of a pair.
type PairToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// Liquidity is the pool depth of a pair.
type Liquidity struct {
	USD float64 `json:"usd"`
}

func (p Pair) liquidityUSD() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}
