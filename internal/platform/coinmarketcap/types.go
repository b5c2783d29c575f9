package coinmarketcap

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Status is the envelope header of every API reply.
type Status struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// QuotesResponse is the reply of /v1/cryptocurrency/quotes/latest. Data is
// kept raw so a missing or non-object payload can be told apart.
type QuotesResponse struct {
	Status Status          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// Asset is one entry of the data map.
type Asset struct {
	Symbol string           `json:"symbol"`
	Quote  map[string]Quote `json:"quote"`
}

// Quote is the conversion of an asset into one fiat currency.
type Quote struct {
	Price       *decimal.Decimal `json:"price"`
	LastUpdated string           `json:"last_updated"`
}
