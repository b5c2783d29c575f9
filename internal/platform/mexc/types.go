package mexc

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Channel names used by the contract edge stream.
const (
	ChannelTicker   = "push.ticker"
	ChannelPong     = "pong"
	ChannelSubAck   = "rs.sub.ticker"
	ChannelError    = "rs.error"
	MethodSubTicker = "sub.ticker"
	MethodPing      = "ping"
)

// Request is an outbound frame.
type Request struct {
	Method string        `json:"method"`
	Param  *RequestParam `json:"param,omitempty"`
}

// RequestParam carries the symbol of a subscription request.
type RequestParam struct {
	Symbol string `json:"symbol"`
}

// Envelope is the common shape of every inbound frame. Data is decoded
// according to Channel.
type Envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
	Symbol  string          `json:"symbol,omitempty"`
	TS      int64           `json:"ts,omitempty"`
}

// Ticker is the payload of a push.ticker frame.
type Ticker struct {
	Symbol    string          `json:"symbol"`
	LastPrice decimal.Decimal `json:"lastPrice"`
	Timestamp int64           `json:"timestamp"`
}
