package mexc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FrameKind classifies an inbound frame.
type FrameKind int

const (
	FrameOther FrameKind = iota
	FrameTicker
	FramePong
	FrameSubAck
	FrameError
)

func (k FrameKind) String() string {
	switch k {
	case FrameTicker:
		return "ticker"
	case FramePong:
		return "pong"
	case FrameSubAck:
		return "sub_ack"
	case FrameError:
		return "error"
	default:
		return "other"
	}
}

// Frame is a classified inbound message. Ticker is set only for FrameTicker.
type Frame struct {
	Kind    FrameKind
	Channel string
	Ticker  *Ticker
	Raw     json.RawMessage
}

var errBadTicker = errors.New("mexc: ticker frame missing symbol or price")

// ParseFrame decodes raw and classifies it by its channel. Unknown channels
// are returned as FrameOther without error.
func ParseFrame(raw []byte) (Frame, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Frame{}, fmt.Errorf("mexc: decode frame: %w", err)
	}

	f := Frame{Channel: env.Channel, Raw: env.Data}
	switch env.Channel {
	case ChannelTicker:
		var t Ticker
		if len(env.Data) == 0 {
			return Frame{}, errBadTicker
		}
		if err := json.Unmarshal(env.Data, &t); err != nil {
			return Frame{}, fmt.Errorf("mexc: decode ticker: %w", err)
		}
		if t.Symbol == "" {
			t.Symbol = env.Symbol
		}
		if t.Symbol == "" || !t.LastPrice.IsPositive() {
			return Frame{}, errBadTicker
		}
		f.Kind = FrameTicker
		f.Ticker = &t
	case ChannelPong:
		f.Kind = FramePong
	case ChannelSubAck:
		f.Kind = FrameSubAck
	case ChannelError:
		f.Kind = FrameError
	default:
		f.Kind = FrameOther
	}
	return f, nil
}

// SubscribeRequest builds the ticker subscription frame for symbol.
func SubscribeRequest(symbol string) Request {
	return Request{Method: MethodSubTicker, Param: &RequestParam{Symbol: symbol}}
}

// PingRequest builds the application-level keepalive frame.
func PingRequest() Request {
	return Request{Method: MethodPing}
}
