// Package wire encodes pipeline events for the Redis bus. Pub/sub
// channels carry JSON for browser clients; the durable stream carries a
// protobuf Struct so replays do not depend on Go field order.
package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Bus channel and stream names.
const (
	ChannelOpportunities = "ch:arb"
	ChannelPrices        = "ch:prices"
	StreamOpportunities  = "stream:arb"
)

// Event types carried in the JSON envelope.
const (
	TypeOpportunity = "opportunity"
	TypePrice       = "price"
	TypeReplay      = "replay"
)

// Envelope wraps a JSON pub/sub payload. ID is set on replayed stream
// entries so a client can resume after the last one it saw.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// OpportunityJSON encodes opp inside an Envelope.
func OpportunityJSON(opp domain.Opportunity) ([]byte, error) {
	return envelope(TypeOpportunity, opp)
}

// PriceJSON encodes obs inside an Envelope.
func PriceJSON(obs domain.PriceObservation) ([]byte, error) {
	return envelope(TypePrice, obs)
}

// ReplayJSON encodes an opportunity read back from the durable stream.
func ReplayJSON(id string, opp domain.Opportunity) ([]byte, error) {
	payload, err := json.Marshal(opp)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", TypeReplay, err)
	}
	return json.Marshal(Envelope{Type: TypeReplay, ID: id, Payload: payload})
}

func envelope(kind string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", kind, err)
	}
	return json.Marshal(Envelope{Type: kind, Payload: payload})
}

// MarshalOpportunity encodes opp as a protobuf Struct. Decimals and
// timestamps travel as strings so no precision is lost.
func MarshalOpportunity(opp domain.Opportunity) ([]byte, error) {
	raw, err := json.Marshal(opp)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal opportunity: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("wire: marshal opportunity: %w", err)
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal opportunity: %w", err)
	}
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal opportunity: %w", err)
	}
	return b, nil
}

// UnmarshalOpportunity decodes a payload written by MarshalOpportunity.
func UnmarshalOpportunity(b []byte) (domain.Opportunity, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return domain.Opportunity{}, fmt.Errorf("wire: unmarshal opportunity: %w", err)
	}
	raw, err := protojson.Marshal(&st)
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("wire: unmarshal opportunity: %w", err)
	}
	var opp domain.Opportunity
	if err := json.Unmarshal(raw, &opp); err != nil {
		return domain.Opportunity{}, fmt.Errorf("wire: unmarshal opportunity: %w", err)
	}
	return opp, nil
}
