package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func sampleOpportunity() domain.Opportunity {
	return domain.Opportunity{
		ID:                "6f1c7a52-8a43-4a43-9d3e-0a4c1c2b7a10",
		Symbol:            "BTC_USDT",
		PrimarySource:     domain.SourceMEXC,
		SecondarySource:   domain.SourceDexScreener,
		PrimaryValue:      decimal.RequireFromString("64000.12345678"),
		SecondaryValue:    decimal.RequireFromString("62000"),
		DivergencePercent: decimal.RequireFromString("3.23"),
		DetectedAt:        time.Date(2025, 5, 1, 12, 0, 0, 123000000, time.UTC),
	}
}

func TestOpportunityProtobufRoundTrip(t *testing.T) {
	in := sampleOpportunity()
	b, err := MarshalOpportunity(in)
	if err != nil {
		t.Fatalf("MarshalOpportunity: %v", err)
	}
	out, err := UnmarshalOpportunity(b)
	if err != nil {
		t.Fatalf("UnmarshalOpportunity: %v", err)
	}
	if out.ID != in.ID || out.Symbol != in.Symbol || out.PrimarySource != in.PrimarySource {
		t.Errorf("identity fields = %+v, want %+v", out, in)
	}
	if !out.PrimaryValue.Equal(in.PrimaryValue) || !out.DivergencePercent.Equal(in.DivergencePercent) {
		t.Errorf("values = %s/%s, want %s/%s", out.PrimaryValue, out.DivergencePercent, in.PrimaryValue, in.DivergencePercent)
	}
	if !out.DetectedAt.Equal(in.DetectedAt) {
		t.Errorf("DetectedAt = %v, want %v", out.DetectedAt, in.DetectedAt)
	}
}

func TestUnmarshalOpportunityRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalOpportunity([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Error("expected error for invalid protobuf")
	}
}

func TestOpportunityJSONEnvelope(t *testing.T) {
	b, err := OpportunityJSON(sampleOpportunity())
	if err != nil {
		t.Fatalf("OpportunityJSON: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != TypeOpportunity {
		t.Errorf("Type = %q, want %q", env.Type, TypeOpportunity)
	}
	var opp domain.Opportunity
	if err := json.Unmarshal(env.Payload, &opp); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if opp.Symbol != "BTC_USDT" {
		t.Errorf("Symbol = %q, want BTC_USDT", opp.Symbol)
	}
}
