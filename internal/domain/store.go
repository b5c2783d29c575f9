package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PriceWriter appends observation batches to durable storage.
type PriceWriter interface {
	InsertPrices(ctx context.Context, obs []PriceObservation) error
}

// OpportunityWriter appends opportunity batches to durable storage.
type OpportunityWriter interface {
	InsertOpportunities(ctx context.Context, opps []Opportunity) error
}

// PriceStore persists and queries price observations.
type PriceStore interface {
	PriceWriter
	ListPrices(ctx context.Context, symbol string, opts ListOpts) ([]PriceObservation, error)
	LatestPrice(ctx context.Context, symbol, source string) (PriceObservation, error)
	AveragePrice(ctx context.Context, symbol, source string, from, to time.Time) (decimal.Decimal, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]PriceObservation, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// OpportunityStore persists and queries detected opportunities.
type OpportunityStore interface {
	OpportunityWriter
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
	ListBySymbol(ctx context.Context, symbol string, opts ListOpts) ([]Opportunity, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]Opportunity, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
