package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// PriceMirror implements domain.PriceMirror with one hash per
// source and symbol holding the latest price and its timestamp.
type PriceMirror struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceMirror creates a mirror whose keys expire after ttl of silence.
// A zero ttl keeps keys forever.
func NewPriceMirror(c *Client, ttl time.Duration) *PriceMirror {
	return &PriceMirror{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(source, symbol string) string {
	return "price:" + source + ":" + symbol
}

// SetPrices writes every observation in a single pipeline.
func (m *PriceMirror) SetPrices(ctx context.Context, obs []domain.PriceObservation) error {
	if len(obs) == 0 {
		return nil
	}
	pipe := m.rdb.Pipeline()
	for _, o := range obs {
		key := priceKey(o.Source, o.Symbol)
		pipe.HSet(ctx, key,
			"price", o.Value.String(),
			"ts", strconv.FormatInt(o.ObservedAt.UnixNano(), 10),
		)
		if m.ttl > 0 {
			pipe.Expire(ctx, key, m.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: mirror %d prices: %w", len(obs), err)
	}
	return nil
}

// GetPrice reads the mirrored observation for source and symbol.
func (m *PriceMirror) GetPrice(ctx context.Context, source, symbol string) (domain.PriceObservation, error) {
	fields, err := m.rdb.HGetAll(ctx, priceKey(source, symbol)).Result()
	if err != nil {
		return domain.PriceObservation{}, fmt.Errorf("redis: get price %s/%s: %w", source, symbol, err)
	}
	return decodePriceHash(source, symbol, fields)
}

func decodePriceHash(source, symbol string, fields map[string]string) (domain.PriceObservation, error) {
	if len(fields) == 0 {
		return domain.PriceObservation{}, fmt.Errorf("redis: price %s/%s: %w", source, symbol, domain.ErrNotFound)
	}
	v, err := decimal.NewFromString(fields["price"])
	if err != nil {
		return domain.PriceObservation{}, fmt.Errorf("redis: parse price %s/%s: %w", source, symbol, err)
	}
	ns, err := strconv.ParseInt(fields["ts"], 10, 64)
	if err != nil {
		return domain.PriceObservation{}, fmt.Errorf("redis: parse ts %s/%s: %w", source, symbol, err)
	}
	return domain.PriceObservation{
		Symbol:     symbol,
		Value:      v,
		Source:     source,
		ObservedAt: time.Unix(0, ns),
	}, nil
}

var _ domain.PriceMirror = (*PriceMirror)(nil)
