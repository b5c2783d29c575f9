package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// PriceStore implements domain.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *pgxpool.Pool
}

// NewPriceStore creates a PriceStore backed by the given connection pool.
func NewPriceStore(pool *pgxpool.Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Numeric columns are selected as text so decimals survive without a
// float round-trip.
const priceSelectCols = `symbol, source, price::text, observed_at`

func scanPriceRows(rows pgx.Rows) ([]domain.PriceObservation, error) {
	var out []domain.PriceObservation
	for rows.Next() {
		var (
			o     domain.PriceObservation
			price string
		)
		if err := rows.Scan(&o.Symbol, &o.Source, &price, &o.ObservedAt); err != nil {
			return nil, err
		}
		v, err := parseNumeric(price)
		if err != nil {
			return nil, err
		}
		o.Value = v
		out = append(out, o)
	}
	return out, rows.Err()
}

// InsertPrices appends a batch of observations in one round trip.
func (s *PriceStore) InsertPrices(ctx context.Context, obs []domain.PriceObservation) error {
	if len(obs) == 0 {
		return nil
	}

	const query = `
		INSERT INTO price_observations (symbol, source, price, observed_at)
		VALUES ($1, $2, $3::numeric, $4)`

	batch := &pgx.Batch{}
	for _, o := range obs {
		batch.Queue(query, o.Symbol, o.Source, o.Value.String(), o.ObservedAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range obs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert price batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListPrices returns observations for symbol, newest first.
func (s *PriceStore) ListPrices(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.PriceObservation, error) {
	query, args := appendListOpts(
		`SELECT `+priceSelectCols+` FROM price_observations WHERE symbol = $1`,
		[]any{symbol}, "observed_at", opts,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list prices: %w", err)
	}
	defer rows.Close()

	out, err := scanPriceRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan prices: %w", err)
	}
	return out, nil
}

// LatestPrice returns the newest observation of symbol from source.
func (s *PriceStore) LatestPrice(ctx context.Context, symbol, source string) (domain.PriceObservation, error) {
	const query = `SELECT ` + priceSelectCols + ` FROM price_observations
		WHERE symbol = $1 AND source = $2
		ORDER BY observed_at DESC LIMIT 1`

	var (
		o     domain.PriceObservation
		price string
	)
	err := s.pool.QueryRow(ctx, query, symbol, source).Scan(&o.Symbol, &o.Source, &price, &o.ObservedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PriceObservation{}, fmt.Errorf("postgres: latest price %s/%s: %w", symbol, source, domain.ErrNotFound)
	}
	if err != nil {
		return domain.PriceObservation{}, fmt.Errorf("postgres: latest price %s/%s: %w", symbol, source, err)
	}
	if o.Value, err = parseNumeric(price); err != nil {
		return domain.PriceObservation{}, fmt.Errorf("postgres: latest price %s/%s: %w", symbol, source, err)
	}
	return o, nil
}

// AveragePrice returns the mean price of symbol from source in [from, to].
func (s *PriceStore) AveragePrice(ctx context.Context, symbol, source string, from, to time.Time) (decimal.Decimal, error) {
	const query = `SELECT AVG(price)::text FROM price_observations
		WHERE symbol = $1 AND source = $2 AND observed_at BETWEEN $3 AND $4`

	var avg *string
	if err := s.pool.QueryRow(ctx, query, symbol, source, from, to).Scan(&avg); err != nil {
		return decimal.Zero, fmt.Errorf("postgres: average price %s/%s: %w", symbol, source, err)
	}
	if avg == nil {
		return decimal.Zero, fmt.Errorf("postgres: average price %s/%s: %w", symbol, source, domain.ErrNotFound)
	}
	v, err := parseNumeric(*avg)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: average price %s/%s: %w", symbol, source, err)
	}
	return v, nil
}

// ListBefore returns up to limit observations older than before, oldest
// first, for archiving. A limit of zero means no limit.
func (s *PriceStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.PriceObservation, error) {
	query := `SELECT ` + priceSelectCols + ` FROM price_observations WHERE observed_at < $1 ORDER BY observed_at ASC`
	args := []any{before}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list prices before: %w", err)
	}
	defer rows.Close()
	return scanPriceRows(rows)
}

// DeleteBefore removes observations older than before and returns how many.
func (s *PriceStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM price_observations WHERE observed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete prices before: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.PriceStore = (*PriceStore)(nil)
