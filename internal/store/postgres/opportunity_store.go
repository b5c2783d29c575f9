package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id::text, symbol, primary_source, secondary_source,
	primary_price::text, secondary_price::text, divergence_pct::text, detected_at`

func scanOpportunityRows(rows pgx.Rows) ([]domain.Opportunity, error) {
	var out []domain.Opportunity
	for rows.Next() {
		var (
			o                 domain.Opportunity
			prim, sec, divPct string
		)
		if err := rows.Scan(
			&o.ID, &o.Symbol, &o.PrimarySource, &o.SecondarySource,
			&prim, &sec, &divPct, &o.DetectedAt,
		); err != nil {
			return nil, err
		}
		var err error
		if o.PrimaryValue, err = parseNumeric(prim); err != nil {
			return nil, err
		}
		if o.SecondaryValue, err = parseNumeric(sec); err != nil {
			return nil, err
		}
		if o.DivergencePercent, err = parseNumeric(divPct); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// InsertOpportunities appends a batch of opportunities. Rows whose ID is
// already stored are skipped.
func (s *OpportunityStore) InsertOpportunities(ctx context.Context, opps []domain.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	const query = `
		INSERT INTO arbitrage_opportunities (
			id, symbol, primary_source, secondary_source,
			primary_price, secondary_price, divergence_pct, detected_at
		) VALUES ($1::uuid, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8)
		ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, o := range opps {
		batch.Queue(query,
			o.ID, o.Symbol, o.PrimarySource, o.SecondarySource,
			o.PrimaryValue.String(), o.SecondaryValue.String(), o.DivergencePercent.String(),
			o.DetectedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range opps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert opportunity batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListRecent returns the most recently detected opportunities.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + oppSelectCols + ` FROM arbitrage_opportunities ORDER BY detected_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	out, err := scanOpportunityRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan opportunities: %w", err)
	}
	return out, nil
}

// ListBySymbol returns opportunities for symbol, newest first.
func (s *OpportunityStore) ListBySymbol(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.Opportunity, error) {
	query, args := appendListOpts(
		`SELECT `+oppSelectCols+` FROM arbitrage_opportunities WHERE symbol = $1`,
		[]any{symbol}, "detected_at", opts,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities by symbol: %w", err)
	}
	defer rows.Close()

	out, err := scanOpportunityRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan opportunities: %w", err)
	}
	return out, nil
}

// ListBefore returns up to limit opportunities older than before, oldest
// first. A limit of zero means no limit.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM arbitrage_opportunities WHERE detected_at < $1 ORDER BY detected_at ASC`
	args := []any{before}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before: %w", err)
	}
	defer rows.Close()
	return scanOpportunityRows(rows)
}

// DeleteBefore removes opportunities older than before and returns how many.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM arbitrage_opportunities WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
