package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

const contentTypeJSONL = "application/x-ndjson"

// DefaultMaxRows caps how many rows a single archive run reads per kind.
const DefaultMaxRows = 500_000

// PriceArchiveSource is the slice of the price store the archiver reads.
type PriceArchiveSource interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.PriceObservation, error)
}

// OpportunityArchiveSource is the slice of the opportunity store the
// archiver reads.
type OpportunityArchiveSource interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.Opportunity, error)
}

var _ domain.Archiver = (*Archiver)(nil)

// Archiver copies rows older than a cutoff into monthly JSONL objects.
// It never deletes rows; pruning is the caller's decision once the upload
// succeeded.
type Archiver struct {
	writer  domain.BlobWriter
	reader  domain.BlobReader
	prices  PriceArchiveSource
	opps    OpportunityArchiveSource
	maxRows int
	now     func() time.Time
	logger  *slog.Logger
}

// NewArchiver wires an Archiver. maxRows <= 0 selects DefaultMaxRows.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	prices PriceArchiveSource,
	opps OpportunityArchiveSource,
	maxRows int,
	logger *slog.Logger,
) *Archiver {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Archiver{
		writer:  writer,
		reader:  reader,
		prices:  prices,
		opps:    opps,
		maxRows: maxRows,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// ArchivePrices uploads observations older than before to
// archive/prices/YYYY-MM.jsonl and returns how many were written.
func (a *Archiver) ArchivePrices(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.prices.ListBefore(ctx, before, a.maxRows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive prices query: %w", err)
	}
	return archiveRows(ctx, a, "prices", before, rows)
}

// ArchiveOpportunities uploads opportunities older than before to
// archive/opportunities/YYYY-MM.jsonl.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.opps.ListBefore(ctx, before, a.maxRows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	return archiveRows(ctx, a, "opportunities", before, rows)
}

func archiveRows[T any](ctx context.Context, a *Archiver, kind string, before time.Time, rows []T) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	buf, err := marshalJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path := archivePath(kind, before)
	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", kind, err)
	}
	if exists {
		path = suffixedPath(kind, before, a.now())
	}

	if int64(len(buf)) > MinPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), MinPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSONL)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	a.logger.Info("archive uploaded",
		slog.String("kind", kind),
		slog.String("path", path),
		slog.Int("rows", len(rows)),
		slog.Int("bytes", len(buf)),
		slog.String("before", before.UTC().Format(time.RFC3339)),
	)
	return int64(len(rows)), nil
}

// archivePath partitions archives by the cutoff's month:
//
//	archive/prices/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}

// suffixedPath is used when the monthly object already exists.
func suffixedPath(kind string, before, now time.Time) string {
	return fmt.Sprintf("archive/%s/%s-%s.jsonl", kind,
		before.UTC().Format("2006-01"), now.UTC().Format("20060102T150405Z"))
}

// marshalJSONL encodes one compact JSON document per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
