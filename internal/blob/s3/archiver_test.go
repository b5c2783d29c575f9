package s3blob

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

type fakeBlob struct {
	existing  map[string]bool
	puts      map[string]string
	multipart map[string]int
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{existing: map[string]bool{}, puts: map[string]string{}, multipart: map[string]int{}}
}

func (f *fakeBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, _ := io.ReadAll(data)
	f.puts[path] = string(b)
	return nil
}

func (f *fakeBlob) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	b, _ := io.ReadAll(data)
	f.multipart[path] = len(b)
	return nil
}

func (f *fakeBlob) List(context.Context, string) ([]domain.BlobInfo, error) { return nil, nil }

func (f *fakeBlob) Exists(_ context.Context, path string) (bool, error) {
	return f.existing[path], nil
}

type priceRows []domain.PriceObservation

func (p priceRows) ListBefore(context.Context, time.Time, int) ([]domain.PriceObservation, error) {
	return p, nil
}

type oppRows []domain.Opportunity

func (o oppRows) ListBefore(context.Context, time.Time, int) ([]domain.Opportunity, error) {
	return o, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchivePath(t *testing.T) {
	before := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)
	if got, want := archivePath("prices", before), "archive/prices/2025-01.jsonl"; got != want {
		t.Errorf("archivePath = %q, want %q", got, want)
	}
	now := time.Date(2025, 2, 1, 4, 5, 6, 0, time.UTC)
	if got, want := suffixedPath("opportunities", before, now), "archive/opportunities/2025-01-20250201T040506Z.jsonl"; got != want {
		t.Errorf("suffixedPath = %q, want %q", got, want)
	}
}

func TestMarshalJSONL(t *testing.T) {
	buf, err := marshalJSONL([]map[string]string{{"a": "<b>"}, {"c": "d"}})
	if err != nil {
		t.Fatalf("marshalJSONL: %v", err)
	}
	want := "{\"a\":\"<b>\"}\n{\"c\":\"d\"}\n"
	if string(buf) != want {
		t.Errorf("marshalJSONL = %q, want %q", buf, want)
	}
}

func TestArchivePrices(t *testing.T) {
	blob := newFakeBlob()
	rows := priceRows{
		{Symbol: "BTC_USDT", Value: decimal.RequireFromString("64000.5"), Source: domain.SourceMEXC, ObservedAt: time.Unix(0, 0).UTC()},
		{Symbol: "ETH_USDT", Value: decimal.RequireFromString("3100"), Source: domain.SourceMEXC, ObservedAt: time.Unix(0, 0).UTC()},
	}
	a := NewArchiver(blob, blob, rows, oppRows{}, 0, testLogger())

	before := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	n, err := a.ArchivePrices(context.Background(), before)
	if err != nil {
		t.Fatalf("ArchivePrices: %v", err)
	}
	if n != 2 {
		t.Errorf("archived = %d, want 2", n)
	}
	body, ok := blob.puts["archive/prices/2025-03.jsonl"]
	if !ok {
		t.Fatalf("no object at monthly path, got %v", blob.puts)
	}
	if lines := strings.Count(body, "\n"); lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
	if !strings.Contains(body, `"value":"64000.5"`) {
		t.Errorf("body missing decimal value: %s", body)
	}
}

func TestArchiveDoesNotOverwrite(t *testing.T) {
	blob := newFakeBlob()
	blob.existing["archive/opportunities/2025-03.jsonl"] = true
	a := NewArchiver(blob, blob, priceRows{}, oppRows{{ID: "x", Symbol: "BTC_USDT"}}, 0, testLogger())
	a.now = func() time.Time { return time.Date(2025, 3, 2, 1, 2, 3, 0, time.UTC) }

	before := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := a.ArchiveOpportunities(context.Background(), before); err != nil {
		t.Fatalf("ArchiveOpportunities: %v", err)
	}
	if _, ok := blob.puts["archive/opportunities/2025-03.jsonl"]; ok {
		t.Error("existing monthly object was overwritten")
	}
	if _, ok := blob.puts["archive/opportunities/2025-03-20250302T010203Z.jsonl"]; !ok {
		t.Errorf("suffixed object missing, got %v", blob.puts)
	}
}

func TestArchiveEmptyUploadsNothing(t *testing.T) {
	blob := newFakeBlob()
	a := NewArchiver(blob, blob, priceRows{}, oppRows{}, 0, testLogger())
	n, err := a.ArchivePrices(context.Background(), time.Now())
	if err != nil || n != 0 {
		t.Errorf("ArchivePrices = %d, %v, want 0, nil", n, err)
	}
	if len(blob.puts)+len(blob.multipart) != 0 {
		t.Error("empty archive uploaded an object")
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		ssl  bool
		want string
	}{
		{"minio:9000", false, "http://minio:9000"},
		{"e2.example.com", true, "https://e2.example.com"},
		{"https://s3.example.com", false, "https://s3.example.com"},
	}
	for _, tt := range tests {
		if got := normaliseEndpoint(tt.in, tt.ssl); got != tt.want {
			t.Errorf("normaliseEndpoint(%q, %v) = %q, want %q", tt.in, tt.ssl, got, tt.want)
		}
	}
}
