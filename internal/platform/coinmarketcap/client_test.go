package coinmarketcap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(server.URL, "secret", []string{"BTC_USDT", "ETH_USDT", "BTC_USDT"}, time.Second, logger)
}

func TestFetchParsesQuotes(t *testing.T) {
	var gotQuery, gotKey string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("symbol") + "|" + r.URL.Query().Get("convert")
		gotKey = r.Header.Get("X-CMC_PRO_API_KEY")
		_, _ = io.WriteString(w, `{
			"status": {"error_code": 0},
			"data": {
				"BTC": {"symbol": "BTC", "quote": {"USD": {"price": 43000.12345}}},
				"ETH": {"symbol": "ETH", "quote": {"USD": {}}}
			}
		}`)
	})

	batches := c.Batches()
	if len(batches) != 1 || batches[0] != "BTC,ETH" {
		t.Fatalf("Batches = %v, want [BTC,ETH]", batches)
	}

	got, err := c.Fetch(context.Background(), batches[0])
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotQuery != "BTC,ETH|USD" {
		t.Errorf("query = %q, want BTC,ETH|USD", gotQuery)
	}
	if gotKey != "secret" {
		t.Errorf("api key header = %q, want secret", gotKey)
	}
	if len(got) != 1 {
		t.Fatalf("observations = %d, want 1 (ETH has no price)", len(got))
	}
	if got[0].Symbol != "BTC_USDT" || got[0].Value.String() != "43000.12345" {
		t.Errorf("observation = %s %s, want BTC_USDT 43000.12345", got[0].Symbol, got[0].Value)
	}
	if got[0].Source != domain.SourceCoinMarketCap {
		t.Errorf("Source = %q", got[0].Source)
	}
}

func TestFetchErrorEnvelopeIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status": {"error_code": 1002, "error_message": "API key missing."}}`)
	})
	_, err := c.Fetch(context.Background(), "BTC")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
	if retry.IsTransient(err) {
		t.Error("error envelope classified as transient")
	}
}

func TestFetchEmptyDataYieldsNothing(t *testing.T) {
	cases := map[string]string{
		"missing": `{"status": {"error_code": 0}}`,
		"null":    `{"status": {"error_code": 0}, "data": null}`,
		"empty":   `{"status": {"error_code": 0}, "data": {}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			got, err := c.Fetch(context.Background(), "BTC")
			if err != nil {
				t.Fatalf("Fetch err = %v, want nil", err)
			}
			if len(got) != 0 {
				t.Errorf("observations = %d, want 0", len(got))
			}
		})
	}
}

func TestFetchNonObjectDataIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status": {"error_code": 0}, "data": []}`)
	})
	if _, err := c.Fetch(context.Background(), "BTC"); !errors.Is(err, domain.ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestFetchThrottledIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.Fetch(context.Background(), "BTC")
	var se *retry.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want 429 StatusError", err)
	}
	if !retry.IsTransient(err) {
		t.Error("429 not classified as transient")
	}
}
