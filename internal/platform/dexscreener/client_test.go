package dexscreener

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
)

const (
	cakeAddr = "0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82"
	xvsAddr  = "0xcF6BB5389c92Bdda8a3747Ddb454cB7a64626C63"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	tokens := map[string][]Token{
		"bsc": {
			{Symbol: "CAKE", Address: cakeAddr},
			{Symbol: "XVS", Address: xvsAddr},
		},
		"ethereum": {},
	}
	return NewClient(server.URL, tokens, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchPicksDeepestPairPerToken(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `[
			{"chainId":"bsc","pairAddress":"p1","baseToken":{"address":"`+cakeAddr+`","symbol":"Cake"},"priceUsd":"2.51","liquidity":{"usd":1000}},
			{"chainId":"bsc","pairAddress":"p2","baseToken":{"address":"`+cakeAddr+`","symbol":"Cake"},"priceUsd":"2.49","liquidity":{"usd":900000}},
			{"chainId":"bsc","pairAddress":"p3","baseToken":{"address":"0xdead","symbol":"WBNB"},"quoteToken":{"address":"`+xvsAddr+`"},"priceUsd":"600"},
			{"chainId":"bsc","pairAddress":"p4","baseToken":{"address":"`+xvsAddr+`","symbol":"XVS"}}
		]`)
	})

	if b := c.Batches(); len(b) != 1 || b[0] != "bsc" {
		t.Fatalf("Batches = %v, want [bsc]", b)
	}

	got, err := c.Fetch(context.Background(), "bsc")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	wantPath := "/tokens/v1/bsc/" + cakeAddr + "," + xvsAddr
	if gotPath != wantPath {
		t.Errorf("path = %q, want %q", gotPath, wantPath)
	}
	if len(got) != 1 {
		t.Fatalf("observations = %d, want 1", len(got))
	}
	if got[0].Symbol != "CAKE_USDT" || got[0].Value.String() != "2.49" {
		t.Errorf("observation = %s %s, want CAKE_USDT 2.49", got[0].Symbol, got[0].Value)
	}
	if got[0].Source != domain.SourceDexScreener {
		t.Errorf("Source = %q", got[0].Source)
	}
}

func TestFetchNonArrayIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"schemaVersion":"1.0.0","pairs":null}`)
	})
	if _, err := c.Fetch(context.Background(), "bsc"); !errors.Is(err, domain.ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestFetchEmptyArrayYieldsNothing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	got, err := c.Fetch(context.Background(), "bsc")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("observations = %d, want 0", len(got))
	}
}
