package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/wire"
)

type chanBus struct {
	chans  map[string]chan []byte
	stream []domain.StreamMessage
}

func newChanBus(channels ...string) *chanBus {
	b := &chanBus{chans: make(map[string]chan []byte)}
	for _, ch := range channels {
		b.chans[ch] = make(chan []byte, 8)
	}
	return b
}

func (b *chanBus) Publish(_ context.Context, ch string, payload []byte) error {
	b.chans[ch] <- payload
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, ch string) (<-chan []byte, error) {
	return b.chans[ch], nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamRead(_ context.Context, _ string, _ string, count int) ([]domain.StreamMessage, error) {
	if count < len(b.stream) {
		return b.stream[:count], nil
	}
	return b.stream, nil
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(ts.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return m
}

func TestHubRelaysBusMessages(t *testing.T) {
	bus := newChanBus(DefaultChannels...)
	hub := NewHub(bus, "full", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	if msg := readJSON(t, conn); msg["type"] != "status" {
		t.Fatalf("first message = %v, want status", msg)
	}

	_ = bus.Publish(ctx, wire.ChannelOpportunities, []byte(`{"type":"opportunity","payload":{}}`))
	if msg := readJSON(t, conn); msg["type"] != wire.TypeOpportunity {
		t.Errorf("relayed = %v, want opportunity", msg)
	}
}

func TestHubUnsubscribe(t *testing.T) {
	bus := newChanBus(DefaultChannels...)
	hub := NewHub(bus, "full", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	readJSON(t, conn)

	ctrl, _ := json.Marshal(controlMsg{Action: "unsubscribe", Channels: []string{wire.ChannelPrices}})
	if err := conn.WriteMessage(websocket.TextMessage, ctrl); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Give the read pump time to apply the control frame.
	time.Sleep(100 * time.Millisecond)

	_ = bus.Publish(ctx, wire.ChannelPrices, []byte(`{"type":"price"}`))
	_ = bus.Publish(ctx, wire.ChannelOpportunities, []byte(`{"type":"opportunity"}`))
	if msg := readJSON(t, conn); msg["type"] != wire.TypeOpportunity {
		t.Errorf("got %v, want only the opportunity", msg)
	}
}

func TestHubReplaysStream(t *testing.T) {
	payload, err := wire.MarshalOpportunity(domain.Opportunity{
		ID:                "opp-1",
		Symbol:            "BTC_USDT",
		PrimarySource:     domain.SourceMEXC,
		SecondarySource:   domain.SourceDexScreener,
		PrimaryValue:      decimal.RequireFromString("101"),
		SecondaryValue:    decimal.RequireFromString("100"),
		DivergencePercent: decimal.RequireFromString("1"),
		DetectedAt:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("MarshalOpportunity: %v", err)
	}
	bus := newChanBus(DefaultChannels...)
	bus.stream = []domain.StreamMessage{
		{ID: "1-0", Payload: []byte("not protobuf \xff")},
		{ID: "2-0", Payload: payload},
	}
	hub := NewHub(bus, "full", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	readJSON(t, conn)

	ctrl, _ := json.Marshal(controlMsg{Action: "replay", Since: "0"})
	if err := conn.WriteMessage(websocket.TextMessage, ctrl); err != nil {
		t.Fatalf("write: %v", err)
	}

	msg := readJSON(t, conn)
	if msg["type"] != wire.TypeReplay || msg["id"] != "2-0" {
		t.Fatalf("replayed = %v, want replay of 2-0", msg)
	}
	opp, _ := msg["payload"].(map[string]any)
	if opp["symbol"] != "BTC_USDT" || opp["id"] != "opp-1" {
		t.Errorf("payload = %v", opp)
	}
}
