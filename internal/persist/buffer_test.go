package persist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

type fakeStore struct {
	mu         sync.Mutex
	priceCalls [][]domain.PriceObservation
	oppCalls   [][]domain.Opportunity
	err        error
}

func (s *fakeStore) InsertPrices(_ context.Context, obs []domain.PriceObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priceCalls = append(s.priceCalls, obs)
	return s.err
}

func (s *fakeStore) InsertOpportunities(_ context.Context, opps []domain.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oppCalls = append(s.oppCalls, opps)
	return s.err
}

func (s *fakeStore) priceBatches() [][]domain.PriceObservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]domain.PriceObservation(nil), s.priceCalls...)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func price(i int) domain.PriceObservation {
	return domain.PriceObservation{
		Symbol:     "BTC_USDT",
		Value:      decimal.NewFromInt(int64(100 + i)),
		Source:     domain.SourceMEXC,
		ObservedAt: time.Now(),
	}
}

func TestFlushEmptyIssuesNoWrite(t *testing.T) {
	store := &fakeStore{}
	b := New(store, store, Config{BatchSize: 3}, discard())

	b.Flush(context.Background())

	if len(store.priceCalls) != 0 || len(store.oppCalls) != 0 {
		t.Errorf("writes = %d/%d, want 0/0", len(store.priceCalls), len(store.oppCalls))
	}
}

func TestSizeTriggeredFlushLeavesRemainderPending(t *testing.T) {
	store := &fakeStore{}
	b := New(store, store, Config{BatchSize: 3, FlushInterval: time.Hour}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	// Let the startup flush pass so it does not take the partial batch.
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 5; i++ {
		b.BufferPrice(price(i))
	}

	deadline := time.After(2 * time.Second)
	for len(store.priceBatches()) == 0 {
		select {
		case <-deadline:
			t.Fatal("size-triggered flush never happened")
		case <-time.After(5 * time.Millisecond):
		}
	}

	batches := store.priceBatches()
	if len(batches) != 1 || len(batches[0]) != 3 {
		t.Fatalf("batches = %d (first %d), want one batch of 3", len(batches), len(batches[0]))
	}
	if p, _ := b.Pending(); p != 2 {
		t.Errorf("pending = %d, want 2", p)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
	batches = store.priceBatches()
	if len(batches) != 2 || len(batches[1]) != 2 {
		t.Errorf("shutdown flush did not write the remaining 2: %d batches", len(batches))
	}
}

func TestFlushWritesOpportunities(t *testing.T) {
	store := &fakeStore{}
	b := New(store, store, Config{BatchSize: 10}, discard())

	b.Accept(context.Background(), domain.Opportunity{ID: "a", Symbol: "BTC_USDT"})
	b.Publish(price(1))
	b.Flush(context.Background())

	if len(store.oppCalls) != 1 || store.oppCalls[0][0].ID != "a" {
		t.Errorf("opportunity writes = %v", store.oppCalls)
	}
	if len(store.priceCalls) != 1 {
		t.Errorf("price writes = %d, want 1", len(store.priceCalls))
	}
}

func TestFailedWriteIsDropped(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	b := New(store, nil, Config{BatchSize: 10}, discard())

	b.BufferPrice(price(1))
	b.BufferOpportunity(domain.Opportunity{ID: "ignored"})
	b.Flush(context.Background())

	if p, o := b.Pending(); p != 0 || o != 0 {
		t.Errorf("pending = %d/%d after failed flush, want 0/0", p, o)
	}
	if len(store.priceCalls) != 1 {
		t.Errorf("price writes = %d, want 1", len(store.priceCalls))
	}
	if len(store.oppCalls) != 0 {
		t.Error("opportunity written with persistence disabled")
	}
}
