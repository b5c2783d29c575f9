// Package ratelimit implements the fixed one-minute call window shared by
// the polling sources and the notification dispatcher.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultPeriod is the length of one rate window.
const DefaultPeriod = time.Minute

// Window counts calls in a fixed window and refuses calls once the limit
// is reached until the window elapses. It never blocks.
type Window struct {
	mu     sync.Mutex
	limit  int
	period time.Duration
	now    func() time.Time

	start time.Time
	count int
}

// Option configures a Window.
type Option func(*Window)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

// WithPeriod overrides the one-minute window length.
func WithPeriod(d time.Duration) Option {
	return func(w *Window) { w.period = d }
}

// NewWindow returns a window admitting at most limit calls per period.
func NewWindow(limit int, opts ...Option) *Window {
	w := &Window{
		limit:  limit,
		period: DefaultPeriod,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.start = w.now()
	return w
}

// TryAcquire consumes one unit if the current window has room. A denied
// call does not change the count.
func (w *Window) TryAcquire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.Sub(w.start) >= w.period {
		w.start = now
		w.count = 0
	}
	if w.count >= w.limit {
		return false
	}
	w.count++
	return true
}

// Count returns the number of units consumed in the current window.
func (w *Window) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Limit returns the configured ceiling.
func (w *Window) Limit() int {
	return w.limit
}
