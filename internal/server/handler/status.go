package handler

import (
	"net/http"
	"time"
)

// Sized is a price cache that can report its entry count.
type Sized interface {
	Source() string
	Len() int
}

// StatusHandler serves GET /api/status.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	stream    func() string
	caches    []Sized
}

// NewStatusHandler creates a StatusHandler. stream reports the streaming
// source's state and may be nil.
func NewStatusHandler(mode string, startedAt time.Time, stream func() string, caches ...Sized) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: startedAt, stream: stream, caches: caches}
}

// GetStatus reports the run mode, uptime, stream state and cache sizes.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	sizes := make(map[string]int, len(h.caches))
	for _, c := range h.caches {
		sizes[c.Source()] = c.Len()
	}
	stream := "disabled"
	if h.stream != nil {
		stream = h.stream()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"stream_state":   stream,
		"cache_sizes":    sizes,
	})
}
