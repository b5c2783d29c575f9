package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Snapshot is an in-memory price cache.
type Snapshot interface {
	Source() string
	AllLatest() map[string]domain.PriceObservation
}

// PriceHandler serves the live price endpoints. In server-only mode the
// caches are empty and single lookups fall back to the Redis mirror.
type PriceHandler struct {
	caches map[string]Snapshot
	order  []string
	mirror domain.PriceMirror
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler. mirror may be nil.
func NewPriceHandler(mirror domain.PriceMirror, logger *slog.Logger, caches ...Snapshot) *PriceHandler {
	h := &PriceHandler{caches: make(map[string]Snapshot, len(caches)), mirror: mirror, logger: logger}
	for _, c := range caches {
		h.caches[strings.ToLower(c.Source())] = c
		h.order = append(h.order, c.Source())
	}
	return h
}

func sortedObservations(m map[string]domain.PriceObservation) []domain.PriceObservation {
	out := make([]domain.PriceObservation, 0, len(m))
	for _, obs := range m {
		out = append(out, obs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ListAll returns every cache keyed by source.
// GET /api/prices
func (h *PriceHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]domain.PriceObservation, len(h.order))
	for _, src := range h.order {
		out[src] = sortedObservations(h.caches[strings.ToLower(src)].AllLatest())
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}

// BySource returns one cache.
// GET /api/prices/{source}
func (h *PriceHandler) BySource(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caches[strings.ToLower(r.PathValue("source"))]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source": c.Source(),
		"prices": sortedObservations(c.AllLatest()),
	})
}

// Get returns one observation, from memory or the mirror.
// GET /api/prices/{source}/{symbol}
func (h *PriceHandler) Get(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	symbol := strings.ToUpper(r.PathValue("symbol"))
	if c, ok := h.caches[strings.ToLower(source)]; ok {
		if obs, ok := c.AllLatest()[symbol]; ok {
			writeJSON(w, http.StatusOK, obs)
			return
		}
		source = c.Source()
	}
	if h.mirror == nil {
		writeError(w, http.StatusNotFound, "price not found")
		return
	}
	obs, err := h.mirror.GetPrice(r.Context(), source, symbol)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "price not found")
	case err != nil:
		h.logger.ErrorContext(r.Context(), "handler: mirror lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read price")
	default:
		writeJSON(w, http.StatusOK, obs)
	}
}
