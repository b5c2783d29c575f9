package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

var timeNow = time.Now

// PriceHistory is the persisted price log.
type PriceHistory interface {
	ListPrices(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.PriceObservation, error)
	LatestPrice(ctx context.Context, symbol, source string) (domain.PriceObservation, error)
	AveragePrice(ctx context.Context, symbol, source string, from, to time.Time) (decimal.Decimal, error)
}

// AnalyticsHandler serves historical price queries.
type AnalyticsHandler struct {
	store  PriceHistory
	logger *slog.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(store PriceHistory, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{store: store, logger: logger}
}

func sourceParam(r *http.Request) string {
	if s := r.URL.Query().Get("source"); s != "" {
		return s
	}
	return domain.SourceMEXC
}

// History lists observations for a symbol across sources.
// GET /api/analytics/prices/{symbol}?from=&to=&limit=&offset=
func (h *AnalyticsHandler) History(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r, timeNow())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := domain.ListOpts{Limit: parseLimit(r), Since: &from, Until: &to}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Offset = n
		}
	}

	symbol := strings.ToUpper(r.PathValue("symbol"))
	prices, err := h.store.ListPrices(r.Context(), symbol, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list prices failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list prices")
		return
	}
	if prices == nil {
		prices = []domain.PriceObservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"from":   from.Format(time.RFC3339),
		"to":     to.Format(time.RFC3339),
		"prices": prices,
	})
}

// Latest returns the newest stored observation.
// GET /api/analytics/prices/{symbol}/latest?source=MEXC
func (h *AnalyticsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	obs, err := h.store.LatestPrice(r.Context(), symbol, sourceParam(r))
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no price recorded")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: latest price failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read price")
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

// Average returns the mean stored price over a range.
// GET /api/analytics/prices/{symbol}/average?source=&from=&to=
func (h *AnalyticsHandler) Average(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r, timeNow())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	symbol := strings.ToUpper(r.PathValue("symbol"))
	source := sourceParam(r)
	avg, err := h.store.AveragePrice(r.Context(), symbol, source, from, to)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no prices in range")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: average price failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to compute average")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":  symbol,
		"source":  source,
		"from":    from.Format(time.RFC3339),
		"to":      to.Format(time.RFC3339),
		"average": avg,
	})
}
