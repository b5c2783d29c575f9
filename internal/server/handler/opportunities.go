package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// OpportunityView is the in-memory last-detected view.
type OpportunityView interface {
	Names() []string
	Opportunities() []domain.Opportunity
}

// OpportunityHistory is the persisted opportunity log.
type OpportunityHistory interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error)
	ListBySymbol(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.Opportunity, error)
}

// OpportunityHandler serves the opportunity endpoints. Either dependency
// may be nil; the matching routes then answer 501.
type OpportunityHandler struct {
	view    OpportunityView
	history OpportunityHistory
	logger  *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(view OpportunityView, history OpportunityHistory, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{view: view, history: history, logger: logger}
}

// Current returns the aggregate last-detected view.
// GET /api/opportunities
func (h *OpportunityHandler) Current(w http.ResponseWriter, r *http.Request) {
	if h.view == nil {
		writeError(w, http.StatusNotImplemented, "comparators not running")
		return
	}
	opps := h.view.Opportunities()
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"comparators":   h.view.Names(),
		"opportunities": opps,
	})
}

// Recent returns the newest persisted opportunities.
// GET /api/opportunities/recent?limit=50
func (h *OpportunityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "history store not configured")
		return
	}
	opps, err := h.history.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list recent opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": opps})
}

// BySymbol returns persisted opportunities for one symbol.
// GET /api/opportunities/{symbol}?from=&to=&limit=
func (h *OpportunityHandler) BySymbol(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "history store not configured")
		return
	}
	opts := domain.ListOpts{Limit: parseLimit(r)}
	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		from, to, err := parseRange(r, timeNow())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Since, opts.Until = &from, &to
	}

	symbol := strings.ToUpper(r.PathValue("symbol"))
	opps, err := h.history.ListBySymbol(r.Context(), symbol, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list opportunities by symbol failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "opportunities": opps})
}
