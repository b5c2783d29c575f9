// Package server exposes the read-only HTTP and WebSocket API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/server/handler"
	"github.com/alanyoungcy/arbwatch/internal/server/middleware"
	"github.com/alanyoungcy/arbwatch/internal/server/ws"
)

// Config holds the HTTP server settings.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKeyHash is a bcrypt hash; empty disables authentication.
	APIKeyHash      string
	RateLimit       int
	RateWindow      time.Duration
	ShutdownTimeout time.Duration
}

// Handlers groups the route handlers. Nil entries leave their routes
// unregistered.
type Handlers struct {
	Health        *handler.HealthHandler
	Status        *handler.StatusHandler
	Prices        *handler.PriceHandler
	Opportunities *handler.OpportunityHandler
	Analytics     *handler.AnalyticsHandler
	Archives      *handler.ArchiveHandler
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	cfg        Config
	logger     *slog.Logger
}

// NewServer registers routes and wraps them in CORS, logging, auth and,
// when limiter is non-nil, rate limiting.
func NewServer(cfg Config, h Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	if h.Health != nil {
		mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	}
	if h.Status != nil {
		mux.HandleFunc("GET /api/status", h.Status.GetStatus)
	}
	if h.Prices != nil {
		mux.HandleFunc("GET /api/prices", h.Prices.ListAll)
		mux.HandleFunc("GET /api/prices/{source}", h.Prices.BySource)
		mux.HandleFunc("GET /api/prices/{source}/{symbol}", h.Prices.Get)
	}
	if h.Opportunities != nil {
		mux.HandleFunc("GET /api/opportunities", h.Opportunities.Current)
		mux.HandleFunc("GET /api/opportunities/recent", h.Opportunities.Recent)
		mux.HandleFunc("GET /api/opportunities/{symbol}", h.Opportunities.BySymbol)
	}
	if h.Analytics != nil {
		mux.HandleFunc("GET /api/analytics/prices/{symbol}", h.Analytics.History)
		mux.HandleFunc("GET /api/analytics/prices/{symbol}/latest", h.Analytics.Latest)
		mux.HandleFunc("GET /api/analytics/prices/{symbol}/average", h.Analytics.Average)
	}
	if h.Archives != nil {
		mux.HandleFunc("GET /api/archives", h.Archives.List)
	}
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var chain http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		chain = middleware.RateLimit(limiter, cfg.RateLimit, window, logger)(chain)
	}
	chain = middleware.Auth(cfg.APIKeyHash, "/api/health")(chain)
	chain = middleware.Logging(logger)(chain)
	chain = middleware.CORS(cfg.CORSOrigins)(chain)

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           chain,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("server: listen: %w", err)
			return
		}
		errc <- nil
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
