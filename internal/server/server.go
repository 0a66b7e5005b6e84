package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/fxbot/internal/domain"
	"github.com/alanyoungcy/fxbot/internal/server/handler"
	"github.com/alanyoungcy/fxbot/internal/server/middleware"
	"github.com/alanyoungcy/fxbot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // static key; empty disables it
	RateLimit   int    // requests per minute per client IP; 0 disables
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Auth      *handler.AuthHandler
	Market    *handler.MarketHandler
	Trades    *handler.TradeHandler
	Positions *handler.PositionHandler
	Stats     *handler.StatsHandler
	Reconcile *handler.ReconcileHandler
}

// publicPaths are reachable without a token.
var publicPaths = map[string]bool{
	"/api/login":  true,
	"/api/health": true,
}

// Server is the headless HTTP + WebSocket API for the trading engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, rate limiting, auth) and attaches the WebSocket
// hub. validateSession accepts session tokens issued by the login endpoint.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, validateSession func(string) bool, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("POST /api/login", handlers.Auth.Login)

	// Market and account endpoints.
	mux.HandleFunc("GET /api/market-status", handlers.Market.Status)
	mux.HandleFunc("GET /api/price/{instrument}", handlers.Market.Price)
	mux.HandleFunc("GET /api/account", handlers.Market.Account)

	// Trade endpoints.
	mux.HandleFunc("POST /api/trades", handlers.Trades.Place)
	mux.HandleFunc("POST /api/trades/{id}/close", handlers.Trades.Close)

	// Position endpoints.
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListOpen)
	mux.HandleFunc("GET /api/positions/recent", handlers.Positions.RecentClosed)

	// Statistics endpoints.
	mux.HandleFunc("GET /api/stats", handlers.Stats.Statistics)
	mux.HandleFunc("GET /api/stats/pl", handlers.Stats.ProfitLoss)

	// Reconcile trigger.
	mux.HandleFunc("POST /api/reconcile", handlers.Reconcile.Trigger)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	authed := middleware.Auth(cfg.APIKey, validateSession)(h)
	h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			mux.ServeHTTP(w, r)
			return
		}
		authed.ServeHTTP(w, r)
	})

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, time.Minute)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
