package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/opinionlabs/settlement-engine/internal/cache/redis"
	"github.com/opinionlabs/settlement-engine/internal/server/handler"
	"github.com/opinionlabs/settlement-engine/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Engine *handler.EngineHandler
}

// Server is the headless HTTP API server for the settlement engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting).
func NewServer(cfg Config, handlers Handlers, limiter *redis.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check. The auth middleware below wraps the whole mux, so this
	// route also needs the API key when one is configured.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market lifecycle.
	mux.HandleFunc("POST /api/markets", handlers.Engine.OpenMarket)
	mux.HandleFunc("GET /api/markets/{externalID}", handlers.Engine.GetMarket)
	mux.HandleFunc("POST /api/markets/{externalID}/stake", handlers.Engine.Stake)
	mux.HandleFunc("POST /api/markets/{externalID}/settle", handlers.Engine.Settle)
	mux.HandleFunc("POST /api/markets/{externalID}/cancel", handlers.Engine.Cancel)
	mux.HandleFunc("POST /api/markets/{externalID}/claim-payout", handlers.Engine.ClaimPayout)
	mux.HandleFunc("POST /api/markets/{externalID}/claim-refund", handlers.Engine.ClaimRefund)
	mux.HandleFunc("GET /api/markets/{externalID}/tickets", handlers.Engine.ListTickets)

	// Build the middleware chain.
	var h http.Handler = mux

	if limiter != nil {
		h = middleware.RateLimit(limiter, 20, time.Second)(h)
	}

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
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
