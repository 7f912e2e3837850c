// Package rest provides the HTTP interface of the slide server: the
// generation API, the real-time edit channel and operational endpoints.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/FreePeak/smart-slides/internal/domain"
	"github.com/FreePeak/smart-slides/internal/infrastructure/logging"
	"github.com/FreePeak/smart-slides/internal/infrastructure/metrics"
	"github.com/FreePeak/smart-slides/internal/infrastructure/server"
)

// SlideGenerator produces a slide deck from a prompt.
type SlideGenerator interface {
	Generate(ctx context.Context, prompt string) (domain.Deck, error)
}

// Config contains configuration for the Server.
type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	AllowedOrigins    []string
	WebSocket         server.WebSocketOptions
	SendTimeout       time.Duration
	Generator         SlideGenerator
	Logger            *logging.Logger
}

// Server is the HTTP server hosting every endpoint.
type Server struct {
	httpServer *http.Server
	generator  SlideGenerator
	registry   *server.ConnectionRegistry
	logger     *logging.Logger

	// realtimeCtx outlives individual requests; cancelling it closes every
	// WebSocket with 1001.
	realtimeCtx    context.Context
	cancelRealtime context.CancelFunc
}

// NewServer wires the registry, broadcaster, router and HTTP routes.
func NewServer(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	registry := server.NewConnectionRegistry(server.WithActiveGauge(metrics.ConnectionsActive))
	broadcaster := server.NewBroadcaster(registry, logger.Named("broadcast"), server.WithSendTimeout(config.SendTimeout))
	router := server.NewRouter(registry, broadcaster, logger.Named("router"))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		generator:      config.Generator,
		registry:       registry,
		logger:         logger,
		realtimeCtx:    ctx,
		cancelRealtime: cancel,
	}

	wsHandler := server.NewWebSocketHandler(ctx, router, logger.Named("websocket"), server.WebSocketHandlerConfig{
		AllowedOrigins: config.AllowedOrigins,
		Options:        config.WebSocket,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/generate-slides", s.handleGenerateSlides)
	mux.Handle("GET /ws/chat/{"+server.ClientIDParam+"}", wsHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	handler := chain(mux,
		requestIDMiddleware,
		tracingMiddleware("smart-slides"),
		loggingMiddleware(logger.Named("http")),
		corsMiddleware(config.AllowedOrigins),
		metricsMiddleware,
	)

	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	return s
}

// Handler returns the root HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Registry returns the live connection registry.
func (s *Server) Registry() *server.ConnectionRegistry {
	return s.registry
}

// Start listens on the configured address and blocks until the server stops.
// It returns nil after a graceful Stop.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", logging.Fields{
		"addr":      s.httpServer.Addr,
		"endpoints": []string{"/api/status", "/api/generate-slides", "/ws/chat/{client_id}", "/metrics"},
	})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Serve accepts connections on l. It is Start for a listener the caller owns.
func (s *Server) Serve(l net.Listener) error {
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop stops accepting requests, closes every real-time connection with
// 1001 and waits for in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server", logging.Fields{"connections": s.registry.Count()})

	// Hijacked WebSocket connections are not tracked by Shutdown.
	s.cancelRealtime()
	err := s.httpServer.Shutdown(ctx)
	err = multierr.Append(err, s.registry.CloseAll(domain.CloseGoingAway, "server shutting down"))
	return err
}
