// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/store-catalog/internal/config"
	"github.com/vyrodovalexey/store-catalog/internal/handler"
	"github.com/vyrodovalexey/store-catalog/internal/middleware"
	"github.com/vyrodovalexey/store-catalog/internal/repository"
)

// Server represents the HTTP server.
type Server struct {
	httpServer  *http.Server
	probeServer *http.Server
	router      *mux.Router
	handler     http.Handler
	config      *config.Config
	logger      *zap.Logger
	restHandler *handler.RESTHandler
	wsHandler   *handler.WebSocketHandler
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *zap.Logger, repo repository.Repository) *Server {
	s := &Server{
		router: mux.NewRouter(),
		config: cfg,
		logger: logger,
	}

	s.setupMiddleware()
	s.setupRoutes(repo)
	s.setupHTTPServer()
	s.setupProbeServer()

	return s
}

// setupMiddleware configures the middleware chain.
func (s *Server) setupMiddleware() {
	allowedOrigins := []string{"*"}
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		middleware.RequestIDHeader,
	}

	// First applied is outermost.
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.BodyLimit(s.config.MaxBodyBytes)))

	// mux only runs router middleware on matched routes, so CORS wraps the
	// router to answer preflight requests for any path.
	s.handler = middleware.CORS(allowedOrigins, allowedMethods, allowedHeaders)(s.router)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes(repo repository.Repository) {
	var events handler.EventPublisher
	if s.config.WebSocketEnabled {
		s.wsHandler = handler.NewWebSocketHandler(s.logger)
		s.wsHandler.RegisterRoutes(s.router)
		events = s.wsHandler
	}

	s.restHandler = handler.NewRESTHandler(repo, s.logger, events)
	s.restHandler.RegisterRoutes(s.router)

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// setupHTTPServer configures the HTTP server.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// setupProbeServer configures the health/readiness listener used by
// orchestrators. A probe port of 0 disables it.
func (s *Server) setupProbeServer() {
	if s.config.ProbePort == 0 {
		return
	}

	probeRouter := mux.NewRouter()
	probeRouter.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.restHandler.RegisterProbeRoutes(probeRouter)
	if s.config.MetricsEnabled {
		probeRouter.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	s.probeServer = &http.Server{
		Addr:              s.config.ProbeAddress(),
		Handler:           probeRouter,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Second,
	}
}

// Start starts the HTTP server and, if configured, the probe server.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	return s.Serve(listener)
}

// Serve accepts API connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("starting server",
		zap.String("address", l.Addr().String()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.Bool("websocket_enabled", s.config.WebSocketEnabled),
	)

	if s.probeServer != nil {
		go s.serveProbes()
	}

	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server serve: %w", err)
	}

	return nil
}

func (s *Server) serveProbes() {
	s.logger.Info("starting probe server", zap.String("address", s.probeServer.Addr))

	if err := s.probeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("probe server failed", zap.Error(err))
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// Hijacked WebSocket connections are not tracked by http.Server.
	if s.wsHandler != nil {
		s.wsHandler.CloseAllConnections()
	}

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if s.probeServer != nil {
		if err := s.probeServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("probe server shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Handler returns the root HTTP handler, the router wrapped in CORS.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ClientCount returns the number of connected change feed clients.
func (s *Server) ClientCount() int {
	if s.wsHandler == nil {
		return 0
	}
	return s.wsHandler.ClientCount()
}
