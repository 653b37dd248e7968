// Package server assembles the router and HTTP server for the pizza board.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/pizzaboard/internal/auth"
	"github.com/vyrodovalexey/pizzaboard/internal/config"
	"github.com/vyrodovalexey/pizzaboard/internal/handler"
	"github.com/vyrodovalexey/pizzaboard/internal/middleware"
)

// Server represents the HTTP server.
type Server struct {
	httpServer    *http.Server
	router        *mux.Router
	config        *config.Config
	logger        *zap.Logger
	surface       *handler.Surface
	authenticator auth.Authenticator
}

// New creates a new Server serving the board through surface. A nil
// authenticator disables authentication.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	board handler.Board,
	surface *handler.Surface,
	authenticator auth.Authenticator,
) (*Server, error) {
	s := &Server{
		router:        mux.NewRouter(),
		config:        cfg,
		logger:        logger,
		surface:       surface,
		authenticator: authenticator,
	}

	s.setupMiddleware()
	if err := s.setupRoutes(board); err != nil {
		return nil, err
	}
	s.setupHTTPServer()

	return s, nil
}

// setupMiddleware configures the middleware chain, outermost first.
func (s *Server) setupMiddleware() {
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		"Authorization",
		auth.APIKeyHeader,
		middleware.RequestIDHeader,
	}

	chain := []middleware.Middleware{
		middleware.Recovery(s.logger),
		middleware.RequestID(),
	}
	if s.config.MetricsEnabled {
		chain = append(chain, middleware.Metrics())
	}
	chain = append(chain,
		middleware.Logging(s.logger),
		middleware.CORS(s.config.AllowedOrigins, allowedMethods, allowedHeaders),
	)
	if s.authenticator != nil {
		chain = append(chain, middleware.Auth(s.authenticator, s.logger))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Chain(chain...)))
}

// setupRoutes configures the page, surface and API routes.
func (s *Server) setupRoutes(board handler.Board) error {
	handler.NewRESTHandler(board, s.logger).RegisterRoutes(s.router)

	pages, err := handler.NewPageHandler(s.surface, s.logger)
	if err != nil {
		return fmt.Errorf("create page handler: %w", err)
	}
	pages.RegisterRoutes(s.router)

	s.surface.RegisterRoutes(s.router)

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	return nil
}

// setupHTTPServer configures the HTTP server.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.Bool("auth_enabled", s.authenticator != nil),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown closes surface connections, then drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	s.surface.CloseAllConnections()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}
