// Package server ties the HTTP surface together: routing, the middleware
// stack, and the server lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nlowel/scribe/config"
	"github.com/nlowel/scribe/server/handlers"
	"github.com/nlowel/scribe/server/metrics"
	"github.com/nlowel/scribe/server/middleware"
	"go.uber.org/zap"
)

// Router wires the middleware stack and routes. The queue middleware is
// applied only to the process endpoint so health checks and metrics scrapes
// never compete with processing traffic for admission.
type Router struct {
	router chi.Router
	queue  *middleware.QueueMiddleware
}

// RouterConfig collects everything the router needs.
type RouterConfig struct {
	Process http.Handler
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Queue   config.QueueConfig
}

// NewRouter creates the router with the standard middleware stack.
func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTimer)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.Logging(logger))
	if cfg.Metrics != nil {
		r.Use(middleware.PrometheusMetrics(cfg.Metrics))
	}

	router := &Router{router: r}

	process := cfg.Process
	if cfg.Queue.Enabled {
		router.queue = middleware.NewQueueMiddleware(middleware.QueueConfig{
			InitialSize: cfg.Queue.InitialSize,
			Metrics:     cfg.Metrics,
		})
		process = router.queue.Handler(process)
	}

	r.Post("/api/research/process", process.ServeHTTP)
	r.Get("/health", handlers.HealthHandler().ServeHTTP)
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Handler().ServeHTTP)
	}

	return router
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *Router
	logger     *zap.Logger
	shutdown   config.ServerConfig
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig, router *Router, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Port),
			Handler:        router,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
		router:   router,
		logger:   logger,
		shutdown: cfg,
	}
}

// Start starts the server and blocks until ctx is cancelled or the listener
// fails. On cancellation it drains in-flight requests within the configured
// shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("Server started", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown.ShutdownTimeout)
		defer cancel()

		s.logger.Info("Shutting down server")
		if s.router.queue != nil {
			if err := s.router.queue.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn("Queue shutdown incomplete", zap.Error(err))
			}
		}
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}
