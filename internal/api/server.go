package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	mw "github.com/tphakala/drawpad/internal/api/middleware"
	"github.com/tphakala/drawpad/internal/conf"
	"github.com/tphakala/drawpad/internal/docstore"
	"github.com/tphakala/drawpad/internal/logger"
	"github.com/tphakala/drawpad/internal/observability"
	"github.com/tphakala/drawpad/internal/observability/metrics"
)

// Server is the HTTP server exposing the document store.
// It manages the Echo framework instance, middleware, and all HTTP routes.
type Server struct {
	// Core components
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger

	// Dependencies
	store       *docstore.Store
	metrics     *observability.Metrics
	storageRoot string
	healthCache *cache.Cache

	controller *Controller

	// Lifecycle management
	startTime time.Time
	serveErr  chan error
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithStore sets the document store served by the API. Required.
func WithStore(store *docstore.Store) ServerOption {
	return func(s *Server) {
		s.store = store
	}
}

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithStorageRoot sets the directory whose disk usage /health reports.
func WithStorageRoot(root string) ServerOption {
	return func(s *Server) {
		s.storageRoot = root
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:      config,
		settings:    settings,
		startTime:   time.Now(),
		serveErr:    make(chan error, 1),
		healthCache: cache.New(healthCacheTTL, 2*healthCacheTTL),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = GetLogger()
	}
	if s.store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if s.storageRoot == "" && settings != nil {
		s.storageRoot = settings.Storage.Root
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.Bool("metrics", config.MetricsEnabled && s.metrics != nil),
		logger.Float64("rate_limit", config.RateLimit),
		logger.Bool("debug", config.Debug))

	return s, nil
}

func (s *Server) httpMetrics() *metrics.HTTPMetrics {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.HTTP
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewRequestLogger(s.log.Module("http")))
	s.echo.Use(mw.NewSecureHeaders())
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))

	if m := s.httpMetrics(); m != nil {
		s.echo.Use(mw.NewMetrics(m))
	}

	if s.config.RateLimit > 0 {
		var onLimit func()
		if m := s.httpMetrics(); m != nil {
			onLimit = m.RecordRateLimited
		}
		s.echo.Use(mw.NewMutationRateLimiter(s.config.RateLimit, onLimit))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	if s.config.MetricsEnabled && s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	s.controller = NewController(s.store, s.httpMetrics(), s.log)
	s.controller.RegisterRoutes(s.echo.Group("/api"))

	s.log.Debug("Routes initialized", logger.Int("routes", len(s.echo.Routes())))
}

// Start begins serving HTTP requests in a background goroutine and returns
// immediately. Use Shutdown to stop the server.
func (s *Server) Start() {
	go func() {
		err := s.startBlocking()
		if err != nil {
			s.log.Error("Server error", logger.Error(err))
		}
		s.serveErr <- err
	}()

	s.log.Info("HTTP server starting", logger.String("address", s.config.Address()))
}

// startBlocking begins serving HTTP requests and blocks until the server is shut down.
func (s *Server) startBlocking() error {
	err := s.echo.Start(s.config.Address())
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartWithGracefulShutdown starts the server and blocks until SIGINT/SIGTERM,
// ctx cancellation or a listener failure, then shuts down gracefully.
func (s *Server) StartWithGracefulShutdown(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.Start()

	select {
	case <-ctx.Done():
		s.log.Info("Shutdown signal received, initiating graceful shutdown")
	case err := <-s.serveErr:
		// Listener failed before any signal
		return err
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("Error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.log.Info("Server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
// This is useful for testing or advanced configuration.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Config returns the effective server configuration.
func (s *Server) Config() *Config {
	return s.config
}
