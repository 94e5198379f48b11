// Package api serves basket index charts, composition snapshots and risk
// metrics over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"basket-index/internal/config"
	"basket-index/internal/index"
	"basket-index/internal/logging"
	"basket-index/internal/models"
)

// Engine computes index results for a request.
type Engine interface {
	Chart(ctx context.Context, req index.Request) (*index.Chart, error)
	Composition(ctx context.Context, req index.Request) ([]models.CompositionRow, error)
	Risk(ctx context.Context, req index.Request) (models.RiskRecord, error)
}

// Invalidator drops cached fundamentals for a ticker set.
type Invalidator interface {
	Invalidate(ctx context.Context, tickers []string) error
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server is the HTTP presentation layer over an Engine.
type Server struct {
	cfg         *config.Config
	engine      Engine
	invalidator Invalidator
	checks      map[string]HealthChecker
	router      *gin.Engine
	httpServer  *http.Server
	metrics     *Metrics
	logger      zerolog.Logger
	now         func() time.Time
	startedAt   time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithInvalidator enables the fundamentals cache invalidation endpoint.
func WithInvalidator(inv Invalidator) Option {
	return func(s *Server) { s.invalidator = inv }
}

// WithHealthCheck adds a named dependency check to /health.
func WithHealthCheck(name string, hc HealthChecker) Option {
	return func(s *Server) { s.checks[name] = hc }
}

// WithClock overrides the clock used for default date ranges.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a server for the configured baskets.
func NewServer(cfg *config.Config, engine Engine, logger zerolog.Logger, opts ...Option) *Server {
	if gin.Mode() == gin.DebugMode && zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		engine:    engine,
		checks:    make(map[string]HealthChecker),
		router:    gin.New(),
		metrics:   NewMetrics(),
		logger:    logging.WithOperation(logger, "http"),
		now:       time.Now,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.logger))
	s.router.Use(corsMiddleware())
	s.router.Use(s.metrics.Middleware())
	s.router.Use(timeoutMiddleware(s.cfg.Server.RequestLimit))

	s.router.GET("/", s.handleHome)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.router.Group("/api")
	{
		baskets := api.Group("/baskets")
		{
			baskets.GET("", s.handleListBaskets)
			baskets.GET("/:name", s.handleGetBasket)
			baskets.GET("/:name/chart", s.handleBasketChart)
			baskets.GET("/:name/composition", s.handleBasketComposition)
			baskets.GET("/:name/risk", s.handleBasketRisk)
			if s.invalidator != nil {
				baskets.DELETE("/:name/fundamentals", s.handleInvalidate)
			}
		}

		adhoc := api.Group("/index")
		{
			adhoc.GET("/chart", s.handleAdhocChart)
			adhoc.GET("/composition", s.handleAdhocComposition)
		}

		api.GET("/timeframes", s.handleTimeframes)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address until Stop is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.Server.Addr).Int("baskets", len(s.cfg.Baskets)).Msg("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

// corsMiddleware allows the separately served dashboard to call the API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Header("Access-Control-Expose-Headers", HeaderAsOf)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger logs each request once it completes.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		if status >= http.StatusInternalServerError {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}

// timeoutMiddleware bounds the request context, and with it every upstream
// fetch the request triggers.
func timeoutMiddleware(limit time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), limit)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
