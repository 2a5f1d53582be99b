package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/untron/untron-v3-engine/internal/api/middleware"
	"github.com/untron/untron-v3-engine/internal/api/rest"
	"github.com/untron/untron-v3-engine/internal/api/shared/executor"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/store"
)

// Config holds the server configuration
type Config struct {
	Debug        bool
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Auth      middleware.AuthConfig
	RateLimit middleware.RateLimitConfig

	// MetricsPath serves Prometheus metrics when set
	MetricsPath string
}

// Server wraps the HTTP server
type Server struct {
	config     Config
	engine     executor.Engine
	store      store.Store
	httpServer *http.Server
}

// New creates a new API server. The store is optional and only backs event history.
func New(cfg Config, engine executor.Engine, store store.Store) *Server {
	return &Server{
		config: cfg,
		engine: engine,
		store:  store,
	}
}

// Router builds the gin router with every middleware and route
func (s *Server) Router() *gin.Engine {
	// Set Gin mode based on debug flag
	if s.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Setup middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.SetupCORS())
	router.Use(middleware.RateLimit(s.config.RateLimit))

	if s.config.MetricsPath != "" {
		router.GET(s.config.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	exec := executor.NewExecutor(s.engine, s.store)
	rest.SetupRoutes(router, rest.NewHandler(exec), s.config.Auth)

	return router
}

// Start initializes and starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	logger.Info("Starting API server",
		zap.String("address", addr),
	)

	// Start server
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down API server")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	return nil
}
