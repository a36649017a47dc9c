// Package server wires configuration, logging, metrics, and the session
// registry into the HTTP service.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/termhub/internal/api/http"
	"github.com/GriffinCanCode/termhub/internal/api/middleware"
	"github.com/GriffinCanCode/termhub/internal/infrastructure/config"
	"github.com/GriffinCanCode/termhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termhub/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termhub/internal/terminal"
)

// Server wraps the HTTP server and its dependencies. The registry is owned
// here and passed down by reference; there are no ambient singletons.
type Server struct {
	router  *gin.Engine
	httpSrv *http.Server
	manager *terminal.Manager
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		// Bad LOG_LEVEL falls back to the stock configuration.
		logger = logging.NewDefault()
	}

	logger.Info("Initializing termhub server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("log_dir", cfg.Terminal.LogDir),
	)

	metrics := monitoring.NewMetrics()

	termCfg := terminal.DefaultConfig()
	if cfg.Terminal.Shell != "" {
		termCfg.Shell = cfg.Terminal.Shell
	}
	if cfg.Terminal.Cols > 0 {
		termCfg.Cols = cfg.Terminal.Cols
	}
	if cfg.Terminal.Rows > 0 {
		termCfg.Rows = cfg.Terminal.Rows
	}
	termCfg.LogDir = cfg.Terminal.LogDir
	if cfg.Terminal.BufferChunks > 0 {
		termCfg.BufferChunks = cfg.Terminal.BufferChunks
	}
	if cfg.Terminal.Settle > 0 {
		termCfg.Timing.CommandSettle = cfg.Terminal.Settle
	}
	manager := terminal.NewManager(termCfg, logger.Logger).WithMetrics(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := api.NewHandlers(manager, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Session lifecycle
	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions", handlers.ListSessions)
	router.DELETE("/sessions/:id", handlers.KillSession)

	// Session interaction; :id accepts the session id or its name
	router.POST("/sessions/:id/command", handlers.SendCommand)
	router.POST("/sessions/:id/input", handlers.SendInput)
	router.GET("/sessions/:id/output", handlers.GetOutput)
	router.GET("/sessions/:id/history", handlers.GetHistory)
	router.POST("/sessions/:id/resize", handlers.Resize)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		manager: manager,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Router exposes the gin engine, primarily for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Manager exposes the session registry.
func (s *Server) Manager() *terminal.Manager {
	return s.manager
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close gracefully shuts down: drain in-flight requests, then close every
// session so no PTY or reader goroutine outlives the process.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(err))
		}
	}

	s.manager.CleanupAll()

	s.logger.Sync()
	return nil
}
