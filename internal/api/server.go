// Package api exposes the registry and the check operations over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/engine"
	"github.com/Veraticus/contract-sentinel/internal/session"
)

// Config holds configuration for the HTTP API.
type Config struct {
	Addr string `mapstructure:"addr"`
	// JWTSecret enables bearer authentication on /api when set.
	JWTSecret       string        `mapstructure:"jwt_secret"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
}

// DefaultConfig returns the default API configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
		SessionTTL:      session.DefaultTTL,
	}
}

// Server wires the orchestrator and the preview sessions to HTTP handlers.
type Server struct {
	orch     *engine.Orchestrator
	sessions *session.Store
	clock    common.Clock
	logger   *slog.Logger
	config   Config
}

// NewServer creates a server.
func NewServer(orch *engine.Orchestrator, sessions *session.Store, clock common.Clock, config Config, logger *slog.Logger) *Server {
	if clock == nil {
		clock = common.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		orch:     orch,
		sessions: sessions,
		clock:    clock,
		logger:   logger,
		config:   config,
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery(s.logger))
	router.Use(RequestLogger(s.logger))

	router.GET("/health", s.health)

	api := router.Group("/api")
	if s.config.JWTSecret != "" {
		api.Use(Auth(s.config.JWTSecret))
	}
	{
		api.GET("/contracts", s.listContracts)
		api.POST("/contracts", s.registerContract)
		api.GET("/contracts/:id", s.getContract)
		api.DELETE("/contracts/:id", s.removeContract)
		api.GET("/contracts/:id/checks", s.listChecks)
		api.GET("/contracts/:id/snapshots", s.listSnapshots)
		api.POST("/contracts/:id/check", s.checkContract)
		api.POST("/sweep", s.sweep)
		api.POST("/preview", s.preview)
		api.GET("/sessions/:id", s.getSession)
		api.POST("/sessions/:id/confirm", s.confirmSession)
	}
	return router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// Checks can block on slow collaborator fetches.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
