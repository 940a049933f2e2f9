// Package api is the operator HTTP API: health probes, metrics, the
// session cache, reloads, backups and, with the standalone host, player
// simulation.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/api/auth"
	"github.com/marmos91/authkeep/pkg/api/handlers"
	"github.com/marmos91/authkeep/pkg/config"
)

// Server provides an HTTP server for the operator API.
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	config       config.APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a new API HTTP server in a stopped state. roster may be
// nil when the host is not the standalone host. When cfg.JWTSecret is set
// the /api/v1 endpoints require a bearer token.
func NewServer(cfg config.APIConfig, runtime handlers.Runtime, roster handlers.Roster) (*Server, error) {
	var jwtService *auth.JWTService
	if cfg.JWTSecret != "" {
		s, err := auth.NewJWTService(auth.JWTConfig{Secret: cfg.JWTSecret, TokenDuration: cfg.TokenTTL})
		if err != nil {
			return nil, err
		}
		jwtService = s
	} else {
		logger.Warn("API JWT secret not set, operator endpoints are unauthenticated")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(runtime, roster, jwtService),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{server: server, config: cfg}, nil
}

// Start starts the API HTTP server and blocks until the context is cancelled
// or an error occurs. Cancellation triggers graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server.
//
// Stop is safe to call multiple times and safe to call concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.Err(err))
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
