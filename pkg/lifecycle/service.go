package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/authkeep/internal/logger"
)

// DefaultShutdownTimeout bounds how long shutdown waits for the drain.
const DefaultShutdownTimeout = 90 * time.Second

// AuxiliaryServer is an HTTP server run next to the plugin (operator API).
type AuxiliaryServer interface {
	// Start serves until ctx is cancelled or an error occurs.
	Start(ctx context.Context) error
	// Stop initiates graceful shutdown.
	Stop(ctx context.Context) error
	Port() int
}

// Service runs an Orchestrator for the life of the process.
type Service struct {
	shutdownTimeout time.Duration
	apiServer       AuxiliaryServer

	// serveOnce ensures Serve() is only called once
	serveOnce sync.Once
	served    bool
}

// NewService creates a service. A zero timeout selects DefaultShutdownTimeout.
func NewService(shutdownTimeout time.Duration) *Service {
	if shutdownTimeout == 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &Service{shutdownTimeout: shutdownTimeout}
}

// SetAPIServer sets the operator API server.
// Must be called before Serve().
func (s *Service) SetAPIServer(server AuxiliaryServer) {
	if s.served {
		panic("cannot set API server after Serve() has been called")
	}
	s.apiServer = server
	if server != nil {
		logger.Info("API server registered", "port", server.Port())
	}
}

// Serve enables the plugin and blocks until ctx is cancelled, the host
// shuts down or the API server fails. Every value received on reloads
// reloads the plugin. A failed enable or reload leaves the plugin disabled
// and keeps serving; when the configuration asks for it the host has been
// shut down already and Serve returns the failure. On the way out the
// plugin is shut down and the drain is waited for, up to the shutdown
// timeout.
func (s *Service) Serve(ctx context.Context, o *Orchestrator, reloads <-chan struct{}, hostDone <-chan struct{}) error {
	err := errors.New("serve already called")
	s.serveOnce.Do(func() {
		s.served = true
		err = s.serve(ctx, o, reloads, hostDone)
	})
	return err
}

func (s *Service) serve(ctx context.Context, o *Orchestrator, reloads <-chan struct{}, hostDone <-chan struct{}) error {
	logger.Info("Starting authkeep")

	// 1. Enable. A failed enable has already stopped or unloaded the plugin.
	var lastErr error
	if err := o.Enable(ctx); err != nil {
		lastErr = fmt.Errorf("failed to enable: %w", err)
		logger.Error("authkeep is disabled", logger.Err(err))
	}

	// 2. Start the API server if configured
	apiErrChan := make(chan error, 1)
	if s.apiServer != nil {
		go func() {
			if err := s.apiServer.Start(ctx); err != nil {
				logger.Error("API server error", logger.Err(err))
				apiErrChan <- err
			}
		}()
	}

	// 3. Wait for a reload, a shutdown signal or a server error
	var shutdownErr error
loop:
	for {
		select {
		case <-reloads:
			logger.Info("Reload requested")
			if err := o.Reload(ctx); err != nil {
				lastErr = fmt.Errorf("reload failed: %w", err)
				logger.Error("authkeep is disabled", logger.Err(err))
				continue
			}
			lastErr = nil

		case <-hostDone:
			logger.Info("Host shut down")
			shutdownErr = lastErr
			break loop

		case <-ctx.Done():
			logger.Info("Shutdown signal received", "reason", ctx.Err())
			break loop

		case err := <-apiErrChan:
			logger.Error("API server failed - initiating shutdown", logger.Err(err))
			shutdownErr = fmt.Errorf("API server error: %w", err)
			break loop
		}
	}

	// 4. Graceful shutdown
	s.shutdown(o)

	logger.Info("authkeep stopped")
	return shutdownErr
}

func (s *Service) shutdown(o *Orchestrator) {
	o.Shutdown(context.Background())
	s.drain(o)

	if s.apiServer != nil {
		logger.Debug("Stopping API server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.apiServer.Stop(ctx); err != nil {
			logger.Error("API server shutdown error", logger.Err(err))
		}
	}
}

func (s *Service) drain(o *Orchestrator) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := o.WaitDrained(ctx); err != nil {
		logger.Warn("Stopped waiting for async tasks", "timeout", s.shutdownTimeout.String(), logger.Err(err))
	}
}
