package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/internal/telemetry"
	"github.com/marmos91/authkeep/pkg/api"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/marmos91/authkeep/pkg/host/standalone"
	"github.com/marmos91/authkeep/pkg/lifecycle"
	"github.com/marmos91/authkeep/pkg/metrics"
	"github.com/marmos91/authkeep/pkg/scheduler"
	"github.com/marmos91/authkeep/pkg/spawn"
	"github.com/spf13/cobra"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run authkeep on a standalone host",
	Long: `Run the authkeep plugin on an in-process host together with the operator API.

A missing configuration file is created with the defaults. SIGHUP (or
"authkeep reload") reloads the plugin; SIGINT and SIGTERM disable it and wait
for pending tasks before exiting.

Examples:
  # Start with the default config location
  authkeep start

  # Start with a custom config file
  authkeep start --config /etc/authkeep/config.yaml

  # Start with environment variable overrides
  AUTHKEEP_LOGGING_LEVEL=DEBUG authkeep start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Write the process id to this file")
}

func runStart(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, created, err := config.LoadOrCreate(configPath)
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}
	if created {
		logger.Info("Default configuration written", logger.KeyPath, configPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Start(ctx, telemetry.Config{
		ServiceName:    "authkeep",
		ServiceVersion: Version,
		Tracing: telemetry.TracingConfig{
			Enabled:    cfg.Telemetry.Enabled,
			Endpoint:   cfg.Telemetry.Endpoint,
			Insecure:   cfg.Telemetry.Insecure,
			SampleRate: cfg.Telemetry.SampleRate,
		},
		Profiling: telemetry.ProfilingConfig{
			Enabled:      cfg.Telemetry.Profiling.Enabled,
			Endpoint:     cfg.Telemetry.Profiling.Endpoint,
			ProfileTypes: cfg.Telemetry.Profiling.ProfileTypes,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.TracingEnabled() {
		logger.Info("Tracing enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.ProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "path", "/metrics")
	}

	sched, err := scheduler.New(cfg.Tasks.Workers)
	if err != nil {
		return err
	}
	defer func() {
		if err := sched.Close(cfg.Shutdown.Timeout); err != nil {
			logger.Warn("Scheduler did not stop cleanly", logger.Err(err))
		}
	}()

	h := standalone.New(standalone.Config{
		Name:       cfg.Host.Name,
		Version:    cfg.Host.Version,
		Features:   cfg.Host.Features,
		MaxPlayers: cfg.Host.MaxPlayers,
		Spawn:      spawn.New(cfg.Restrictions.Spawn).Spawn(),
	}, sched)

	orch := lifecycle.New(lifecycle.Options{
		ConfigPath: configPath,
		Host:       h,
		Version:    Version,
		Metrics:    metrics.NewLifecycle(),
	})

	runtime := api.NewPluginRuntime(orch)
	svc := lifecycle.NewService(cfg.Shutdown.Timeout)
	if cfg.API.Enabled {
		apiServer, err := api.NewServer(cfg.API, runtime, h)
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
		svc.SetAPIServer(apiServer)
	} else {
		logger.Info("API server disabled")
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- svc.Serve(ctx, orch, runtime.Reloads(), h.Done())
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	logger.Info("authkeep is running. Press Ctrl+C to stop.")

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				if !runtime.RequestReload() {
					logger.Info("Reload already pending")
				}
				continue
			}
			logger.Info("Shutdown signal received, initiating graceful shutdown", "signal", sig.String())
			cancel()
			if err := <-serverDone; err != nil {
				logger.Error("Shutdown error", logger.Err(err))
				return err
			}
			logger.Info("authkeep stopped gracefully")
			return nil

		case err := <-serverDone:
			if err != nil {
				logger.Error("authkeep stopped", logger.Err(err))
				return err
			}
			logger.Info("authkeep stopped")
			return nil
		}
	}
}
