package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/resrv/internal/config"
	"github.com/marmos91/resrv/internal/logger"
	"github.com/marmos91/resrv/internal/metrics"
	"github.com/marmos91/resrv/internal/server"
)

var (
	bindOverride string
	portOverride int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the resrv server",
	Long: `Start the resrv RESP2 server using the given configuration file, or the
default location at $XDG_CONFIG_HOME/resrv/config.yaml if none is given.

Examples:
  # Start with default config location (or built-in defaults)
  resrv serve

  # Start with a custom config file
  resrv serve --config /etc/resrv/config.yaml

  # Override the bind address/port without editing the config
  resrv serve --bind 0.0.0.0 --port 7000`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&bindOverride, "bind", "", "override the configured bind address")
	serveCmd.Flags().IntVar(&portOverride, "port", 0, "override the configured port")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if bindOverride != "" {
		cfg.Server.BindAddress = bindOverride
	}
	if portOverride != 0 {
		cfg.Server.Port = portOverride
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder()
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.BindAddress, cfg.Metrics.Port)
		metricsSrv, err := metrics.NewServer(metricsAddr, recorder)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsSrv.Serve(ctx); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	srv := server.New(*cfg, recorder)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("resrv is running, press Ctrl+C to stop",
		"addr", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port))

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		logger.Info("server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		logger.Info("server stopped")
	}

	return nil
}
