package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tfiers/sitedeco"
	"github.com/tfiers/sitedeco/config"
	"github.com/tfiers/sitedeco/internal/telemetry"
)

const (
	shutdownTimeout = 10 * time.Second
	serviceName     = "sitedeco"
)

// serveCmd starts the build status service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the build status widget",
	Long: `Start the sitedeco build status service.

The service will:
  - Load configuration from the specified YAML file
  - Poll the repository's workflow runs, quickly while a build runs
  - Serve the widget, an SSE stream and a JSON snapshot of the status

Polling stops after the reload prompt or the first failed poll; the server
keeps serving the last status until interrupted (Ctrl+C) or SIGTERM.

Example:
  sitedeco serve -c sitedeco.yaml
  SITEDECO_PORT=9000 sitedeco serve --config /etc/sitedeco.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addConfigFlag(serveCmd)
	serveCmd.Flags().BoolP("verbose", "v", false, "log every poll")
}

func runServe(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(verbose)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Repository == nil {
		return errors.New("config has no repository to poll")
	}

	shutdownTracing, err := telemetry.Init(ctx, serviceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to initialise tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	p, err := config.BuildStatusPoller(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build status poller: %w", err)
	}

	svc, err := sitedeco.New(config.ServiceOptions(cfg, p, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	logger.Info("starting server",
		"repository", cfg.Repository.FullName(),
		"port", cfg.Port,
		"tracing", cfg.Telemetry.OTLPEndpoint != "",
	)

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- svc.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
