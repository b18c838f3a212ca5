// Command example runs the build status service against a fake GitHub Actions
// API, so the widget can be seen switching between its states.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tfiers/sitedeco"
	"github.com/tfiers/sitedeco/example/mockactions"
)

const mockAddr = "localhost:9999"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// fake API: a build starts every minute or so (see mockactions)
	mock := &http.Server{
		Addr:              mockAddr,
		Handler:           mockactions.New(mockactions.Phases, nil, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := mock.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("mock server error", "error", err)
		}
	}()

	repo, err := sitedeco.NewRepository("tfiers", "phd",
		sitedeco.WithAPIBase("http://"+mockAddr),
	)
	if err != nil {
		logger.Error("failed to create repository", "error", err)
		os.Exit(1)
	}

	// idle polls are shortened so the demo notices the next build quickly
	p, err := sitedeco.NewStatusPoller(repo,
		sitedeco.WithIdleInterval(5*time.Second),
		sitedeco.WithPollerLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create status poller", "error", err)
		os.Exit(1)
	}

	svc, err := sitedeco.New(
		sitedeco.WithStatusPoller(p),
		sitedeco.WithPort(8080),
		sitedeco.WithTitle("sitedeco demo"),
		sitedeco.WithLogger(logger),
		sitedeco.WithDisplayCallback(func(d sitedeco.Display) {
			fmt.Printf("  %s  %s\n", d.Title, d.Text)
		}),
	)
	if err != nil {
		logger.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  sitedeco demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 and wait for the next mock build.")
	fmt.Println("  Polling stops at \"reload to get latest version\": reload the page")
	fmt.Println("  to start over. Press Ctrl+C to stop.")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		logger.Error("service error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = mock.Shutdown(shutdownCtx)
}
