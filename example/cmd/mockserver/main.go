// Standalone fake GitHub Actions API for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/sitedeco serve -c example/sitedeco.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/tfiers/sitedeco/example/mockactions"
)

func main() {
	addr := flag.String("addr", ":9999", "listen address")
	idle := flag.Duration("idle", mockactions.Phases.Idle, "time between builds")
	running := flag.Duration("running", mockactions.Phases.Running, "build duration")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cycle := mockactions.Phases
	cycle.Idle = *idle
	cycle.Running = *running

	fmt.Printf("Mock GitHub Actions API starting on %s\n", *addr)
	fmt.Println("The latest run cycles through: completed → queued → in_progress")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mockactions.New(cycle, nil, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("mock server error", "error", err)
		os.Exit(1)
	}
}
