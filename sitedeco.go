package sitedeco

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tfiers/sitedeco/internal/metrics"
	"github.com/tfiers/sitedeco/internal/server"
	"github.com/tfiers/sitedeco/internal/store"
	"github.com/tfiers/sitedeco/widget"
)

const defaultPort = 8080

// Service polls a repository's build status and serves it to the static site.
//
// Service coordinates a [StatusPoller], keeps the latest [Display] and serves
// it over HTTP: the widget script for the site's pages, a JSON snapshot, an
// HTML fragment and a Server-Sent Events stream. It is created using [New]
// with functional options and started with [Service.Start].
//
// The typical lifecycle is:
//
//	repo, _ := sitedeco.NewRepository("tfiers", "phd")
//	p, _ := sitedeco.NewStatusPoller(repo)
//	svc, err := sitedeco.New(sitedeco.WithStatusPoller(p))
//	if err != nil {
//	    slog.Error("failed to create service", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	svc.Start(ctx) // blocks until context cancelled
type Service struct {
	poller         *StatusPoller
	title          string
	port           int
	allowedOrigins []string
	rateLimit      int
	logger         *slog.Logger
	callbacks      []func(Display)
	registry       *prometheus.Registry
	metrics        *metrics.Metrics
}

// New creates a new [Service] with the given options.
//
// A status poller must be configured via [WithStatusPoller]. Other options
// have sensible defaults:
//   - Port: 8080
//   - Allowed origins: any
//   - Rate limit: none
//   - Metrics registry: a new registry with Go runtime and process collectors
//
// Returns an error if no poller is configured or if any option is invalid.
func New(opts ...Option) (*Service, error) {
	cfg := &serviceConfig{
		port: defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.poller == nil {
		return nil, errors.New("a status poller is required (use WithStatusPoller)")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Service{
		poller:         cfg.poller,
		title:          cfg.title,
		port:           cfg.port,
		allowedOrigins: cfg.allowedOrigins,
		rateLimit:      cfg.rateLimit,
		logger:         logger,
		callbacks:      cfg.callbacks,
		registry:       registry,
		metrics:        metrics.New(registry),
	}, nil
}

// Start serves the widget and API and polls the build status.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The HTTP server starts on the configured port
//   - The repository is polled immediately, then on the poller's schedule
//   - Every successful poll is stored, published to connected pages and
//     passed to the display callbacks
//
// The reload prompt only goes to the pages connected at the time: it is
// published without being stored, and the poller then starts over idle, so
// pages loaded afterwards see the latest version and later builds are tracked
// again. Polling ends after a failed poll; the server keeps serving the last
// display until the context is cancelled.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails to start.
func (s *Service) Start(ctx context.Context) error {
	repo := s.poller.Repository().FullName()
	s.logger.Info("sitedeco starting", "repository", repo)
	s.logger.Info("widget available", "url", fmt.Sprintf("http://localhost:%d/build_status.js", s.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	statusStore := store.NewMemoryStore()

	httpServer := server.NewServer(statusStore, server.Options{
		Port:           s.port,
		Assets:         widget.Assets,
		Title:          s.title,
		AllowedOrigins: s.allowedOrigins,
		RateLimit:      s.rateLimit,
		Gatherer:       s.registry,
	}, s.logger)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// track the polling goroutine to ensure clean shutdown
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runPoller(ctx, repo, statusStore)
	}()

	<-ctx.Done()
	wg.Wait()
	s.logger.Info("sitedeco stopped")
	return nil
}

// StatusPoller returns the configured poller.
func (s *Service) StatusPoller() *StatusPoller {
	return s.poller
}

// Port returns the configured HTTP port.
func (s *Service) Port() int {
	return s.port
}

// Registry returns the Prometheus registry served at /metrics.
func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

// runPoller drives the poller until ctx is cancelled or a poll fails,
// restarting it idle after each reload prompt.
func (s *Service) runPoller(ctx context.Context, repo string, statusStore store.Store) {
	for {
		err := s.poller.Run(ctx, func(tick Tick) { s.publish(repo, statusStore, tick) })
		switch {
		case err != nil:
			s.metrics.ObservePollError()
			s.logger.Warn("build status polling stopped", "repository", repo, "error", err)
			return
		case ctx.Err() != nil:
			return
		}

		s.logger.Info("reload prompt published, polling restarted", "repository", repo)
		s.poller.Reset()
	}
}

// publish records a tick in metrics and the store, then passes its display to
// the callbacks. A final tick reaches the current subscribers but is not
// stored, so it is never served to a page loaded later.
func (s *Service) publish(repo string, statusStore store.Store, tick Tick) {
	s.metrics.ObservePoll(outcome(tick), tick.Run.IsBuilding, tick.Latency, tick.Next, tick.Display.CheckedAt)

	// store update before callbacks (callbacks fire after data is published)
	snap := snapshotFromTick(repo, tick)
	if tick.Final {
		statusStore.Publish(snap)
	} else {
		statusStore.Update(snap)
	}

	for _, cb := range s.callbacks {
		if !invokeCallbackSafe(cb, tick.Display, s.logger) {
			s.metrics.ObserveCallbackPanic()
		}
	}

	s.logger.Debug("poll completed",
		"repository", repo,
		"run_status", tick.Run.Status,
		"text", tick.Display.Text,
		"state", tick.Display.State.String(),
		"latency_ms", tick.Latency.Milliseconds(),
		"next", tick.Next.String(),
	)
}

// snapshotFromTick converts a tick to its stored form.
func snapshotFromTick(repo string, tick Tick) store.Snapshot {
	d := tick.Display
	return store.Snapshot{
		Repository:     repo,
		Text:           d.Text,
		Link:           d.Link,
		HTML:           d.HTML(),
		Title:          d.Title,
		State:          d.State.String(),
		Final:          d.Final,
		ResponseTimeMs: tick.Latency.Milliseconds(),
		CheckedAt:      d.CheckedAt,
	}
}

// outcome classifies a tick for metrics.
func outcome(tick Tick) string {
	switch {
	case tick.Final:
		return metrics.OutcomeReload
	case tick.Run.IsBuilding:
		return metrics.OutcomeBuilding
	default:
		return metrics.OutcomeLatest
	}
}

// invokeCallbackSafe calls a display callback with panic recovery.
// Panics are logged with a correlation ID but do not propagate. Returns false
// if the callback panicked.
func invokeCallbackSafe(cb func(Display), d Display, logger *slog.Logger) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			logger.Error("display callback panicked",
				"panic", r,
				"text", d.Text,
				"correlation_id", uuid.NewString(),
			)
		}
	}()
	cb(d)
	return true
}
