package sitedeco

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tfiers/sitedeco/internal/poller"
)

var tracer = otel.Tracer("github.com/tfiers/sitedeco")

const (
	defaultIdleInterval     = 60 * time.Second
	defaultBuildingInterval = 1 * time.Second
	defaultTimeFormat       = "15:04:05"
)

// HTTPError is returned when the CI provider answers with a non-2xx status.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Clock is the time source of a [StatusPoller]. Tests substitute a fake to
// step polls without waiting on real timers.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// StatusPoller polls a repository's workflow runs and derives the build status
// display.
//
// StatusPoller is a two-state machine. In [StateIdle], a completed run shows
// [TextLatest] and the next poll is scheduled after the idle interval. Any
// run that is not completed shows [TextBuilding], linked to the live log of
// its first job, switches the poller to [StateBuilding] and schedules the next
// poll after the building interval. A completed run seen in [StateBuilding]
// shows [TextReload] and ends polling: the reader has to reload the page to
// see the new version, and is told so exactly once. The state stays
// [StateBuilding] until [StatusPoller.Reset].
//
// A StatusPoller is meant to be driven by a single goroutine, either through
// [StatusPoller.Run] or by calling [StatusPoller.Poll] directly.
type StatusPoller struct {
	repo             Repository
	client           *poller.Client
	clock            Clock
	idleInterval     time.Duration
	buildingInterval time.Duration
	timeFormat       string
	logger           *slog.Logger

	mu    sync.Mutex
	state State
}

// NewStatusPoller creates a [StatusPoller] for repo, starting in [StateIdle].
//
// Defaults:
//   - Idle interval: 60 seconds
//   - Building interval: 1 second
//   - Time format: "15:04:05" (local time)
//
// Example:
//
//	repo, _ := sitedeco.NewRepository("tfiers", "phd")
//	p, err := sitedeco.NewStatusPoller(repo,
//	    sitedeco.WithIdleInterval(2 * time.Minute),
//	)
func NewStatusPoller(repo Repository, opts ...PollerOption) (*StatusPoller, error) {
	if repo.owner == "" || repo.name == "" {
		return nil, errors.New("repository is required (use NewRepository)")
	}

	cfg := &pollerConfig{
		idleInterval:     defaultIdleInterval,
		buildingInterval: defaultBuildingInterval,
		timeFormat:       defaultTimeFormat,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	clock := cfg.clock
	if clock == nil {
		clock = poller.SystemClock{}
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StatusPoller{
		repo:             repo,
		client:           poller.NewClient(),
		clock:            clock,
		idleInterval:     cfg.idleInterval,
		buildingInterval: cfg.buildingInterval,
		timeFormat:       cfg.timeFormat,
		logger:           logger,
		state:            StateIdle,
	}, nil
}

// Repository returns the polled repository.
func (p *StatusPoller) Repository() Repository {
	return p.repo
}

// State returns the current state.
func (p *StatusPoller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Reset returns the poller to [StateIdle], as for a freshly loaded page.
// [Service] resets its poller after the reload prompt so that the pages loaded
// afterwards see [TextLatest] and later builds are tracked again.
func (p *StatusPoller) Reset() {
	p.mu.Lock()
	p.state = StateIdle
	p.mu.Unlock()
}

// Poll performs one poll cycle and returns its [Tick].
//
// The run list is fetched first. When the latest run is still in progress its
// job list is fetched to find the live log link. Any failure (network error,
// non-2xx status, malformed JSON, missing fields) is returned as is and leaves
// the state unchanged; Poll never retries.
func (p *StatusPoller) Poll(ctx context.Context) (Tick, error) {
	ctx, span := tracer.Start(ctx, "StatusPoller.Poll",
		trace.WithAttributes(attribute.String("sitedeco.repository", p.repo.FullName())))
	defer span.End()

	tick, err := p.poll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Tick{}, err
	}
	span.SetAttributes(
		attribute.String("sitedeco.run_status", tick.Run.Status),
		attribute.String("sitedeco.state", tick.Display.State.String()),
		attribute.Bool("sitedeco.final", tick.Final),
	)
	return tick, nil
}

func (p *StatusPoller) poll(ctx context.Context) (Tick, error) {
	runsURL := p.repo.RunsURL()
	resp := p.client.Fetch(ctx, runsURL, p.repo.headers, p.repo.timeout)
	latency := resp.Latency
	body, err := checkResponse(runsURL, resp)
	if err != nil {
		return Tick{}, err
	}

	run, err := ExtractLatestRun(body)
	if err != nil {
		return Tick{}, err
	}

	runStatus := RunStatus{Status: run.Status, IsBuilding: !run.Completed()}
	var tick Tick

	if run.Completed() {
		if p.State() == StateBuilding {
			tick = Tick{Display: Display{Text: TextReload}, Final: true}
		} else {
			tick = Tick{Display: Display{Text: TextLatest}, Next: p.idleInterval}
		}
	} else {
		liveLog, jobsLatency, err := p.liveLogURL(ctx, run)
		latency += jobsLatency
		if err != nil {
			return Tick{}, err
		}
		runStatus.LiveLogURL = liveLog

		p.mu.Lock()
		p.state = StateBuilding
		p.mu.Unlock()

		tick = Tick{Display: Display{Text: TextBuilding, Link: liveLog}, Next: p.buildingInterval}
	}

	now := p.clock.Now()
	tick.Run = runStatus
	tick.Latency = latency
	tick.Display.CheckedAt = now
	tick.Display.Title = "Last checked: " + now.Format(p.timeFormat)
	tick.Display.State = p.State()
	tick.Display.Final = tick.Final

	return tick, nil
}

// liveLogURL fetches the run's job list and returns the first job's web page.
// A run without a jobs URL, or a first job without a web page, yields an
// empty link rather than an error.
func (p *StatusPoller) liveLogURL(ctx context.Context, run WorkflowRun) (string, time.Duration, error) {
	if run.JobsURL == "" {
		return "", 0, nil
	}

	resp := p.client.Fetch(ctx, run.JobsURL, p.repo.headers, p.repo.timeout)
	body, err := checkResponse(run.JobsURL, resp)
	if err != nil {
		return "", resp.Latency, err
	}

	job, err := ExtractFirstJob(body)
	if err != nil {
		return "", resp.Latency, err
	}
	return job.HTMLURL, resp.Latency, nil
}

// Run polls until the reload prompt is shown, a poll fails, or ctx is
// cancelled. Each successful poll's [Tick] is passed to onTick, in order,
// from the calling goroutine.
//
// Returns nil after the reload prompt or on cancellation, and the poll error
// otherwise. A failed poll is not retried: the status simply stops updating.
func (p *StatusPoller) Run(ctx context.Context, onTick func(Tick)) error {
	var step poller.StepFunc[Tick] = func(ctx context.Context) (poller.Step[Tick], error) {
		tick, err := p.Poll(ctx)
		if err != nil {
			return poller.Step[Tick]{}, err
		}
		return poller.Step[Tick]{Value: tick, Next: tick.Next, Final: tick.Final}, nil
	}

	scheduler := poller.NewScheduler[Tick](step, p.clock, p.logger)
	scheduler.Start(ctx)
	defer p.client.Close()

	for tick := range scheduler.Results() {
		if onTick != nil {
			onTick(tick)
		}
	}
	scheduler.Stop()

	return scheduler.Err()
}

// checkResponse turns a transport error or non-2xx status into an error and
// returns the body otherwise.
func checkResponse(url string, resp poller.Response) ([]byte, error) {
	if resp.Error != nil {
		return nil, resp.Error
	}
	if !resp.OK() {
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}
