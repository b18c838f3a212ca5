package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time so tests can step the scheduler deterministically.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the [Clock] backed by package time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// After returns time.After(d).
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Step is the outcome of one scheduled call.
type Step[T any] struct {
	// Value is emitted on the results channel.
	Value T

	// Next is the delay before the following call.
	Next time.Duration

	// Final stops the scheduler after Value is emitted.
	Final bool
}

// StepFunc performs one scheduled call.
type StepFunc[T any] func(ctx context.Context) (Step[T], error)

// Scheduler calls a [StepFunc] repeatedly, waiting the delay each step asks
// for before the next call.
//
// Unlike a fixed ticker the delay is decided by the step itself, so a caller
// can poll quickly while something is changing and slowly while it is not.
// The loop ends when a step is Final, when a step fails, or when the context
// is cancelled. A failed step is not retried: the error is kept and available
// from [Scheduler.Err] once the results channel is closed.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler[T any] struct {
	step    StepFunc[T]
	clock   Clock
	results chan T
	logger  *slog.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	err       error
	closeOnce sync.Once
}

// NewScheduler creates a new [Scheduler]. A nil clock means [SystemClock].
//
// The scheduler must be started with [Scheduler.Start]. Results are available
// via [Scheduler.Results].
func NewScheduler[T any](step StepFunc[T], clock Clock, logger *slog.Logger) *Scheduler[T] {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler[T]{
		step:    step,
		clock:   clock,
		results: make(chan T, 1),
		logger:  logger,
	}
}

// Results returns a receive-only channel that emits each step's value.
//
// The channel is closed when the loop ends.
func (s *Scheduler[T]) Results() <-chan T {
	return s.results
}

// Err returns the error of the step that ended the loop, or nil if the loop
// ended because of a final step or cancellation. Only meaningful after the
// results channel is closed.
func (s *Scheduler[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start runs the loop in a background goroutine. The first step runs
// immediately.
//
// If ctx is nil, context.Background() is used. Start is idempotent; calls
// after the first, or after Stop, are no-ops.
func (s *Scheduler[T]) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.results) })
		s.loop(loopCtx)
	}()
}

func (s *Scheduler[T]) loop(ctx context.Context) {
	for {
		step, err := s.safeStep(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}

		select {
		case s.results <- step.Value:
		case <-ctx.Done():
			return
		}

		if step.Final {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(step.Next):
		}
	}
}

// Stop cancels the loop and waits for it to exit. It does not wait for the
// results channel to be drained; a consumer must keep reading until it is
// closed.
//
// Stop is idempotent. Calling Stop before Start is a safe no-op that also
// closes the results channel.
func (s *Scheduler[T]) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.closeOnce.Do(func() { close(s.results) })
}

// safeStep calls the step with panic recovery. A panic is logged with its
// stack trace under a correlation id and returned as an error carrying the id.
func (s *Scheduler[T]) safeStep(ctx context.Context) (step Step[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("scheduled step panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("step panic (correlation_id: %s)", correlationID)
		}
	}()
	return s.step(ctx)
}
