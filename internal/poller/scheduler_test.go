package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock fires every After immediately and records the requested delays.
type fakeClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (c *fakeClock) Now() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func (c *fakeClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

// blockingClock never fires.
type blockingClock struct{}

func (blockingClock) Now() time.Time                       { return time.Now() }
func (blockingClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

// scriptedSteps returns a StepFunc that replays steps in order.
func scriptedSteps(steps ...Step[int]) StepFunc[int] {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context) (Step[int], error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(steps) {
			return Step[int]{}, errors.New("script exhausted")
		}
		s := steps[i]
		i++
		return s, nil
	}
}

func collect(s *Scheduler[int]) []int {
	var got []int
	for v := range s.Results() {
		got = append(got, v)
	}
	return got
}

func TestScheduler_StopBeforeStart(t *testing.T) {
	s := NewScheduler(scriptedSteps(), nil, testLogger())

	// must not panic, and must close the results channel
	s.Stop()

	if _, ok := <-s.Results(); ok {
		t.Error("expected results channel to be closed after Stop()")
	}
}

func TestScheduler_StopTwice(t *testing.T) {
	s := NewScheduler(scriptedSteps(Step[int]{Value: 1, Next: time.Hour}), blockingClock{}, testLogger())
	s.Start(context.Background())

	go func() {
		for range s.Results() {
		}
	}()

	s.Stop()
	s.Stop()
}

func TestScheduler_FinalStepEndsLoop(t *testing.T) {
	clock := &fakeClock{}
	s := NewScheduler(scriptedSteps(
		Step[int]{Value: 1, Next: time.Second},
		Step[int]{Value: 2, Next: time.Second},
		Step[int]{Value: 3, Final: true},
		Step[int]{Value: 4},
	), clock, testLogger())
	s.Start(context.Background())

	got := collect(s)
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("results = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("results[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestScheduler_WaitsRequestedDelay(t *testing.T) {
	clock := &fakeClock{}
	s := NewScheduler(scriptedSteps(
		Step[int]{Value: 1, Next: 60 * time.Second},
		Step[int]{Value: 2, Next: time.Second},
		Step[int]{Value: 3, Final: true},
	), clock, testLogger())
	s.Start(context.Background())
	collect(s)

	delays := clock.Delays()
	want := []time.Duration{60 * time.Second, time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delays[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestScheduler_StepErrorStopsWithoutRetry(t *testing.T) {
	clock := &fakeClock{}
	wantErr := errors.New("network down")
	calls := 0
	step := func(ctx context.Context) (Step[int], error) {
		calls++
		if calls == 2 {
			return Step[int]{}, wantErr
		}
		return Step[int]{Value: calls, Next: time.Second}, nil
	}

	s := NewScheduler(step, clock, testLogger())
	s.Start(context.Background())

	got := collect(s)
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("results = %v, want [1]", got)
	}
	if !errors.Is(s.Err(), wantErr) {
		t.Errorf("Err() = %v, want %v", s.Err(), wantErr)
	}
	if calls != 2 {
		t.Errorf("step called %d times, want 2 (no retry)", calls)
	}
}

func TestScheduler_StepPanicBecomesError(t *testing.T) {
	step := func(ctx context.Context) (Step[int], error) {
		panic("boom")
	}

	s := NewScheduler(step, &fakeClock{}, testLogger())
	s.Start(context.Background())
	collect(s)

	err := s.Err()
	if err == nil {
		t.Fatal("Err() = nil, want panic error")
	}
	if !strings.Contains(err.Error(), "correlation_id") {
		t.Errorf("Err() = %v, want correlation id", err)
	}
}

func TestScheduler_ContextCancelEndsLoop(t *testing.T) {
	s := NewScheduler(scriptedSteps(
		Step[int]{Value: 1, Next: time.Hour},
		Step[int]{Value: 2, Next: time.Hour},
	), blockingClock{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	if v := <-s.Results(); v != 1 {
		t.Fatalf("first result = %d, want 1", v)
	}
	cancel()

	select {
	case _, ok := <-s.Results():
		if ok {
			t.Error("expected results channel to be closed after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for results channel to close")
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil after cancellation", err)
	}
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	step := func(ctx context.Context) (Step[int], error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return Step[int]{Value: 1, Final: true}, nil
	}

	s := NewScheduler(step, &fakeClock{}, testLogger())
	s.Start(context.Background())
	s.Start(context.Background())
	collect(s)
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("step called %d times, want 1", calls)
	}
}

func TestScheduler_ConcurrentStartStop(t *testing.T) {
	for i := 0; i < 100; i++ {
		s := NewScheduler(scriptedSteps(Step[int]{Value: 1, Next: time.Hour}), blockingClock{}, testLogger())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			s.Stop()
		}()

		// drain concurrently: a started loop may block sending its first value
		done := make(chan struct{})
		go func() {
			for range s.Results() {
			}
			close(done)
		}()

		wg.Wait()
		s.Stop()
		<-done
	}
}
