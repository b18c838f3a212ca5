package sitedeco

import (
	"errors"
	"log/slog"
	"time"
)

// minPollDelay guards against hammering the CI provider's API, which rate
// limits unauthenticated clients per IP.
const minPollDelay = 100 * time.Millisecond

// pollerConfig holds mutable state during poller construction.
type pollerConfig struct {
	idleInterval     time.Duration
	buildingInterval time.Duration
	timeFormat       string
	clock            Clock
	logger           *slog.Logger
}

// PollerOption configures a [StatusPoller] during construction.
//
// Built-in options: [WithIdleInterval], [WithBuildingInterval],
// [WithTimeFormat], [WithClock], [WithPollerLogger].
type PollerOption func(*pollerConfig) error

// WithIdleInterval sets the delay between polls while no build is running.
// Defaults to 60 seconds.
//
// Returns an error if d is below 100ms.
func WithIdleInterval(d time.Duration) PollerOption {
	return func(cfg *pollerConfig) error {
		if d < minPollDelay {
			return errors.New("idle interval must be at least 100ms")
		}
		cfg.idleInterval = d
		return nil
	}
}

// WithBuildingInterval sets the delay between polls while a build is running.
// Defaults to 1 second.
//
// Returns an error if d is below 100ms.
func WithBuildingInterval(d time.Duration) PollerOption {
	return func(cfg *pollerConfig) error {
		if d < minPollDelay {
			return errors.New("building interval must be at least 100ms")
		}
		cfg.buildingInterval = d
		return nil
	}
}

// WithTimeFormat sets the layout (see [time.Layout]) of the time shown in the
// "Last checked" tooltip. Defaults to "15:04:05".
//
// Returns an error if the layout is empty.
func WithTimeFormat(layout string) PollerOption {
	return func(cfg *pollerConfig) error {
		if layout == "" {
			return errors.New("time format cannot be empty")
		}
		cfg.timeFormat = layout
		return nil
	}
}

// WithClock sets the time source used for timestamps and delays between
// polls. Intended for tests.
func WithClock(c Clock) PollerOption {
	return func(cfg *pollerConfig) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = c
		return nil
	}
}

// WithPollerLogger sets the logger used by the poller. Defaults to
// [slog.Default].
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(cfg *pollerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}
