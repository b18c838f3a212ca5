package sitedeco

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// serviceConfig holds mutable state during Service construction.
type serviceConfig struct {
	poller         *StatusPoller
	title          string
	port           int
	allowedOrigins []string
	rateLimit      int
	logger         *slog.Logger
	callbacks      []func(Display)
	registry       *prometheus.Registry
}

// Option is a function that configures a [Service] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithStatusPoller], [WithPort], [WithTitle], [WithLogger],
// [WithAllowedOrigins], [WithRateLimit], [WithDisplayCallback], [WithRegistry].
type Option func(*serviceConfig) error

// WithStatusPoller sets the poller whose displays the service publishes.
// Required.
//
// Returns an error if p is nil.
func WithStatusPoller(p *StatusPoller) Option {
	return func(cfg *serviceConfig) error {
		if p == nil {
			return errors.New("status poller cannot be nil")
		}
		cfg.poller = p
		return nil
	}
}

// WithPort sets the HTTP port of the service.
//
// The widget and API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *serviceConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the title of the preview page. Defaults to "sitedeco".
func WithTitle(title string) Option {
	return func(cfg *serviceConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the service.
//
// If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	svc, err := sitedeco.New(
//	    sitedeco.WithStatusPoller(p),
//	    sitedeco.WithLogger(logger),
//	)
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithAllowedOrigins restricts which sites may read the status from a
// browser, e.g. "https://tfiers.github.io". Defaults to any origin.
//
// Returns an error if an origin is empty.
func WithAllowedOrigins(origins ...string) Option {
	return func(cfg *serviceConfig) error {
		for _, o := range origins {
			if o == "" {
				return errors.New("allowed origin cannot be empty")
			}
		}
		cfg.allowedOrigins = append(cfg.allowedOrigins, origins...)
		return nil
	}
}

// WithRateLimit limits each client IP to n requests per minute. Zero, the
// default, disables rate limiting.
//
// Returns an error if n is negative.
func WithRateLimit(n int) Option {
	return func(cfg *serviceConfig) error {
		if n < 0 {
			return errors.New("rate limit cannot be negative")
		}
		cfg.rateLimit = n
		return nil
	}
}

// WithDisplayCallback registers a function called with every new [Display].
//
// Multiple callbacks may be registered; they execute in registration order,
// synchronously from the polling goroutine, after the display has been
// published. Callbacks must not block: a slow callback delays the next poll.
// Panics within callbacks are recovered and logged.
//
// Example:
//
//	svc, err := sitedeco.New(
//	    sitedeco.WithStatusPoller(p),
//	    sitedeco.WithDisplayCallback(func(d sitedeco.Display) {
//	        if d.Final {
//	            log.Printf("site rebuilt: %s", d.Text)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithDisplayCallback(cb func(Display)) Option {
	return func(cfg *serviceConfig) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}

// WithRegistry sets the Prometheus registry the service registers its
// metrics with and serves at /metrics.
//
// Returns an error if reg is nil.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(cfg *serviceConfig) error {
		if reg == nil {
			return errors.New("registry cannot be nil")
		}
		cfg.registry = reg
		return nil
	}
}
