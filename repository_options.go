package sitedeco

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// repositoryConfig holds mutable state during repository construction.
type repositoryConfig struct {
	apiBase string
	headers map[string]string
	timeout time.Duration
}

// RepositoryOption configures a [Repository] during construction.
//
// Built-in options: [WithAPIBase], [WithHeaders], [WithTimeout].
type RepositoryOption func(*repositoryConfig) error

// WithAPIBase sets the base URL of the CI provider's REST API.
//
// Defaults to https://api.github.com. Use this for GitHub Enterprise servers
// or for pointing the poller at a test server. A trailing slash is ignored.
//
// Returns an error if the URL has no http or https scheme.
func WithAPIBase(rawURL string) RepositoryOption {
	return func(cfg *repositoryConfig) error {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return errors.New("invalid API base URL: " + err.Error())
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return errors.New("API base URL must have a scheme (http:// or https://)")
		}
		cfg.apiBase = strings.TrimRight(rawURL, "/")
		return nil
	}
}

// WithHeaders adds HTTP headers to every API request, overriding defaults
// with the same name.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	repo, err := sitedeco.NewRepository("tfiers", "phd",
//	    sitedeco.WithHeaders("User-Agent", "notebook-site"),
//	)
//
// Returns an error if an odd number of arguments is provided.
func WithHeaders(keyValues ...string) RepositoryOption {
	return func(cfg *repositoryConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithTimeout sets the timeout of each API request.
//
// A poll that times out fails like any other network error and ends the
// polling chain. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) RepositoryOption {
	return func(cfg *repositoryConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}
