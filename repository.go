package sitedeco

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAPIBase           = "https://api.github.com"
	defaultRepositoryTimeout = 10 * time.Second
)

// defaultHeaders are sent with every request to the CI provider's API.
var defaultHeaders = map[string]string{
	"Accept":               "application/vnd.github+json",
	"X-GitHub-Api-Version": "2022-11-28",
	"User-Agent":           "sitedeco",
}

// Repository identifies the source repository whose workflow runs are polled.
//
// Repository is immutable after creation via [NewRepository]. Getters return
// copies of mutable data.
type Repository struct {
	owner   string
	name    string
	apiBase string
	headers map[string]string
	timeout time.Duration
}

// Owner returns the repository owner (user or organisation).
func (r Repository) Owner() string {
	return r.owner
}

// Name returns the repository name.
func (r Repository) Name() string {
	return r.name
}

// APIBase returns the base URL of the CI provider's REST API.
func (r Repository) APIBase() string {
	return r.apiBase
}

// Headers returns a copy of the HTTP headers sent with every API request.
func (r Repository) Headers() map[string]string {
	return copyMap(r.headers)
}

// Timeout returns the per-request timeout.
func (r Repository) Timeout() time.Duration {
	return r.timeout
}

// FullName returns "owner/name".
func (r Repository) FullName() string {
	return r.owner + "/" + r.name
}

// RunsURL returns the URL of the repository's workflow run list.
func (r Repository) RunsURL() string {
	return r.apiBase + "/repos/" + url.PathEscape(r.owner) + "/" + url.PathEscape(r.name) + "/actions/runs"
}

// NewRepository creates a [Repository] for owner/name.
//
// Options are applied in order. See [WithAPIBase], [WithHeaders] and
// [WithTimeout].
//
// Returns an error if owner or name is empty or contains a slash.
//
// Example:
//
//	repo, err := sitedeco.NewRepository("tfiers", "phd",
//	    sitedeco.WithTimeout(5 * time.Second),
//	)
func NewRepository(owner, name string, opts ...RepositoryOption) (Repository, error) {
	if owner == "" {
		return Repository{}, errors.New("repository owner cannot be empty")
	}
	if name == "" {
		return Repository{}, errors.New("repository name cannot be empty")
	}
	if strings.Contains(owner, "/") || strings.Contains(name, "/") {
		return Repository{}, errors.New("repository owner and name cannot contain '/'")
	}

	cfg := &repositoryConfig{
		apiBase: defaultAPIBase,
		headers: copyMap(defaultHeaders),
		timeout: defaultRepositoryTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Repository{}, err
		}
	}

	return Repository{
		owner:   owner,
		name:    name,
		apiBase: cfg.apiBase,
		headers: cfg.headers,
		timeout: cfg.timeout,
	}, nil
}

// ParseRepository parses an "owner/name" string into a [Repository].
func ParseRepository(fullName string, opts ...RepositoryOption) (Repository, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok {
		return Repository{}, errors.New("repository must be in the form owner/name")
	}
	return NewRepository(owner, name, opts...)
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
