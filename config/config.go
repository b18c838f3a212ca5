// Package config provides YAML configuration parsing for sitedeco.
//
// This package enables running sitedeco as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	repository: tfiers/phd
//
//	poll:
//	  idle_interval: 60s
//	  building_interval: 1s
//
//	allowed_origins: [https://tfiers.github.io]
//
//	site:
//	  dir: _build/html
//	  site_url: https://tfiers.github.io/phd/
//	  head_tags:
//	    - <script defer data-domain="tfiers.github.io/phd" src="https://plausible.io/js/plausible.js"></script>
//
// Settings can be overridden from the environment with [ApplyEnv].
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum polling interval accepted from a config file.
// GitHub rate limits unauthenticated API clients to 60 requests per hour.
const minPollInterval = 1 * time.Second

const defaultPort = 8080

// Config is the root configuration structure for sitedeco.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the preview page title. Defaults to "sitedeco" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Repository is the GitHub repository whose workflow runs are polled.
	// Required by serve and check.
	Repository *RepositoryConfig `yaml:"repository"`

	// Poll tunes the adaptive polling schedule.
	Poll PollConfig `yaml:"poll"`

	// AllowedOrigins lists the origins allowed to fetch the widget and API.
	// Defaults to any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// RateLimit is the number of requests per minute allowed per client IP.
	// Zero disables rate limiting.
	RateLimit int `yaml:"rate_limit"`

	// Telemetry configures trace export.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Site configures post-processing of the built site.
	// Required by postprocess.
	Site *SiteConfig `yaml:"site"`
}

// RepositoryConfig identifies the polled repository.
//
// It supports two formats in YAML:
//
// Shorthand string:
//
//	repository: tfiers/phd
//
// Structured object:
//
//	repository:
//	  owner: tfiers
//	  name: phd
//	  headers:
//	    Authorization: Bearer ${GITHUB_TOKEN}
type RepositoryConfig struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`

	// APIBase is the base URL of the REST API, for GitHub Enterprise servers.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	APIBase string `yaml:"api_base"`

	// Timeout is the per-request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Headers are custom HTTP headers sent with each API request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`
}

// PollConfig tunes the adaptive polling schedule. Zero values keep the SDK
// defaults.
type PollConfig struct {
	// IdleInterval is the delay between polls while no build runs.
	IdleInterval Duration `yaml:"idle_interval"`

	// BuildingInterval is the delay between polls while a build runs.
	BuildingInterval Duration `yaml:"building_interval"`

	// TimeFormat is the Go time layout of the "Last checked" tooltip.
	TimeFormat string `yaml:"time_format"`
}

// TelemetryConfig configures OpenTelemetry trace export.
type TelemetryConfig struct {
	// OTLPEndpoint is the OTLP/HTTP collector endpoint. Tracing is disabled
	// when empty.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// SiteConfig configures post-processing of a built site directory.
type SiteConfig struct {
	// Dir is the built site directory.
	Dir string `yaml:"dir"`

	// SiteURL is the public base URL of the site, used for canonical links.
	// Required when renamed_pages is set.
	SiteURL string `yaml:"site_url"`

	Retina RetinaConfig `yaml:"retina"`

	// HeadTags are appended to the head of every page that lacks them.
	HeadTags []string `yaml:"head_tags"`

	// RenamedPages keep the canonical URL of pages that moved.
	RenamedPages []RenamedPageConfig `yaml:"renamed_pages"`
}

// RetinaConfig configures figure resizing.
type RetinaConfig struct {
	// Enabled turns resizing on or off. Defaults to true.
	Enabled *bool `yaml:"enabled"`

	// MinPixels is the exclusive pixel area above which a figure is halved.
	MinPixels int `yaml:"min_pixels"`

	// ContainerClass is the class of the elements whose direct img children
	// are considered.
	ContainerClass string `yaml:"container_class"`
}

// IsEnabled reports whether figure resizing is on.
func (r RetinaConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// RenamedPageConfig maps a page's current path to the path it was first
// published under. Both are relative to the site root.
type RenamedPageConfig struct {
	Old string `yaml:"old"`
	New string `yaml:"new"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for RepositoryConfig.
func (r *RepositoryConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return r.parseShorthand(s)
	}

	if node.Kind == yaml.MappingNode {
		// plain alias type so Decode does not recurse into this method
		type plain RepositoryConfig
		var raw plain
		if err := node.Decode(&raw); err != nil {
			return err
		}
		*r = RepositoryConfig(raw)
		return nil
	}

	return fmt.Errorf("repository must be a string or object, got %v", node.Kind)
}

// parseShorthand parses "owner/name".
func (r *RepositoryConfig) parseShorthand(s string) error {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("repository %q must be in the form owner/name", s)
	}
	r.Owner = owner
	r.Name = name
	return nil
}

// FullName returns "owner/name".
func (r *RepositoryConfig) FullName() string {
	return r.Owner + "/" + r.Name
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		varName := sub[1]
		hasDefault := sub[2] != ""

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return sub[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the API base, header values, site
// directory and site URL. The port defaults to 8080.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}

	if err := cfg.expand(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expand substitutes environment variables in the fields that support it.
func (c *Config) expand() error {
	if r := c.Repository; r != nil {
		expanded, err := expandEnvVars(r.APIBase)
		if err != nil {
			return fmt.Errorf("repository: api_base: %w", err)
		}
		r.APIBase = expanded

		for k, v := range r.Headers {
			expanded, err := expandEnvVars(v)
			if err != nil {
				return fmt.Errorf("repository: headers[%s]: %w", k, err)
			}
			r.Headers[k] = expanded
		}
	}

	if s := c.Site; s != nil {
		dir, err := expandEnvVars(s.Dir)
		if err != nil {
			return fmt.Errorf("site: dir: %w", err)
		}
		s.Dir = dir

		siteURL, err := expandEnvVars(s.SiteURL)
		if err != nil {
			return fmt.Errorf("site: site_url: %w", err)
		}
		s.SiteURL = siteURL
	}

	return nil
}

// Validate checks the configuration for errors. [Parse] and [ApplyEnv] call
// it; callers that build a Config by hand may call it directly.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative, got %d", c.RateLimit)
	}

	for i, origin := range c.AllowedOrigins {
		if origin == "" {
			return fmt.Errorf("allowed_origins[%d]: cannot be empty", i)
		}
	}

	if c.Repository == nil && c.Site == nil {
		return errors.New("at least one of repository or site must be defined")
	}

	if c.Repository != nil {
		if err := c.Repository.validate(); err != nil {
			return err
		}
	}
	if err := c.Poll.validate(); err != nil {
		return err
	}
	if c.Site != nil {
		if err := c.Site.validate(); err != nil {
			return err
		}
	}

	return nil
}

func (r *RepositoryConfig) validate() error {
	if r.Owner == "" {
		return errors.New("repository: owner is required")
	}
	if r.Name == "" {
		return fmt.Errorf("repository (%s): name is required", r.Owner)
	}

	if r.APIBase != "" {
		if err := validateHTTPURL(r.APIBase); err != nil {
			return fmt.Errorf("repository (%s): api_base: %w", r.FullName(), err)
		}
	}

	if r.Timeout != 0 && r.Timeout.Duration() < time.Second {
		return fmt.Errorf("repository (%s): timeout must be at least 1s if specified, got %s",
			r.FullName(), r.Timeout.Duration())
	}

	return nil
}

func (p PollConfig) validate() error {
	if p.IdleInterval != 0 && p.IdleInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll: idle_interval must be at least %s, got %s",
			minPollInterval, p.IdleInterval.Duration())
	}
	if p.BuildingInterval != 0 && p.BuildingInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll: building_interval must be at least %s, got %s",
			minPollInterval, p.BuildingInterval.Duration())
	}
	return nil
}

func (s *SiteConfig) validate() error {
	if s.Dir == "" {
		return errors.New("site: dir is required")
	}

	if s.Retina.MinPixels < 0 {
		return fmt.Errorf("site: retina: min_pixels cannot be negative, got %d", s.Retina.MinPixels)
	}

	for i, tag := range s.HeadTags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("site: head_tags[%d]: cannot be empty", i)
		}
	}

	if len(s.RenamedPages) > 0 {
		if s.SiteURL == "" {
			return errors.New("site: site_url is required when renamed_pages is set")
		}
		if err := validateHTTPURL(s.SiteURL); err != nil {
			return fmt.Errorf("site: site_url: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(s.RenamedPages))
	for i, p := range s.RenamedPages {
		if p.Old == "" || p.New == "" {
			return fmt.Errorf("site: renamed_pages[%d]: old and new are required", i)
		}
		if _, exists := seen[p.New]; exists {
			return fmt.Errorf("site: renamed_pages[%d]: duplicate new path %q", i, p.New)
		}
		seen[p.New] = struct{}{}
	}

	return nil
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("url must have a host")
	}
	return nil
}
