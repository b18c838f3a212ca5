package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// EnvPrefix prefixes every sitedeco environment variable.
const EnvPrefix = "SITEDECO_"

// envOverrides holds the settings that can be set from the environment.
// Unset variables leave the zero value, which leaves the file setting alone.
type envOverrides struct {
	Title          string   `env:"TITLE"`
	Port           int      `env:"PORT"`
	Repository     string   `env:"REPOSITORY"`
	APIBase        string   `env:"API_BASE"`
	GitHubToken    string   `env:"GITHUB_TOKEN"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`
	RateLimit      int      `env:"RATE_LIMIT"`
	SiteDir        string   `env:"SITE_DIR"`
	SiteURL        string   `env:"SITE_URL"`
}

// otelEnv reads the standard OpenTelemetry variable, which is not prefixed.
type otelEnv struct {
	Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// ApplyEnv overrides cfg with SITEDECO_* environment variables and
// OTEL_EXPORTER_OTLP_ENDPOINT, read through l, then validates the result.
//
// Pass [envconfig.OsLookuper] to read the process environment. A
// SITEDECO_GITHUB_TOKEN is sent as a bearer token on every API request.
func ApplyEnv(ctx context.Context, cfg *Config, l envconfig.Lookuper) error {
	var env envOverrides
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, l),
	}); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	var otel otelEnv
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &otel,
		Lookuper: l,
	}); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if env.Title != "" {
		cfg.Title = env.Title
	}
	if env.Port != 0 {
		cfg.Port = env.Port
	}
	if env.Repository != "" {
		repo := cfg.Repository
		if repo == nil {
			repo = &RepositoryConfig{}
		}
		if err := repo.parseShorthand(env.Repository); err != nil {
			return fmt.Errorf("%sREPOSITORY: %w", EnvPrefix, err)
		}
		cfg.Repository = repo
	}
	if env.APIBase != "" && cfg.Repository != nil {
		cfg.Repository.APIBase = env.APIBase
	}
	if env.GitHubToken != "" && cfg.Repository != nil {
		if cfg.Repository.Headers == nil {
			cfg.Repository.Headers = make(map[string]string)
		}
		cfg.Repository.Headers["Authorization"] = "Bearer " + env.GitHubToken
	}
	if len(env.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = env.AllowedOrigins
	}
	if env.RateLimit != 0 {
		cfg.RateLimit = env.RateLimit
	}
	if env.SiteDir != "" || env.SiteURL != "" {
		if cfg.Site == nil {
			cfg.Site = &SiteConfig{}
		}
		if env.SiteDir != "" {
			cfg.Site.Dir = env.SiteDir
		}
		if env.SiteURL != "" {
			cfg.Site.SiteURL = env.SiteURL
		}
	}
	if otel.Endpoint != "" {
		cfg.Telemetry.OTLPEndpoint = otel.Endpoint
	}

	return cfg.Validate()
}
