package config

import (
	"context"
	"strings"
	"testing"

	"github.com/sethvargo/go-envconfig"
)

func TestApplyEnv_Overrides(t *testing.T) {
	cfg, err := Parse([]byte(`
port: 8080
repository: tfiers/phd
site:
  dir: _build/html
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	lookuper := envconfig.MapLookuper(map[string]string{
		"SITEDECO_PORT":               "9000",
		"SITEDECO_TITLE":              "Preview",
		"SITEDECO_GITHUB_TOKEN":       "ghp_abc",
		"SITEDECO_ALLOWED_ORIGINS":    "https://a.example,https://b.example",
		"SITEDECO_RATE_LIMIT":         "30",
		"SITEDECO_SITE_DIR":           "/srv/site",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "http://collector:4318",
		"PORT":                        "1234", // unprefixed, ignored
	})

	if err := ApplyEnv(context.Background(), cfg, lookuper); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.Title != "Preview" {
		t.Errorf("Title = %q, want Preview", cfg.Title)
	}
	if got := cfg.Repository.Headers["Authorization"]; got != "Bearer ghp_abc" {
		t.Errorf("Headers[Authorization] = %q, want 'Bearer ghp_abc'", got)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.RateLimit != 30 {
		t.Errorf("RateLimit = %d, want 30", cfg.RateLimit)
	}
	if cfg.Site.Dir != "/srv/site" {
		t.Errorf("Site.Dir = %q, want /srv/site", cfg.Site.Dir)
	}
	if cfg.Telemetry.OTLPEndpoint != "http://collector:4318" {
		t.Errorf("OTLPEndpoint = %q", cfg.Telemetry.OTLPEndpoint)
	}
}

func TestApplyEnv_EmptyEnvironmentKeepsFile(t *testing.T) {
	cfg, err := Parse([]byte(`
port: 8181
repository: tfiers/phd
rate_limit: 60
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := ApplyEnv(context.Background(), cfg, envconfig.MapLookuper(nil)); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Port != 8181 || cfg.RateLimit != 60 {
		t.Errorf("Port = %d, RateLimit = %d, want 8181 and 60", cfg.Port, cfg.RateLimit)
	}
	if cfg.Site != nil {
		t.Errorf("Site = %+v, want nil", cfg.Site)
	}
}

func TestApplyEnv_RepositoryFromEnvironment(t *testing.T) {
	cfg := &Config{Port: 8080}

	err := ApplyEnv(context.Background(), cfg, envconfig.MapLookuper(map[string]string{
		"SITEDECO_REPOSITORY": "tfiers/phd",
		"SITEDECO_API_BASE":   "https://github.example.com/api/v3",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Repository == nil || cfg.Repository.FullName() != "tfiers/phd" {
		t.Fatalf("Repository = %+v, want tfiers/phd", cfg.Repository)
	}
	if cfg.Repository.APIBase != "https://github.example.com/api/v3" {
		t.Errorf("APIBase = %q", cfg.Repository.APIBase)
	}
}

func TestApplyEnv_Errors(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		wantErrLike string
	}{
		{
			name:        "port not a number",
			env:         map[string]string{"SITEDECO_PORT": "eighty"},
			wantErrLike: "failed to read environment",
		},
		{
			name:        "port out of range",
			env:         map[string]string{"SITEDECO_PORT": "99999"},
			wantErrLike: "port must be between",
		},
		{
			name:        "malformed repository",
			env:         map[string]string{"SITEDECO_REPOSITORY": "phd"},
			wantErrLike: "SITEDECO_REPOSITORY",
		},
		{
			name:        "bad api base",
			env:         map[string]string{"SITEDECO_API_BASE": "ftp://example.com"},
			wantErrLike: "scheme must be http or https",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(`repository: tfiers/phd`))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			err = ApplyEnv(context.Background(), cfg, envconfig.MapLookuper(tt.env))
			if err == nil {
				t.Fatal("ApplyEnv() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrLike) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErrLike)
			}
		})
	}
}
