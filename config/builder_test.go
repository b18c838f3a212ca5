package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tfiers/sitedeco"
)

func TestBuildRepository(t *testing.T) {
	cfg := &Config{
		Repository: &RepositoryConfig{
			Owner:   "tfiers",
			Name:    "phd",
			APIBase: "https://github.example.com/api/v3/",
			Timeout: Duration(5 * time.Second),
			Headers: map[string]string{
				"Authorization": "Bearer token",
			},
		},
	}

	repo, err := BuildRepository(cfg)
	if err != nil {
		t.Fatalf("BuildRepository() error = %v", err)
	}

	if repo.FullName() != "tfiers/phd" {
		t.Errorf("FullName() = %q, want tfiers/phd", repo.FullName())
	}
	if repo.RunsURL() != "https://github.example.com/api/v3/repos/tfiers/phd/actions/runs" {
		t.Errorf("RunsURL() = %q", repo.RunsURL())
	}
	if repo.Timeout() != 5*time.Second {
		t.Errorf("Timeout() = %v, want 5s", repo.Timeout())
	}
	if got := repo.Headers()["Authorization"]; got != "Bearer token" {
		t.Errorf("Headers()[Authorization] = %q, want 'Bearer token'", got)
	}
}

func TestBuildRepository_Missing(t *testing.T) {
	_, err := BuildRepository(&Config{})
	if err == nil {
		t.Fatal("BuildRepository() expected error, got nil")
	}
}

func TestBuildStatusPoller(t *testing.T) {
	cfg, err := Parse([]byte(`
repository: tfiers/phd
poll:
  idle_interval: 2m
  time_format: "15:04"
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	p, err := BuildStatusPoller(cfg, nil)
	if err != nil {
		t.Fatalf("BuildStatusPoller() error = %v", err)
	}
	if p.Repository().FullName() != "tfiers/phd" {
		t.Errorf("Repository() = %q, want tfiers/phd", p.Repository().FullName())
	}
	if p.State() != sitedeco.StateIdle {
		t.Errorf("State() = %v, want StateIdle", p.State())
	}
}

func TestServiceOptions(t *testing.T) {
	cfg, err := Parse([]byte(`
title: Preview
port: 19380
repository: tfiers/phd
allowed_origins: [https://tfiers.github.io]
rate_limit: 60
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	p, err := BuildStatusPoller(cfg, nil)
	if err != nil {
		t.Fatalf("BuildStatusPoller() error = %v", err)
	}

	svc, err := sitedeco.New(ServiceOptions(cfg, p, nil)...)
	if err != nil {
		t.Fatalf("sitedeco.New() error = %v", err)
	}
	if svc.Port() != 19380 {
		t.Errorf("Port() = %d, want 19380", svc.Port())
	}
	if svc.StatusPoller() != p {
		t.Error("StatusPoller() is not the built poller")
	}
}

func TestBuildSiteProcessor(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "index.html")
	if err := os.WriteFile(page, []byte("<html><head><title>x</title></head><body></body></html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{
		Site: &SiteConfig{
			Dir:      dir,
			SiteURL:  "https://tfiers.github.io/phd",
			HeadTags: []string{`<meta name="robots" content="noindex">`},
			RenamedPages: []RenamedPageConfig{
				{Old: "old.html", New: "index.html"},
			},
		},
	}

	sp, err := BuildSiteProcessor(cfg, nil)
	if err != nil {
		t.Fatalf("BuildSiteProcessor() error = %v", err)
	}
	if sp.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", sp.Dir(), dir)
	}

	report, err := sp.Process(context.Background())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if report.Changed != 1 || report.HeadTags != 1 {
		t.Errorf("report = %+v, want one changed page with one head tag", report)
	}

	got, err := os.ReadFile(page)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), `name="robots"`) {
		t.Errorf("page missing head tag:\n%s", got)
	}
}

func TestBuildSiteProcessor_Errors(t *testing.T) {
	tests := []struct {
		name string
		site *SiteConfig
	}{
		{"no site", nil},
		{"missing dir", &SiteConfig{Dir: filepath.Join(t.TempDir(), "absent")}},
		{"bad head tag", &SiteConfig{Dir: t.TempDir(), HeadTags: []string{""}}},
		{"bad min pixels", &SiteConfig{Dir: t.TempDir(), Retina: RetinaConfig{MinPixels: -1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildSiteProcessor(&Config{Site: tt.site}, nil); err == nil {
				t.Fatal("BuildSiteProcessor() expected error, got nil")
			}
		})
	}
}

func TestBuildRetinaResizer(t *testing.T) {
	tests := []struct {
		name       string
		cfg        RetinaConfig
		w, h       int
		wantRetina bool
	}{
		{"default threshold above", RetinaConfig{}, 600, 300, true},
		{"default threshold equal", RetinaConfig{}, 500, 300, false},
		{"custom threshold", RetinaConfig{MinPixels: 1000}, 50, 30, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := buildRetinaResizer(tt.cfg)
			if err != nil {
				t.Fatalf("buildRetinaResizer() error = %v", err)
			}
			if got := r.IsRetina(tt.w, tt.h); got != tt.wantRetina {
				t.Errorf("IsRetina(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.wantRetina)
			}
		})
	}
}

func TestMapToKeyValuePairs_Sorted(t *testing.T) {
	got := mapToKeyValuePairs(map[string]string{"b": "2", "a": "1", "c": "3"})
	want := []string{"a", "1", "b", "2", "c", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mapToKeyValuePairs() = %v, want %v", got, want)
	}
}
