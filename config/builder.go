package config

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/tfiers/sitedeco"
)

// BuildRepository converts the repository section into an SDK Repository.
func BuildRepository(cfg *Config) (sitedeco.Repository, error) {
	rc := cfg.Repository
	if rc == nil {
		return sitedeco.Repository{}, errors.New("no repository configured")
	}

	var opts []sitedeco.RepositoryOption
	if rc.APIBase != "" {
		opts = append(opts, sitedeco.WithAPIBase(rc.APIBase))
	}
	if rc.Timeout != 0 {
		opts = append(opts, sitedeco.WithTimeout(rc.Timeout.Duration()))
	}
	if len(rc.Headers) > 0 {
		opts = append(opts, sitedeco.WithHeaders(mapToKeyValuePairs(rc.Headers)...))
	}

	return sitedeco.NewRepository(rc.Owner, rc.Name, opts...)
}

// BuildStatusPoller builds the poller for the configured repository.
func BuildStatusPoller(cfg *Config, logger *slog.Logger) (*sitedeco.StatusPoller, error) {
	repo, err := BuildRepository(cfg)
	if err != nil {
		return nil, err
	}

	var opts []sitedeco.PollerOption
	if cfg.Poll.IdleInterval != 0 {
		opts = append(opts, sitedeco.WithIdleInterval(cfg.Poll.IdleInterval.Duration()))
	}
	if cfg.Poll.BuildingInterval != 0 {
		opts = append(opts, sitedeco.WithBuildingInterval(cfg.Poll.BuildingInterval.Duration()))
	}
	if cfg.Poll.TimeFormat != "" {
		opts = append(opts, sitedeco.WithTimeFormat(cfg.Poll.TimeFormat))
	}
	if logger != nil {
		opts = append(opts, sitedeco.WithPollerLogger(logger))
	}

	return sitedeco.NewStatusPoller(repo, opts...)
}

// ServiceOptions returns the [sitedeco.Option]s that serve p as configured.
func ServiceOptions(cfg *Config, p *sitedeco.StatusPoller, logger *slog.Logger) []sitedeco.Option {
	opts := []sitedeco.Option{
		sitedeco.WithStatusPoller(p),
		sitedeco.WithPort(cfg.Port),
		sitedeco.WithRateLimit(cfg.RateLimit),
	}
	if cfg.Title != "" {
		opts = append(opts, sitedeco.WithTitle(cfg.Title))
	}
	if len(cfg.AllowedOrigins) > 0 {
		opts = append(opts, sitedeco.WithAllowedOrigins(cfg.AllowedOrigins...))
	}
	if logger != nil {
		opts = append(opts, sitedeco.WithLogger(logger))
	}
	return opts
}

// BuildSiteProcessor builds the post-processor for the configured site.
func BuildSiteProcessor(cfg *Config, logger *slog.Logger) (*sitedeco.SiteProcessor, error) {
	sc := cfg.Site
	if sc == nil {
		return nil, errors.New("no site configured")
	}

	var opts []sitedeco.SiteOption

	if sc.Retina.IsEnabled() {
		resizer, err := buildRetinaResizer(sc.Retina)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sitedeco.WithRetinaResizer(resizer))
	}

	if len(sc.HeadTags) > 0 {
		opts = append(opts, sitedeco.WithHeadTags(sc.HeadTags...))
	}

	if len(sc.RenamedPages) > 0 {
		pages := make([]sitedeco.RenamedPage, 0, len(sc.RenamedPages))
		for _, p := range sc.RenamedPages {
			pages = append(pages, sitedeco.RenamedPage{OldPath: p.Old, NewPath: p.New})
		}
		opts = append(opts, sitedeco.WithRenamedPages(sc.SiteURL, pages...))
	}

	if logger != nil {
		opts = append(opts, sitedeco.WithSiteLogger(logger))
	}

	return sitedeco.NewSiteProcessor(sc.Dir, opts...)
}

func buildRetinaResizer(rc RetinaConfig) (*sitedeco.RetinaResizer, error) {
	var opts []sitedeco.RetinaOption
	if rc.MinPixels != 0 {
		opts = append(opts, sitedeco.WithMinPixels(rc.MinPixels))
	}
	if rc.ContainerClass != "" {
		opts = append(opts, sitedeco.WithContainerClass(rc.ContainerClass))
	}
	return sitedeco.NewRetinaResizer(opts...)
}

// mapToKeyValuePairs converts a map to a slice of key-value pairs, sorted by
// key for deterministic ordering.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
