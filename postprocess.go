package sitedeco

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/tfiers/sitedeco/internal/htmlpage"
	"github.com/tfiers/sitedeco/internal/imagesize"
	"github.com/tfiers/sitedeco/internal/watch"
)

// RenamedPage maps a page's current path to the path it was published under
// before. Both are relative to the site root, with forward slashes.
type RenamedPage struct {
	OldPath string
	NewPath string
}

// SiteReport summarizes one [SiteProcessor.Process] pass.
type SiteReport struct {
	// Pages is the number of HTML pages visited.
	Pages int

	// Changed is the number of pages rewritten.
	Changed int

	// Failed is the number of pages that could not be processed.
	Failed int

	// Figures aggregates the retina resize reports of all pages.
	Figures ResizeReport

	// HeadTags is the number of head tags added over all pages.
	HeadTags int

	// Canonicals is the number of renamed pages whose canonical link was set.
	Canonicals int
}

// SiteProcessor applies post-build edits to the HTML pages of a static site:
//   - halving the display width of high density figures (see [RetinaResizer])
//   - appending fixed tags to every page head, such as robots or
//     site verification meta tags
//   - pointing the canonical link of renamed pages at their old URL, so that
//     annotations made on the old URL keep showing
//
// Every edit is idempotent and a page is only rewritten when an edit changed
// it, so processing a site twice leaves it as after the first pass.
type SiteProcessor struct {
	dir      string
	resizer  *RetinaResizer
	headTags []*html.Node
	siteURL  string
	renamed  map[string]string
	resolver *imagesize.Resolver
	logger   *slog.Logger
}

// NewSiteProcessor creates a [SiteProcessor] for the built site in dir.
//
// Without options the processor does nothing; configure at least one edit.
//
// Example:
//
//	resizer, _ := sitedeco.NewRetinaResizer()
//	sp, err := sitedeco.NewSiteProcessor("_build/html",
//	    sitedeco.WithRetinaResizer(resizer),
//	    sitedeco.WithHeadTags(`<meta name="robots" content="noindex" />`),
//	)
func NewSiteProcessor(dir string, opts ...SiteOption) (*SiteProcessor, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("site directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("site directory %s is not a directory", dir)
	}

	cfg := &siteConfig{renamed: make(map[string]string)}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SiteProcessor{
		dir:      dir,
		resizer:  cfg.resizer,
		headTags: cfg.headTags,
		siteURL:  cfg.siteURL,
		renamed:  cfg.renamed,
		resolver: imagesize.NewResolver(dir),
		logger:   logger,
	}, nil
}

// Dir returns the site directory.
func (sp *SiteProcessor) Dir() string {
	return sp.dir
}

// Process edits every HTML page under the site directory once.
//
// Pages that fail to parse, render or write are logged and counted in
// [SiteReport.Failed]; they do not stop the pass. Process returns an error
// only when the directory cannot be walked or ctx is cancelled.
func (sp *SiteProcessor) Process(ctx context.Context) (SiteReport, error) {
	var report SiteReport
	seen := make(map[string]bool)

	err := filepath.WalkDir(sp.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != sp.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isPage(p) {
			return nil
		}

		rel, err := filepath.Rel(sp.dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		seen[rel] = true
		report.Pages++

		page, err := sp.processPage(p, rel)
		if err != nil {
			report.Failed++
			sp.logger.Warn("failed to process page", "page", rel, "error", err)
			return nil
		}

		report.Figures.Add(page.figures)
		report.HeadTags += page.headTags
		if page.canonical {
			report.Canonicals++
		}
		if page.changed {
			report.Changed++
			sp.logger.Debug("page updated", "page", rel,
				"figures_resized", page.figures.Resized,
				"head_tags", page.headTags,
				"canonical", page.canonical,
			)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("failed to process site %s: %w", sp.dir, err)
	}

	for newPath := range sp.renamed {
		if !seen[newPath] {
			sp.logger.Warn("renamed page not found in site", "page", newPath)
		}
	}

	return report, nil
}

// pageResult is the outcome of editing a single page.
type pageResult struct {
	changed   bool
	figures   ResizeReport
	headTags  int
	canonical bool
}

func (sp *SiteProcessor) processPage(file, rel string) (pageResult, error) {
	var res pageResult

	original, err := os.ReadFile(file)
	if err != nil {
		return res, err
	}
	doc, err := htmlpage.Parse(bytes.NewReader(original))
	if err != nil {
		return res, err
	}

	if sp.resizer != nil {
		res.figures = sp.resizer.Resize(doc, func(src string) (int, int, error) {
			size, err := sp.resolver.Lookup(rel, src)
			if err != nil {
				if !errors.Is(err, imagesize.ErrRemote) {
					sp.logger.Debug("figure size unknown", "page", rel, "src", truncate(src, 80), "error", err)
				}
				return 0, 0, err
			}
			return size.Width, size.Height, nil
		})
	}

	if len(sp.headTags) > 0 {
		res.headTags, err = htmlpage.AppendToHead(doc, sp.headTags...)
		if err != nil {
			return res, err
		}
	}

	if oldPath, ok := sp.renamed[rel]; ok {
		res.canonical, err = htmlpage.SetCanonical(doc, sp.siteURL+oldPath)
		if err != nil {
			return res, err
		}
	}

	if res.figures.Resized == 0 && res.headTags == 0 && !res.canonical {
		return res, nil
	}

	rendered, err := htmlpage.Render(doc)
	if err != nil {
		return res, err
	}
	if bytes.Equal(rendered, original) {
		return res, nil
	}
	if err := writeFileAtomic(file, rendered); err != nil {
		return res, err
	}
	res.changed = true
	return res, nil
}

// Watch processes the site, then watches it and reprocesses it whenever
// pages or images change, until ctx is cancelled.
func (sp *SiteProcessor) Watch(ctx context.Context) error {
	w, err := watch.New(sp.dir, watch.Options{
		Match:  func(p string) bool { return isPage(p) || isImage(p) },
		Logger: sp.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", sp.dir, err)
	}
	defer func() { _ = w.Close() }()

	sp.processAndLog(ctx)

	sp.logger.Info("watching site", "dir", sp.dir)
	return w.Run(ctx, func(paths []string) {
		sp.logger.Debug("site changed", "files", len(paths))
		sp.resolver.Forget()
		sp.processAndLog(ctx)
	})
}

func (sp *SiteProcessor) processAndLog(ctx context.Context) {
	report, err := sp.Process(ctx)
	if err != nil {
		if ctx.Err() == nil {
			sp.logger.Error("site processing failed", "error", err)
		}
		return
	}
	sp.logger.Info("site processed",
		"pages", report.Pages,
		"changed", report.Changed,
		"failed", report.Failed,
		"figures_resized", report.Figures.Resized,
	)
}

func isPage(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".html")
}

func isImage(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}

// truncate shortens s to at most n runes for log output.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

// writeFileAtomic replaces file through a temporary file in the same
// directory, keeping the original permissions.
func writeFileAtomic(file string, data []byte) error {
	info, err := os.Stat(file)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(file), ".sitedeco-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), file)
}

// siteConfig holds mutable state during processor construction.
type siteConfig struct {
	resizer  *RetinaResizer
	headTags []*html.Node
	siteURL  string
	renamed  map[string]string
	logger   *slog.Logger
}

// SiteOption configures a [SiteProcessor] during construction.
//
// Built-in options: [WithRetinaResizer], [WithHeadTags], [WithRenamedPages],
// [WithSiteLogger].
type SiteOption func(*siteConfig) error

// WithRetinaResizer resizes high density figures with r.
func WithRetinaResizer(r *RetinaResizer) SiteOption {
	return func(cfg *siteConfig) error {
		if r == nil {
			return errors.New("retina resizer cannot be nil")
		}
		cfg.resizer = r
		return nil
	}
}

// WithHeadTags appends each tag to the head of every page that does not
// already contain an equal tag.
//
// Returns an error if a tag is not valid head markup.
func WithHeadTags(tags ...string) SiteOption {
	return func(cfg *siteConfig) error {
		for _, tag := range tags {
			nodes, err := htmlpage.ParseHeadTags(tag)
			if err != nil {
				return fmt.Errorf("invalid head tag: %w", err)
			}
			cfg.headTags = append(cfg.headTags, nodes...)
		}
		return nil
	}
}

// WithRenamedPages sets the canonical link of each renamed page to siteURL
// followed by its old path.
//
// Example:
//
//	sitedeco.WithRenamedPages("https://tfiers.github.io/phd/", sitedeco.RenamedPage{
//	    OldPath: "nb/2021_01_01__vary_params.html",
//	    NewPath: "nb/2021-01-01__vary_params.html",
//	})
//
// Returns an error if siteURL is not an absolute http(s) URL or a path is
// empty or absolute.
func WithRenamedPages(siteURL string, pages ...RenamedPage) SiteOption {
	return func(cfg *siteConfig) error {
		u, err := url.Parse(siteURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("site URL %q must be an absolute http(s) URL", siteURL)
		}
		if !strings.HasSuffix(siteURL, "/") {
			siteURL += "/"
		}
		if cfg.siteURL != "" && cfg.siteURL != siteURL {
			return errors.New("renamed pages configured with different site URLs")
		}
		cfg.siteURL = siteURL

		for i, p := range pages {
			oldPath, err := cleanPagePath(p.OldPath)
			if err != nil {
				return fmt.Errorf("renamed page %d: old path: %w", i, err)
			}
			newPath, err := cleanPagePath(p.NewPath)
			if err != nil {
				return fmt.Errorf("renamed page %d: new path: %w", i, err)
			}
			cfg.renamed[newPath] = oldPath
		}
		return nil
	}
}

// WithSiteLogger sets the logger used by the processor. Defaults to
// [slog.Default].
func WithSiteLogger(logger *slog.Logger) SiteOption {
	return func(cfg *siteConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

func cleanPagePath(p string) (string, error) {
	if p == "" {
		return "", errors.New("cannot be empty")
	}
	if strings.HasPrefix(p, "/") {
		return "", errors.New("must be relative to the site root")
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("must stay within the site root")
	}
	return cleaned, nil
}
