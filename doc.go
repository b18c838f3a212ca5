// Package sitedeco decorates a static notebook website built by a CI
// workflow: it shows readers whether a newer version of the site is being
// built, and it post-processes the built pages.
//
// sitedeco is designed as an SDK-first library with a small CLI on top. It
// follows the functional options pattern for configuration.
//
// # Build status
//
// A [StatusPoller] polls the GitHub Actions run list of a repository on an
// adaptive schedule and derives a [Display] for the page's status element:
//
//   - "latest version" while no build is running, polled every minute
//   - "new version building …", linked to the live log of the build, polled
//     every second
//   - "reload to get latest version" once that build completed, after which
//     polling stops
//
// A [Service] runs the poller and publishes each display over HTTP. Pages of
// the site include the widget script and an element with id="build-status":
//
//	<span id="build-status"></span>
//	<script src="https://status.example.org/build_status.js" defer></script>
//
// Quick start:
//
//	repo, _ := sitedeco.NewRepository("tfiers", "phd")
//	p, _ := sitedeco.NewStatusPoller(repo)
//	svc, _ := sitedeco.New(
//	    sitedeco.WithStatusPoller(p),
//	    sitedeco.WithAllowedOrigins("https://tfiers.github.io"),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	svc.Start(ctx) // blocks until context is cancelled
//
// # Post-processing
//
// A [SiteProcessor] edits the built HTML pages in place: a [RetinaResizer]
// halves the display width of figures rendered at double pixel density, fixed
// tags are appended to every head, and renamed pages get a canonical link to
// their old URL. Processing is idempotent and can run in watch mode.
//
// # Architecture
//
// sitedeco consists of several internal packages (under internal/):
//
//   - internal/poller: HTTP client and the explicit polling loop
//   - internal/store: latest display with pub/sub for real-time updates
//   - internal/server: HTTP server with REST API and Server-Sent Events
//   - internal/metrics: Prometheus collectors
//   - internal/telemetry: OpenTelemetry tracing setup
//   - internal/htmlpage, internal/imagesize, internal/watch: page editing,
//     image size lookup and file watching for the post-processor
//   - widget: embedded browser assets
//
// The internal packages are not part of the public API and may change
// without notice.
package sitedeco
