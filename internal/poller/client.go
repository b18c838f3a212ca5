package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBodySize = 4 << 20 // 4MB, run lists carry up to 30 runs with nested repo objects

// maxCachedURLs bounds the ETag cache: the run list plus the job lists of
// the last few runs.
const maxCachedURLs = 8

// connection pooling limits; the poller talks to a single API host
const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 4
	defaultMaxConnsPerHost     = 4
	defaultIdleConnTimeout     = 90 * time.Second
)

// Response holds the result of an HTTP request made by [Client].
type Response struct {
	// Body contains the HTTP response body, limited to 4MB.
	Body []byte

	// StatusCode is the HTTP status code.
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any error that occurred during the request.
	// nil indicates the request completed (though status may indicate an error).
	Error error

	// Cached is true when the server answered 304 Not Modified and Body is
	// the body of the earlier response carrying the same ETag.
	Cached bool
}

// OK reports whether the request completed with a 2xx status or was served
// from the ETag cache.
func (r Response) OK() bool {
	if r.Error != nil {
		return false
	}
	return r.Cached || (r.StatusCode >= 200 && r.StatusCode < 300)
}

// cachedBody is the last successful body seen for a URL.
type cachedBody struct {
	etag string
	body []byte
}

// Client is an HTTP client wrapper for polling a REST API.
//
// Client uses per-request timeouts via context rather than a global timeout.
// Requests are traced with OpenTelemetry; without a configured tracer
// provider the instrumentation is a no-op.
//
// Successful responses carrying an ETag are remembered per URL and the next
// request for that URL is made conditional with If-None-Match. GitHub does not
// count 304 responses against the API rate limit, which matters when polling
// every second during a build.
type Client struct {
	httpClient *http.Client
	transport  *http.Transport

	mu    sync.Mutex
	etags map[string]cachedBody
}

// NewClient creates a new polling [Client].
func NewClient() *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
	}
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: otelhttp.NewTransport(transport),
		},
		transport: transport,
		etags:     make(map[string]cachedBody),
	}
}

// Fetch performs a GET request and returns a structured [Response].
//
// The timeout is applied via context cancellation. Fetch always returns a
// Response; errors are captured in the Error field.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) Response {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	cached, haveCached := c.cached(url)
	if haveCached {
		req.Header.Set("If-None-Match", cached.etag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified && haveCached {
		return Response{
			Body:       cached.body,
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Cached:     true,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	if etag := resp.Header.Get("ETag"); etag != "" && resp.StatusCode == http.StatusOK {
		c.remember(url, cachedBody{etag: etag, body: body})
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

func (c *Client) cached(url string) (cachedBody, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.etags[url]
	return cb, ok
}

// remember stores the body for url. Job list URLs change with every run, so
// the cache is reset rather than grown past a handful of entries.
func (c *Client) remember(url string, cb cachedBody) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.etags[url]; !ok && len(c.etags) >= maxCachedURLs {
		clear(c.etags)
	}
	c.etags[url] = cb
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times and on a nil client. The client remains usable.
func (c *Client) Close() {
	if c == nil || c.transport == nil {
		return
	}
	c.transport.CloseIdleConnections()
}
