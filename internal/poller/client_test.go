package poller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"sync/atomic"
	"testing"
	"time"
)

// TestClient_ConnectionReuse verifies that the HTTP client reuses connections
// when making sequential requests to the same host. This validates that the
// Transport is configured with keep-alives enabled and connection pooling active.
func TestClient_ConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient()

	var reusedCount int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount++
			}
		},
	}

	const numRequests = 5

	// make sequential requests to ensure pool has opportunity to reuse
	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		resp := client.Fetch(ctx, server.URL, nil, 5*time.Second)
		if resp.Error != nil {
			t.Fatalf("request %d failed: %v", i, resp.Error)
		}
	}

	// with connection pooling enabled, we expect at least some reuse
	// (all requests after the first should reuse the connection)
	expectedMinReuse := numRequests - 2 // allow some tolerance
	if reusedCount < expectedMinReuse {
		t.Errorf("expected at least %d reused connections, got %d out of %d requests",
			expectedMinReuse, reusedCount, numRequests)
	}
}

// TestClient_Close verifies that Close() is safe to call and idempotent.
func TestClient_Close(t *testing.T) {
	client := NewClient()

	// should not panic
	client.Close()

	// calling Close multiple times should be safe (idempotent)
	client.Close()
	client.Close()
}

// TestClient_Close_NilClient verifies that Close() handles nil receiver safely.
func TestClient_Close_NilClient(t *testing.T) {
	var client *Client

	// should not panic on nil receiver
	client.Close()
}

// TestClient_Close_ActuallyClosesConnections verifies that Close closes idle
// connections, but the client remains usable for new requests.
func TestClient_Close_ActuallyClosesConnections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient()

	// establish connections
	for i := 0; i < 5; i++ {
		resp := client.Fetch(context.Background(), server.URL, nil, time.Second)
		if resp.Error != nil {
			t.Fatalf("request %d failed: %v", i, resp.Error)
		}
	}

	// close idle connections
	client.Close()

	// subsequent requests should still work (new connections established)
	resp := client.Fetch(context.Background(), server.URL, nil, time.Second)
	if resp.Error != nil {
		t.Errorf("request after Close failed: %v", resp.Error)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestClient_Fetch_SendsHeaders(t *testing.T) {
	var gotAccept, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"workflow_runs":[]}`))
	}))
	defer server.Close()

	client := NewClient()
	defer client.Close()

	resp := client.Fetch(context.Background(), server.URL, map[string]string{
		"Accept":     "application/vnd.github+json",
		"User-Agent": "sitedeco-test",
	}, time.Second)
	if !resp.OK() {
		t.Fatalf("Fetch() not OK: status=%d err=%v", resp.StatusCode, resp.Error)
	}
	if gotAccept != "application/vnd.github+json" {
		t.Errorf("Accept = %q, want %q", gotAccept, "application/vnd.github+json")
	}
	if gotAgent != "sitedeco-test" {
		t.Errorf("User-Agent = %q, want %q", gotAgent, "sitedeco-test")
	}
	if string(resp.Body) != `{"workflow_runs":[]}` {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestClient_Fetch_NonSuccessStatusIsNotOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	}))
	defer server.Close()

	resp := NewClient().Fetch(context.Background(), server.URL, nil, time.Second)
	if resp.Error != nil {
		t.Fatalf("Fetch() error = %v", resp.Error)
	}
	if resp.OK() {
		t.Error("OK() = true for 403 response")
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	resp := NewClient().Fetch(context.Background(), server.URL, nil, 50*time.Millisecond)
	if resp.Error == nil {
		t.Fatal("Fetch() expected timeout error, got nil")
	}
	if resp.OK() {
		t.Error("OK() = true for timed out request")
	}
}

func TestClient_Fetch_ConditionalRequest(t *testing.T) {
	const etag = `W/"runs-1"`
	var requests, conditional atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("If-None-Match") == etag {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		_, _ = w.Write([]byte(`{"workflow_runs":[{"status":"completed"}]}`))
	}))
	defer server.Close()

	client := NewClient()
	defer client.Close()

	first := client.Fetch(context.Background(), server.URL, nil, time.Second)
	if !first.OK() || first.Cached {
		t.Fatalf("first Fetch() OK=%v Cached=%v, want fresh OK response", first.OK(), first.Cached)
	}

	second := client.Fetch(context.Background(), server.URL, nil, time.Second)
	if !second.OK() {
		t.Fatalf("second Fetch() not OK: status=%d err=%v", second.StatusCode, second.Error)
	}
	if !second.Cached {
		t.Error("second Fetch() Cached = false, want true")
	}
	if second.StatusCode != http.StatusNotModified {
		t.Errorf("StatusCode = %d, want 304", second.StatusCode)
	}
	if string(second.Body) != string(first.Body) {
		t.Errorf("cached Body = %q, want %q", second.Body, first.Body)
	}
	if requests.Load() != 2 || conditional.Load() != 1 {
		t.Errorf("requests = %d, conditional = %d, want 2 and 1", requests.Load(), conditional.Load())
	}
}

func TestClient_Fetch_NotModifiedWithoutCacheIsNotOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	resp := NewClient().Fetch(context.Background(), server.URL, nil, time.Second)
	if resp.OK() {
		t.Error("OK() = true for 304 without a cached body")
	}
	if resp.Cached {
		t.Error("Cached = true without a cached body")
	}
}

func TestClient_ETagCacheIsBounded(t *testing.T) {
	client := NewClient()
	for i := 0; i < maxCachedURLs+3; i++ {
		client.remember(fmt.Sprintf("https://api.test/runs/%d/jobs", i), cachedBody{etag: "x"})
	}

	client.mu.Lock()
	n := len(client.etags)
	client.mu.Unlock()
	if n > maxCachedURLs {
		t.Errorf("cache holds %d entries, want at most %d", n, maxCachedURLs)
	}
}
