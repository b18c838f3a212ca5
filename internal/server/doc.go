// Package server provides the HTTP server for the build status widget and API.
//
// This package handles all HTTP concerns:
//
//   - Widget serving: the embedded build_status.js and a preview page
//   - REST API: JSON snapshot at "/api/status" and an HTML fragment at "/build-status"
//   - Server-Sent Events: real-time updates at "/api/sse"
//   - Operations: "/healthz" and Prometheus "/metrics"
//
// Routing uses chi with CORS, per-IP rate limiting and OpenTelemetry
// middleware. The server supports graceful shutdown via context cancellation,
// with a 5-second timeout for in-flight requests.
//
// Users of the sitedeco library should not need to interact with this
// package directly. The server is started automatically by [sitedeco.Service.Start].
package server
