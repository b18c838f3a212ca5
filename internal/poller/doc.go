// Package poller provides the HTTP client and the scheduling loop behind the
// build status poller.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with per-request timeouts, a body size
//     limit, ETag conditional requests and OpenTelemetry instrumentation
//   - [Scheduler]: explicit loop that runs a step, emits its value and waits
//     the delay the step asked for
//   - [Clock]: time source, replaced by a fake in tests
//
// Users of the sitedeco library should not need to interact with this
// package directly.
package poller
