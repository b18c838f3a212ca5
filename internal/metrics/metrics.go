// Package metrics defines the Prometheus collectors of the build status
// poller.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitedeco"

// Poll outcomes recorded by [Metrics.ObservePoll].
const (
	OutcomeLatest   = "latest"
	OutcomeBuilding = "building"
	OutcomeReload   = "reload"
	OutcomeError    = "error"
)

// Metrics holds the poller collectors.
type Metrics struct {
	polls        *prometheus.CounterVec
	pollDuration prometheus.Histogram
	building     prometheus.Gauge
	lastPoll     prometheus.Gauge
	nextPoll     prometheus.Gauge
	callbackErrs prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Build status polls by outcome.",
		}, []string{"outcome"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time spent waiting on the CI provider API per poll.",
			Buckets:   prometheus.DefBuckets,
		}),
		building: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "building",
			Help:      "1 while a new version of the site is being built.",
		}),
		lastPoll: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_poll_timestamp_seconds",
			Help:      "Unix time of the last successful poll.",
		}),
		nextPoll: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "next_poll_delay_seconds",
			Help:      "Delay before the next poll, 0 once polling stopped.",
		}),
		callbackErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_panics_total",
			Help:      "Display callbacks that panicked.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.polls, m.pollDuration, m.building, m.lastPoll, m.nextPoll, m.callbackErrs)
	}
	return m
}

// ObservePoll records a successful poll.
func (m *Metrics) ObservePoll(outcome string, building bool, latency, next time.Duration, at time.Time) {
	m.polls.WithLabelValues(outcome).Inc()
	m.pollDuration.Observe(latency.Seconds())
	if building {
		m.building.Set(1)
	} else {
		m.building.Set(0)
	}
	m.lastPoll.Set(float64(at.Unix()))
	m.nextPoll.Set(next.Seconds())
}

// ObservePollError records a failed poll, after which polling stops.
func (m *Metrics) ObservePollError() {
	m.polls.WithLabelValues(OutcomeError).Inc()
	m.nextPoll.Set(0)
}

// ObserveCallbackPanic records a recovered display callback panic.
func (m *Metrics) ObserveCallbackPanic() {
	m.callbackErrs.Inc()
}
