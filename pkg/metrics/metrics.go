// Package metrics declares the prometheus collectors exported by relman.
//
// Collectors are registered lazily on a registerer by Init. When Init is not
// called, metrics are still collected but never exported.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "relman"

var (
	// BackendCalls measures the latency of repository backend calls
	BackendCalls = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "repository",
		Name:      "call_duration_seconds",
		Help:      "Latency of repository backend calls",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend", "operation", "outcome"})

	// CacheLookups counts file cache lookups, by result (hit, miss)
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "File cache lookups",
	}, []string{"result"})

	// ReleaseRequests counts release requests, by outcome
	ReleaseRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "release",
		Name:      "requests_total",
		Help:      "Release requests built",
	}, []string{"outcome"})

	// ConflictRetries counts branch updates retried after a conflict
	ConflictRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "release",
		Name:      "conflict_retries_total",
		Help:      "Branch updates retried after a conflict",
	})

	// WebhookEvents counts webhook deliveries, by event and outcome
	WebhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "webhook_events_total",
		Help:      "Webhook deliveries received",
	}, []string{"event", "outcome"})

	// HTTPRequests measures the latency of API requests, by route and status code
	HTTPRequests = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "Latency of API requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "code"})

	initOnce sync.Once
)

// Collectors returns all collectors declared by this package
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		BackendCalls,
		CacheLookups,
		ReleaseRequests,
		ConflictRetries,
		WebhookEvents,
		HTTPRequests,
	}
}

// Init registers all collectors. Only the first call has an effect.
func Init(registerer prometheus.Registerer) {
	initOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		registerer.MustRegister(Collectors()...)
	})
}

// Outcome labels an operation outcome from its error
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Since observes the duration of a backend call started at some time
func Since(start time.Time, backend, operation string, err error) {
	BackendCalls.WithLabelValues(backend, operation, Outcome(err)).Observe(time.Since(start).Seconds())
}
