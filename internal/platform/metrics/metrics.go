// Package metrics registers the process-wide Prometheus collectors
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dupehound_jobs_processed_total",
		Help: "A counter of jobs the worker loop has finished, by job type and outcome.",
	}, []string{"type", "outcome"})
	providerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dupehound_provider_requests_total",
		Help: "A counter of outbound provider requests, by provider and request disposition.",
	}, []string{"provider", "kind"})
	cacheEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dupehound_cache_events_total",
		Help: "A counter of detection cache lookups, by cache name and hit or miss.",
	}, []string{"cache", "event"})
	scansCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dupehound_scans_completed_total",
		Help: "A counter of scans reaching a terminal status.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(jobsProcessed)
	prometheus.MustRegister(providerRequests)
	prometheus.MustRegister(cacheEvents)
	prometheus.MustRegister(scansCompleted)
}

// Metrics bundles the registered collectors for injection
type Metrics struct {
	JobsProcessed    *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	CacheEvents      *prometheus.CounterVec
	ScansCompleted   *prometheus.CounterVec
}

// New returns the shared collector set
func New() *Metrics {
	return &Metrics{
		JobsProcessed:    jobsProcessed,
		ProviderRequests: providerRequests,
		CacheEvents:      cacheEvents,
		ScansCompleted:   scansCompleted,
	}
}

// Job records a finished worker tick for one job
func (m *Metrics) Job(jobType, outcome string) {
	m.JobsProcessed.WithLabelValues(jobType, outcome).Inc()
}

// Provider records one outbound request disposition
func (m *Metrics) Provider(provider, kind string) {
	m.ProviderRequests.WithLabelValues(provider, kind).Inc()
}

// Cache records a cache lookup result
func (m *Metrics) Cache(cache, event string) {
	m.CacheEvents.WithLabelValues(cache, event).Inc()
}

// Scan records a scan reaching done or failed
func (m *Metrics) Scan(status string) {
	m.ScansCompleted.WithLabelValues(status).Inc()
}

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler { return promhttp.Handler() }
