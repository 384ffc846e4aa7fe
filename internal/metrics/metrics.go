// Package metrics registers the Prometheus collectors for the gatekeeper.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the gatekeeper.
type Metrics struct {
	DeniedRequests   *prometheus.CounterVec
	SweepEvictions   prometheus.Counter
	ResolverFailures prometheus.Counter
	LookupRejections prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		DeniedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_denied_requests_total",
			Help: "Requests denied by country block",
		}, []string{"country"}),
		SweepEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_sweep_evictions_total",
			Help: "Temporal blocks evicted by the expiry sweeper",
		}),
		ResolverFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_resolver_failures_total",
			Help: "Geolocation resolutions degraded to UNKNOWN",
		}),
		LookupRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_lookup_rejections_total",
			Help: "Lookup proxy requests rejected by the rate limiter",
		}),
	}

	prometheus.MustRegister(
		m.DeniedRequests,
		m.SweepEvictions,
		m.ResolverFailures,
		m.LookupRejections,
	)

	return m
}

// Close unregisters all metrics.
func (m *Metrics) Close() {
	prometheus.Unregister(m.DeniedRequests)
	prometheus.Unregister(m.SweepEvictions)
	prometheus.Unregister(m.ResolverFailures)
	prometheus.Unregister(m.LookupRejections)
}
