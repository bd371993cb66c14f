// Package metrics exposes Prometheus instruments for the search pipeline and
// the HTTP surface. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nonrev"

// Metrics holds all prometheus metrics.
type Metrics struct {
	CacheLookups     *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec
	PartialFailures  *prometheus.CounterVec
	SeatUpdates      prometheus.Counter
	SeatsSeeded      prometheus.Counter
	CachePurged      prometheus.Counter
	SearchDuration   *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
}

// New registers the metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Flight cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream page requests by outcome (ok, error, timeout).",
		}, []string{"outcome"}),
		PartialFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_failures_total",
			Help:      "Best-effort steps that failed without failing the request.",
		}, []string{"operation"}),
		SeatUpdates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seat_updates_total",
			Help:      "Accepted seat count reports.",
		}),
		SeatsSeeded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seats_seeded_total",
			Help:      "Placeholder seat rows created for newly seen flights.",
		}),
		CachePurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_purged_total",
			Help:      "Cached flight lists deleted by the background purger.",
		}),
		SearchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Time to answer a search, by result source.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Upstream(outcome string) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PartialFailure(operation string) {
	if m == nil {
		return
	}
	m.PartialFailures.WithLabelValues(operation).Inc()
}

func (m *Metrics) SeatUpdated() {
	if m == nil {
		return
	}
	m.SeatUpdates.Inc()
}

func (m *Metrics) Seeded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SeatsSeeded.Add(float64(n))
}

func (m *Metrics) Purged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.CachePurged.Add(float64(n))
}

func (m *Metrics) ObserveSearch(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) HTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, statusText(status)).Inc()
}

func statusText(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	}
	return "2xx"
}
