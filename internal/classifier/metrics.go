package classifier

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for classification batches
type Metrics struct {
	RequestsTotal *prometheus.CounterVec // by provider and outcome
	CacheHits     prometheus.Counter
	Latency       prometheus.Histogram
}

// NewMetrics creates and registers the classifier metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_classifier_requests_total",
			Help: "Classification requests by provider and outcome",
		}, []string{"provider", "outcome"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_classifier_cache_hits_total",
			Help: "Classifications served from the cache",
		}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_classifier_request_duration_seconds",
			Help:    "Latency of classification requests",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.RequestsTotal, m.CacheHits, m.Latency)
	return m
}
