package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for analysis runs
type Metrics struct {
	RunsTotal      prometheus.Counter
	AnomaliesTotal prometheus.Counter
	SuspectsTotal  prometheus.Counter
	SkipsTotal     *prometheus.CounterVec // by stage and skip code
	VerdictsTotal  *prometheus.CounterVec // by verdict
	RunDuration    prometheus.Histogram
}

// NewMetrics creates and registers the pipeline metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_pipeline_runs_total",
			Help: "Total number of analysis runs",
		}),
		AnomaliesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_pipeline_anomalies_total",
			Help: "Total number of anomalies detected",
		}),
		SuspectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_pipeline_suspects_total",
			Help: "Total number of HIGH-risk events linked to anomalies",
		}),
		SkipsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_pipeline_skips_total",
			Help: "Stages that produced no value, by stage and reason",
		}, []string{"stage", "code"}),
		VerdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_pipeline_verdicts_total",
			Help: "Incident verdicts by outcome",
		}, []string{"verdict"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_pipeline_run_duration_seconds",
			Help:    "Wall time of a full analysis run",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.RunsTotal, m.AnomaliesTotal, m.SuspectsTotal, m.SkipsTotal, m.VerdictsTotal, m.RunDuration)
	return m
}

func (m *Metrics) skip(stage, code string) {
	if m == nil {
		return
	}
	m.SkipsTotal.WithLabelValues(stage, code).Inc()
}
