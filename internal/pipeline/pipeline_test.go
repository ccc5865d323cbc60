package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/sentinel/internal/analysis/causal"
	"github.com/moolen/sentinel/internal/config"
	"github.com/moolen/sentinel/internal/models"
	"github.com/moolen/sentinel/internal/normalize"
)

var start = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time {
	return start.AddDate(0, 0, i)
}

// sustainedDrop is 20 days at 50000 followed by 10 days at 20000
func sustainedDrop() []models.MetricPoint {
	points := make([]models.MetricPoint, 30)
	for i := range points {
		v := 50000.0
		if i >= 20 {
			v = 20000
		}
		points[i] = models.MetricPoint{Date: day(i), Value: v}
	}
	return normalize.WithRollingConfounder(points)
}

func flatSeries(n int) []models.MetricPoint {
	points := make([]models.MetricPoint, n)
	for i := range points {
		points[i] = models.MetricPoint{Date: day(i), Value: 1000}
	}
	return normalize.WithRollingConfounder(points)
}

func incidentEvents() []models.Event {
	return []models.Event{
		{Timestamp: day(19).Add(9 * time.Hour), Risk: models.RiskLow, Message: "docs update", Source: "git"},
		{Timestamp: day(20).Add(2 * time.Hour), Risk: models.RiskHigh, Message: "sync payment API change", Source: "slack"},
		{Timestamp: day(2), Risk: models.RiskHigh, Message: "old migration", Source: "git"},
	}
}

func newPipeline(t *testing.T, mutate func(*config.Config), opts ...Option) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.Refutation.Simulations = 40
	if mutate != nil {
		mutate(cfg)
	}
	p, err := New(cfg, opts...)
	require.NoError(t, err)
	return p
}

func TestRun_SustainedDrop(t *testing.T) {
	p := newPipeline(t, nil)

	result, err := p.Run(context.Background(), Input{
		Events:         incidentEvents(),
		Metrics:        sustainedDrop(),
		ConfounderName: normalize.SynthesizedConfounder,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Nil(t, result.Skip)
	assert.False(t, result.Healthy())
	assert.Len(t, result.Baseline, 30)

	require.Len(t, result.Anomalies, 1)
	assert.Equal(t, day(20), result.Anomalies[0].Date)

	require.Len(t, result.Incidents, 1)
	incident := result.Incidents[0]
	require.Len(t, incident.Suspects, 1)
	assert.Equal(t, "sync payment API change", incident.Suspects[0].Message)
	assert.Len(t, incident.Context, 2)
	assert.Equal(t, day(20), incident.TreatmentDate)

	require.Equal(t, causal.StatusEstimated, incident.Causal.Status)
	est := incident.Causal.Estimate
	assert.InDelta(t, -30000, est.TreatmentEffect, 1e-4)
	assert.Equal(t, 10, est.DaysAffected)
	assert.InDelta(t, 300000, est.TotalImpact, 1e-2)
	assert.Equal(t, normalize.SynthesizedConfounder, est.ConfounderUsed)
	assert.InDelta(t, 30000, incident.LossPerDay(), 1e-4)

	require.NotNil(t, incident.Refutation)
	assert.Equal(t, 40, incident.Refutation.Simulations)
	assert.Equal(t, VerdictGuilty, incident.Verdict)
}

func TestRun_Idempotent(t *testing.T) {
	p := newPipeline(t, nil)
	in := Input{Events: incidentEvents(), Metrics: sustainedDrop()}

	first, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), in)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Anomalies, second.Anomalies)
	assert.Equal(t, first.Incidents, second.Incidents)
	assert.Equal(t, first.Baseline, second.Baseline)
}

func TestRun_Healthy(t *testing.T) {
	p := newPipeline(t, nil)
	result, err := p.Run(context.Background(), Input{Metrics: flatSeries(20)})
	require.NoError(t, err)

	assert.True(t, result.Healthy())
	assert.Empty(t, result.Anomalies)
	assert.NotNil(t, result.Anomalies)
	assert.Empty(t, result.Incidents)
	assert.Equal(t, 20, result.Summary.Points)
	assert.Equal(t, 1000.0, result.Summary.Mean)
	assert.Equal(t, 0.0, result.Summary.StdDev)
	assert.Equal(t, day(0), result.Summary.Start)
	assert.Equal(t, day(19), result.Summary.End)
}

func TestRun_SeriesShorterThanWindow(t *testing.T) {
	p := newPipeline(t, nil)
	result, err := p.Run(context.Background(), Input{Metrics: flatSeries(5)})
	require.NoError(t, err)

	require.NotNil(t, result.Skip)
	assert.Equal(t, models.SkipInsufficientData, result.Skip.Code)
	assert.Len(t, result.Baseline, 5)
	assert.Empty(t, result.Anomalies)
	assert.False(t, result.Healthy())
}

func TestRun_EmptyMetrics(t *testing.T) {
	p := newPipeline(t, nil)
	_, err := p.Run(context.Background(), Input{})
	require.Error(t, err)
	assert.True(t, models.IsInputError(err))
}

func TestRun_UnsortedMetrics(t *testing.T) {
	ordered := sustainedDrop()
	reversed := make([]models.MetricPoint, len(ordered))
	for i, point := range ordered {
		reversed[len(ordered)-1-i] = point
	}

	p := newPipeline(t, nil)
	want, err := p.Run(context.Background(), Input{Events: incidentEvents(), Metrics: ordered})
	require.NoError(t, err)
	got, err := p.Run(context.Background(), Input{Events: incidentEvents(), Metrics: reversed})
	require.NoError(t, err)

	require.Len(t, got.Anomalies, 1)
	assert.Equal(t, day(20), got.Anomalies[0].Date)
	assert.Equal(t, want.Anomalies, got.Anomalies)
	assert.Equal(t, want.Baseline, got.Baseline)
	assert.Equal(t, want.Incidents, got.Incidents)
	assert.Equal(t, day(0), got.Summary.Start)
	assert.Equal(t, day(29), got.Summary.End)

	// input slice is left untouched
	assert.Equal(t, day(29), reversed[0].Date)
}

func TestRun_DuplicateDates(t *testing.T) {
	points := sustainedDrop()
	points[5].Date = points[4].Date

	p := newPipeline(t, nil)
	_, err := p.Run(context.Background(), Input{Metrics: points})
	require.Error(t, err)
	assert.True(t, models.IsInputError(err))
	assert.Contains(t, err.Error(), "duplicate date "+day(4).Format(time.DateOnly))
}

func TestRun_NoSuspects(t *testing.T) {
	events := []models.Event{
		{Timestamp: day(20), Risk: models.RiskLow, Message: "css fix", Source: "git"},
		{Timestamp: day(21), Risk: models.RiskUnknown, Message: "unclassified", Source: "git"},
	}

	t.Run("required", func(t *testing.T) {
		p := newPipeline(t, nil)
		result, err := p.Run(context.Background(), Input{Events: events, Metrics: sustainedDrop()})
		require.NoError(t, err)
		require.Len(t, result.Incidents, 1)

		incident := result.Incidents[0]
		assert.Empty(t, incident.Suspects)
		assert.Len(t, incident.Context, 2)
		assert.Equal(t, causal.StatusSkipped, incident.Causal.Status)
		assert.Equal(t, models.SkipNoSuspects, incident.Causal.Skip.Code)
		assert.Nil(t, incident.Refutation)
		assert.Equal(t, VerdictUntested, incident.Verdict)
	})

	t.Run("not required", func(t *testing.T) {
		p := newPipeline(t, func(c *config.Config) { c.Causal.RequireSuspects = false })
		result, err := p.Run(context.Background(), Input{Events: events, Metrics: sustainedDrop()})
		require.NoError(t, err)
		require.Len(t, result.Incidents, 1)
		assert.Equal(t, causal.StatusEstimated, result.Incidents[0].Causal.Status)
	})
}

func TestRun_RefutationDisabled(t *testing.T) {
	p := newPipeline(t, func(c *config.Config) { c.Refutation.Enabled = false })
	result, err := p.Run(context.Background(), Input{Events: incidentEvents(), Metrics: sustainedDrop()})
	require.NoError(t, err)
	require.Len(t, result.Incidents, 1)

	incident := result.Incidents[0]
	assert.NotNil(t, incident.Causal.Estimate)
	assert.Nil(t, incident.Refutation)
	assert.Equal(t, VerdictUntested, incident.Verdict)
}

func TestRun_FirstSuspectAnchor(t *testing.T) {
	events := []models.Event{
		{Timestamp: day(18).Add(14 * time.Hour), Risk: models.RiskHigh, Message: "schema migration", Source: "git"},
		{Timestamp: day(20), Risk: models.RiskHigh, Message: "hotfix", Source: "git"},
	}
	p := newPipeline(t, func(c *config.Config) { c.Causal.TreatmentAnchor = config.AnchorFirstSuspect })

	result, err := p.Run(context.Background(), Input{Events: events, Metrics: sustainedDrop()})
	require.NoError(t, err)
	require.Len(t, result.Incidents, 1)
	assert.Equal(t, day(18), result.Incidents[0].TreatmentDate)
	assert.Equal(t, 12, result.Incidents[0].Causal.Estimate.DaysAffected)
}

func TestRun_MaxIncidents(t *testing.T) {
	points := make([]models.MetricPoint, 60)
	for i := range points {
		points[i] = models.MetricPoint{Date: day(i), Value: 1000}
	}
	for _, i := range []int{15, 30, 45} {
		points[i].Value = 100
	}
	points = normalize.WithRollingConfounder(points)

	p := newPipeline(t, func(c *config.Config) {
		c.Causal.MaxIncidents = 2
		c.Causal.RequireSuspects = false
		c.Refutation.Enabled = false
	})
	result, err := p.Run(context.Background(), Input{Metrics: points})
	require.NoError(t, err)

	assert.Len(t, result.Anomalies, 3)
	assert.Len(t, result.Incidents, 2)
	assert.Len(t, result.Warnings, 1)
}

func TestRun_CancelledContext(t *testing.T) {
	p := newPipeline(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, Input{Events: incidentEvents(), Metrics: sustainedDrop()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	p := newPipeline(t, nil, WithMetrics(metrics))

	_, err := p.Run(context.Background(), Input{Events: incidentEvents(), Metrics: sustainedDrop()})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), Input{Metrics: flatSeries(5)})
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RunsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AnomaliesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SuspectsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.VerdictsTotal.WithLabelValues(string(VerdictGuilty))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SkipsTotal.WithLabelValues("detection", string(models.SkipInsufficientData))))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.RunDuration))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Linking.WindowPolicy = "sideways"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestJudge(t *testing.T) {
	estimate := &models.CausalEstimate{TreatmentEffect: -1000}

	tests := []struct {
		name       string
		estimate   *models.CausalEstimate
		refutation *causal.RefutationResult
		want       Verdict
	}{
		{"no estimate", nil, &causal.RefutationResult{Status: causal.StatusEstimated}, VerdictUntested},
		{"no refutation", estimate, nil, VerdictUntested},
		{"skipped refutation", estimate, &causal.RefutationResult{Status: causal.StatusSkipped}, VerdictUntested},
		{"guilty", estimate, &causal.RefutationResult{Status: causal.StatusEstimated, EstimatedEffect: -1000, MeanAbsPlacebo: 100}, VerdictGuilty},
		{"inconclusive", estimate, &causal.RefutationResult{Status: causal.StatusEstimated, EstimatedEffect: -1000, MeanAbsPlacebo: 600}, VerdictInconclusive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Judge(tt.estimate, tt.refutation, 2))
		})
	}
}
