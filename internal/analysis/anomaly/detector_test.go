package anomaly

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/sentinel/internal/models"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func series(values ...float64) []models.MetricPoint {
	points := make([]models.MetricPoint, len(values))
	for i, v := range values {
		points[i] = models.MetricPoint{Date: start.AddDate(0, 0, i), Value: v}
	}
	return points
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDetect_SingleDrop(t *testing.T) {
	values := flat(30, 50000)
	values[14] = 25000

	d := NewDetector(7, 2.0)
	anomalies := d.Detect(series(values...))

	require.Len(t, anomalies, 1)
	a := anomalies[0]
	assert.Equal(t, start.AddDate(0, 0, 14), a.Date)
	assert.Equal(t, 25000.0, a.Value)
	assert.InDelta(t, 46428.571, a.RollingMean, 1e-3)
	assert.InDelta(t, -2.268, a.ZScore, 1e-3)
	assert.InDelta(t, math.Abs(a.ZScore), a.Confidence, 1e-12)
	assert.Equal(t, models.SeverityLow, a.Severity)
}

func TestDetect_ConstantSeries(t *testing.T) {
	d := NewDetector(7, 2.0)
	anomalies := d.Detect(series(flat(20, 100)...))
	assert.Empty(t, anomalies)

	for _, b := range d.Baseline(series(flat(20, 100)...)) {
		assert.Nil(t, b.ZScore, "zero variance everywhere leaves z undefined")
	}
}

func TestDetect_SpikesAreIgnored(t *testing.T) {
	values := flat(30, 100)
	values[14] = 1000

	d := NewDetector(7, 2.0)
	assert.Empty(t, d.Detect(series(values...)))
}

func TestBaseline_ShortSeries(t *testing.T) {
	d := NewDetector(7, 2.0)
	assert.Equal(t, 3, d.MinPeriods())

	baseline := d.Baseline(series(10, 12, 11, 13, 9))
	require.Len(t, baseline, 5)

	assert.Nil(t, baseline[0].RollingMean)
	assert.Nil(t, baseline[1].RollingMean)
	for _, b := range baseline[2:] {
		require.NotNil(t, b.RollingMean)
		require.NotNil(t, b.ZScore)
	}
	assert.InDelta(t, 11.0, *baseline[2].RollingMean, 1e-12)
	assert.InDelta(t, 1.0, *baseline[2].RollingStd, 1e-12)
}

func TestBaseline_EmptyAndSingle(t *testing.T) {
	d := NewDetector(7, 2.0)
	assert.Empty(t, d.Baseline(nil))

	single := d.Baseline(series(42))
	require.Len(t, single, 1)
	assert.Nil(t, single[0].ZScore)
}

func TestNewDetector_ClampsWindow(t *testing.T) {
	d := NewDetector(0, 2.0)
	assert.Equal(t, 1, d.Window())
	assert.Equal(t, 1, d.MinPeriods())

	// Every window holds one point, so the global std is used and z measures
	// distance from the point itself.
	for _, b := range d.Baseline(series(1, 2, 3)) {
		require.NotNil(t, b.ZScore)
		assert.Equal(t, 0.0, *b.ZScore)
	}
}

func TestDetect_OrderingAndMonotonicity(t *testing.T) {
	values := flat(40, 100)
	values[10] = 60
	values[25] = 20

	high := NewDetector(7, 1.0).Detect(series(values...))
	low := NewDetector(7, 2.0).Detect(series(values...))

	require.NotEmpty(t, low)
	for i := 1; i < len(high); i++ {
		assert.GreaterOrEqual(t, high[i-1].Confidence, high[i].Confidence)
	}

	// Raising the sensitivity can only shrink the set of flagged dates.
	flagged := make(map[time.Time]bool)
	for _, a := range high {
		flagged[a.Date] = true
	}
	for _, a := range low {
		assert.True(t, flagged[a.Date], "date %s flagged at S=2 but not at S=1", a.Date)
	}
}

func TestDetect_TiesBreakByDate(t *testing.T) {
	d := NewDetector(3, 0.5)
	baseline := []models.BaselinePoint{
		{Date: start.AddDate(0, 0, 2), ZScore: ptr(-1), RollingMean: ptr(1), RollingStd: ptr(1)},
		{Date: start, ZScore: ptr(-1), RollingMean: ptr(1), RollingStd: ptr(1)},
		{Date: start.AddDate(0, 0, 1), ZScore: ptr(-3), RollingMean: ptr(1), RollingStd: ptr(1)},
	}

	got := d.FromBaseline(baseline)
	require.Len(t, got, 3)
	assert.Equal(t, start.AddDate(0, 0, 1), got[0].Date)
	assert.Equal(t, start, got[1].Date)
	assert.Equal(t, start.AddDate(0, 0, 2), got[2].Date)
}

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		confidence  float64
		sensitivity float64
		want        models.Severity
	}{
		{2.1, 2.0, models.SeverityLow},
		{2.5, 2.0, models.SeverityMedium},
		{3.0, 2.0, models.SeverityHigh},
		{4.0, 2.0, models.SeverityCritical},
		{2.0, 0, models.SeverityCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetSeverity(tt.confidence, tt.sensitivity))
	}
}
