package causal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/sentinel/internal/models"
)

var start = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func date(i int) time.Time {
	return start.AddDate(0, 0, i)
}

// knownEffectSeries builds value = 1000 + 3*confounder + effect*treated
// with treatment starting at index `from`
func knownEffectSeries(n, from int, effect float64) []models.MetricPoint {
	points := make([]models.MetricPoint, n)
	for i := range points {
		conf := float64((i*7)%5) + float64(i%3)*0.5
		v := 1000 + 3*conf
		if i >= from {
			v += effect
		}
		points[i] = models.MetricPoint{Date: date(i), Value: v, Confounder: conf}
	}
	return points
}

func TestTreatmentIndicator(t *testing.T) {
	series := knownEffectSeries(6, 0, 0)

	absorbing := TreatmentIndicator(series, date(3), PolicyAbsorbing, 0)
	assert.Equal(t, []float64{0, 0, 0, 1, 1, 1}, absorbing)

	window := TreatmentIndicator(series, date(2), PolicyWindow, 2)
	assert.Equal(t, []float64{0, 0, 1, 1, 0, 0}, window)

	// A time-of-day component does not shift the start.
	withTime := TreatmentIndicator(series, date(3).Add(15*time.Hour), PolicyAbsorbing, 0)
	assert.Equal(t, absorbing, withTime)
}

func TestEstimate_RecoversKnownEffect(t *testing.T) {
	series := knownEffectSeries(30, 15, -2500)
	est := NewEstimator(Options{ConfounderName: "latency"})

	result := est.Estimate(series, date(15))
	require.Equal(t, StatusEstimated, result.Status, "skip: %s", result.Skip)
	require.NotNil(t, result.Estimate)
	assert.Nil(t, result.Skip)

	assert.InDelta(t, -2500, result.Estimate.TreatmentEffect, 1e-6)
	assert.Equal(t, 15, result.Estimate.DaysAffected)
	assert.InDelta(t, 2500*15, result.Estimate.TotalImpact, 1e-4)
	assert.Equal(t, "latency", result.Estimate.ConfounderUsed)
}

func TestEstimate_WindowPolicy(t *testing.T) {
	series := knownEffectSeries(30, 100, 0)
	for i := 10; i < 12; i++ {
		series[i].Value -= 800
	}

	est := NewEstimator(Options{Policy: PolicyWindow, TreatmentDays: 2})
	result := est.Estimate(series, date(10))
	require.Equal(t, StatusEstimated, result.Status)
	assert.InDelta(t, -800, result.Estimate.TreatmentEffect, 1e-6)
	assert.Equal(t, 2, result.Estimate.DaysAffected)
}

func TestEstimate_Skips(t *testing.T) {
	tests := []struct {
		name   string
		series []models.MetricPoint
		date   time.Time
		code   models.SkipCode
	}{
		{
			name:   "too few points",
			series: knownEffectSeries(9, 4, -10),
			date:   date(4),
			code:   models.SkipInsufficientData,
		},
		{
			name:   "all zeros",
			series: knownEffectSeries(20, 0, 0),
			date:   date(40),
			code:   models.SkipInsufficientVariation,
		},
		{
			name:   "all ones",
			series: knownEffectSeries(20, 0, 0),
			date:   date(-1),
			code:   models.SkipInsufficientVariation,
		},
		{
			name: "confounder collinear with treatment",
			series: func() []models.MetricPoint {
				s := knownEffectSeries(20, 10, -50)
				for i := range s {
					s[i].Confounder = 0
					if i >= 10 {
						s[i].Confounder = 2
					}
				}
				return s
			}(),
			date: date(10),
			code: models.SkipCollinearity,
		},
		{
			name: "constant confounder",
			series: func() []models.MetricPoint {
				s := knownEffectSeries(20, 10, -50)
				for i := range s {
					s[i].Confounder = 7
				}
				return s
			}(),
			date: date(10),
			code: models.SkipCollinearity,
		},
	}

	est := NewEstimator(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := est.Estimate(tt.series, tt.date)
			assert.Equal(t, StatusSkipped, result.Status)
			assert.Nil(t, result.Estimate)
			require.NotNil(t, result.Skip)
			assert.Equal(t, tt.code, result.Skip.Code)
			assert.NotEmpty(t, result.Skip.Message)

			if tt.code == models.SkipCollinearity {
				y, confounder := columns(tt.series)
				_, err := fitOLS(y, est.TreatmentIndicator(tt.series, tt.date), confounder)
				require.Error(t, err)
				assert.True(t, models.IsDegeneracyError(err))
				assert.Equal(t, err.Error(), result.Skip.Message)
			}
		})
	}
}

func TestEstimate_Idempotent(t *testing.T) {
	series := knownEffectSeries(25, 12, -300)
	est := NewEstimator(Options{})
	assert.Equal(t, est.Estimate(series, date(12)), est.Estimate(series, date(12)))
}

func TestRefute_SeededAndReproducible(t *testing.T) {
	series := knownEffectSeries(40, 20, -2000)
	est := NewEstimator(Options{})
	opts := RefuteOptions{Simulations: 50, Seed: 7}

	first := est.Refute(series, date(20), opts)
	second := est.Refute(series, date(20), opts)

	require.Equal(t, StatusEstimated, first.Status)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(7), first.Seed)
	assert.Equal(t, 50, first.Simulations)

	assert.InDelta(t, -2000, first.EstimatedEffect, 1e-6)
	assert.Less(t, first.MeanAbsPlacebo, math.Abs(first.EstimatedEffect))
	assert.True(t, first.ExceedsPlacebo(2))
	assert.LessOrEqual(t, first.P05, first.P50)
	assert.LessOrEqual(t, first.P50, first.P95)
	assert.GreaterOrEqual(t, first.PValue, 0.0)
	assert.LessOrEqual(t, first.PValue, 1.0)
}

func TestRefute_DifferentSeedsDiffer(t *testing.T) {
	series := knownEffectSeries(40, 20, -2000)
	est := NewEstimator(Options{})

	a := est.Refute(series, date(20), RefuteOptions{Simulations: 20, Seed: 1})
	b := est.Refute(series, date(20), RefuteOptions{Simulations: 20, Seed: 2})
	assert.NotEqual(t, a.PlaceboEffect, b.PlaceboEffect)
}

func TestRefute_PropagatesSkip(t *testing.T) {
	est := NewEstimator(Options{})
	result := est.Refute(knownEffectSeries(5, 2, -10), date(2), RefuteOptions{Seed: 1})
	assert.Equal(t, StatusSkipped, result.Status)
	require.NotNil(t, result.Skip)
	assert.Equal(t, models.SkipInsufficientData, result.Skip.Code)
	assert.False(t, result.ExceedsPlacebo(2))
	assert.Contains(t, result.String(), "refutation skipped (insufficient_data")
}

func TestRefutationResult_Nil(t *testing.T) {
	var r *RefutationResult
	assert.False(t, r.ExceedsPlacebo(2))
	assert.Equal(t, "refutation not run", r.String())
}

func TestPValue(t *testing.T) {
	assert.Equal(t, 1.0, pValue(3, 3, 0))
	assert.Equal(t, 0.0, pValue(4, 3, 0))
	assert.InDelta(t, 1.0, pValue(0, 0, 1), 1e-12)
	assert.InDelta(t, 0.0455, pValue(2, 0, 1), 1e-4)
}

func TestParseTreatmentPolicy(t *testing.T) {
	p, err := ParseTreatmentPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAbsorbing, p)

	p, err = ParseTreatmentPolicy("window")
	require.NoError(t, err)
	assert.Equal(t, PolicyWindow, p)

	_, err = ParseTreatmentPolicy("decay")
	assert.Error(t, err)
}
