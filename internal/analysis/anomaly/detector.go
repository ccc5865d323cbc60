package anomaly

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/moolen/sentinel/internal/logging"
	"github.com/moolen/sentinel/internal/models"
)

// Detector flags metric points that fall far below their trailing baseline
type Detector struct {
	window      int
	sensitivity float64
	logger      *logging.Logger
}

// NewDetector creates a detector with a rolling window of `window` points
// and a z-score threshold of -sensitivity. A window below 1 is treated as 1.
func NewDetector(window int, sensitivity float64) *Detector {
	if window < 1 {
		window = 1
	}
	return &Detector{
		window:      window,
		sensitivity: sensitivity,
		logger:      logging.GetLogger("analysis.anomaly"),
	}
}

// Window returns the effective rolling window
func (d *Detector) Window() int {
	return d.window
}

// MinPeriods is the number of observations required before a rolling
// statistic is defined: max(1, window/2).
func (d *Detector) MinPeriods() int {
	return max(1, d.window/2)
}

// Baseline computes the rolling mean, rolling sample standard deviation and
// z-score of every point. The window is trailing and includes the point
// itself. A zero or undefined rolling std is replaced by the global std of
// the series; when that is zero too the z-score stays undefined. The series
// must already be in ascending date order.
func (d *Detector) Baseline(series []models.MetricPoint) []models.BaselinePoint {
	out := make([]models.BaselinePoint, len(series))
	if len(series) == 0 {
		return out
	}

	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}

	globalStd := math.NaN()
	if len(values) >= 2 {
		globalStd = stat.StdDev(values, nil)
	}

	minPeriods := d.MinPeriods()
	for i, p := range series {
		out[i] = models.BaselinePoint{Date: p.Date, Value: p.Value}

		start := max(0, i-d.window+1)
		win := values[start : i+1]
		if len(win) < minPeriods {
			continue
		}

		mean := stat.Mean(win, nil)
		out[i].RollingMean = ptr(mean)

		std := math.NaN()
		if len(win) >= 2 {
			std = stat.StdDev(win, nil)
		}
		if std == 0 || math.IsNaN(std) {
			std = globalStd
		}
		if std == 0 || math.IsNaN(std) {
			continue
		}
		out[i].RollingStd = ptr(std)
		out[i].ZScore = ptr((p.Value - mean) / std)
	}

	return out
}

// Detect returns every point whose z-score is strictly below -sensitivity,
// ordered by confidence descending with ties broken by date ascending.
// Points with an undefined z-score are never flagged.
func (d *Detector) Detect(series []models.MetricPoint) []models.AnomalyRecord {
	return d.FromBaseline(d.Baseline(series))
}

// FromBaseline extracts anomalies from an already computed baseline
func (d *Detector) FromBaseline(baseline []models.BaselinePoint) []models.AnomalyRecord {
	var anomalies []models.AnomalyRecord
	for _, b := range baseline {
		if b.ZScore == nil || !(*b.ZScore < -d.sensitivity) {
			continue
		}
		confidence := math.Abs(*b.ZScore)
		anomalies = append(anomalies, models.AnomalyRecord{
			Date:        b.Date,
			Value:       b.Value,
			RollingMean: *b.RollingMean,
			RollingStd:  *b.RollingStd,
			ZScore:      *b.ZScore,
			Confidence:  confidence,
			Severity:    GetSeverity(confidence, d.sensitivity),
		})
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		if anomalies[i].Confidence != anomalies[j].Confidence {
			return anomalies[i].Confidence > anomalies[j].Confidence
		}
		return anomalies[i].Date.Before(anomalies[j].Date)
	})

	d.logger.Debug("Detected %d anomalies in %d points (window=%d, sensitivity=%.2f)",
		len(anomalies), len(baseline), d.window, d.sensitivity)

	return anomalies
}

func ptr(v float64) *float64 {
	return &v
}
