package causal

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/moolen/sentinel/internal/models"
)

// DefaultSimulations is the number of placebo fits when none is configured
const DefaultSimulations = 100

// RefuteOptions configures the placebo test
type RefuteOptions struct {
	Simulations int
	Seed        int64
}

// RefutationResult summarizes the placebo distribution
type RefutationResult struct {
	Status Status             `json:"status" yaml:"status"`
	Skip   *models.SkipReason `json:"skip,omitempty" yaml:"skip,omitempty"`

	EstimatedEffect float64 `json:"estimated_effect" yaml:"estimated_effect"`

	// PlaceboEffect is the mean effect under random treatment assignments
	PlaceboEffect float64 `json:"placebo_effect" yaml:"placebo_effect"`

	// MeanAbsPlacebo is the typical placebo magnitude
	MeanAbsPlacebo float64 `json:"mean_abs_placebo" yaml:"mean_abs_placebo"`

	PlaceboStdDev float64 `json:"placebo_std_dev" yaml:"placebo_std_dev"`
	P05           float64 `json:"p05" yaml:"p05"`
	P50           float64 `json:"p50" yaml:"p50"`
	P95           float64 `json:"p95" yaml:"p95"`

	// PValue is the two-sided normal approximation of the estimate under
	// the placebo distribution
	PValue float64 `json:"p_value" yaml:"p_value"`

	Simulations int   `json:"simulations" yaml:"simulations"`
	Seed        int64 `json:"seed" yaml:"seed"`
}

// ExceedsPlacebo reports whether |estimate| is larger than factor times the
// mean absolute placebo effect
func (r *RefutationResult) ExceedsPlacebo(factor float64) bool {
	if r == nil || r.Status != StatusEstimated {
		return false
	}
	return math.Abs(r.EstimatedEffect) > factor*r.MeanAbsPlacebo
}

// Refute re-estimates the model after randomly permuting the treatment
// indicator, keeping the number of treated points fixed. The same seed
// always yields the same result. Placebo fits that hit a singular design are
// skipped; if none succeeds the refutation is skipped.
func (e *Estimator) Refute(series []models.MetricPoint, treatmentDate time.Time, opts RefuteOptions) RefutationResult {
	if opts.Simulations <= 0 {
		opts.Simulations = DefaultSimulations
	}

	base := e.Estimate(series, treatmentDate)
	if base.Status != StatusEstimated {
		return RefutationResult{Status: StatusSkipped, Skip: base.Skip, Seed: opts.Seed}
	}

	treated := e.TreatmentIndicator(series, treatmentDate)
	y, confounder := columns(series)

	rng := rand.New(rand.NewSource(opts.Seed))
	placebo := make([]float64, len(treated))
	effects := make([]float64, 0, opts.Simulations)

	for i := 0; i < opts.Simulations; i++ {
		for j, k := range rng.Perm(len(treated)) {
			placebo[j] = treated[k]
		}
		effect, err := fitOLS(y, placebo, confounder)
		if err != nil {
			continue
		}
		effects = append(effects, effect)
	}

	if len(effects) == 0 {
		return RefutationResult{
			Status: StatusSkipped,
			Skip:   models.NewSkipReason(models.SkipCollinearity, "every placebo fit was singular"),
			Seed:   opts.Seed,
		}
	}

	result := summarizePlacebo(base.Estimate.TreatmentEffect, effects)
	result.Seed = opts.Seed

	e.logger.Debug("Refuted %s: effect=%.2f placebo=%.2f mean|placebo|=%.2f p=%.4f (%d/%d fits)",
		treatmentDate.Format(time.DateOnly), result.EstimatedEffect, result.PlaceboEffect,
		result.MeanAbsPlacebo, result.PValue, len(effects), opts.Simulations)

	return result
}

func summarizePlacebo(estimate float64, effects []float64) RefutationResult {
	data := stats.Float64Data(effects)

	abs := make(stats.Float64Data, len(effects))
	for i, v := range effects {
		abs[i] = math.Abs(v)
	}

	result := RefutationResult{
		Status:          StatusEstimated,
		EstimatedEffect: estimate,
		Simulations:     len(effects),
	}
	result.PlaceboEffect, _ = stats.Mean(data)
	result.MeanAbsPlacebo, _ = stats.Mean(abs)
	result.P05, _ = stats.Percentile(data, 5)
	result.P50, _ = stats.Median(data)
	result.P95, _ = stats.Percentile(data, 95)
	if len(effects) > 1 {
		result.PlaceboStdDev, _ = stats.StandardDeviationSample(data)
	}
	result.PValue = pValue(estimate, result.PlaceboEffect, result.PlaceboStdDev)

	return result
}

// pValue is P(|X - mean| >= |estimate - mean|) for X ~ N(mean, std)
func pValue(estimate, mean, std float64) float64 {
	if std == 0 || math.IsNaN(std) {
		if estimate == mean {
			return 1
		}
		return 0
	}
	dist := distuv.Normal{Mu: 0, Sigma: 1}
	z := math.Abs(estimate-mean) / std
	return 2 * (1 - dist.CDF(z))
}

// String renders the refutation for logs
func (r *RefutationResult) String() string {
	if r == nil {
		return "refutation not run"
	}
	if r.Status != StatusEstimated {
		return fmt.Sprintf("refutation skipped (%s)", r.Skip)
	}
	return fmt.Sprintf("estimate %.2f vs placebo %.2f (mean |placebo| %.2f, p=%.4f, n=%d)",
		r.EstimatedEffect, r.PlaceboEffect, r.MeanAbsPlacebo, r.PValue, r.Simulations)
}
