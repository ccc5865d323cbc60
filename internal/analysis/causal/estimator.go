package causal

import (
	"fmt"
	"math"
	"time"

	"github.com/moolen/sentinel/internal/logging"
	"github.com/moolen/sentinel/internal/models"
)

// DefaultMinPoints is the minimum series length for an estimate
const DefaultMinPoints = 10

// Status tags the outcome of a causal computation
type Status string

const (
	StatusEstimated Status = "estimated"
	StatusSkipped   Status = "skipped"
)

// Options configures an Estimator
type Options struct {
	MinPoints     int
	Policy        TreatmentPolicy
	TreatmentDays int

	// ConfounderName is reported in CausalEstimate.ConfounderUsed
	ConfounderName string
}

// EstimateResult holds either an estimate or the reason none was produced
type EstimateResult struct {
	Status   Status                 `json:"status" yaml:"status"`
	Estimate *models.CausalEstimate `json:"estimate,omitempty" yaml:"estimate,omitempty"`
	Skip     *models.SkipReason     `json:"skip,omitempty" yaml:"skip,omitempty"`
}

// Estimator computes backdoor-adjusted treatment effects. It holds no state
// between calls and is safe for concurrent use.
type Estimator struct {
	opts   Options
	logger *logging.Logger
}

// NewEstimator creates an estimator. Zero options fall back to defaults.
func NewEstimator(opts Options) *Estimator {
	if opts.MinPoints <= 0 {
		opts.MinPoints = DefaultMinPoints
	}
	if opts.Policy == "" {
		opts.Policy = PolicyAbsorbing
	}
	if opts.TreatmentDays <= 0 {
		opts.TreatmentDays = 1
	}
	return &Estimator{
		opts:   opts,
		logger: logging.GetLogger("analysis.causal"),
	}
}

// TreatmentIndicator builds the indicator for the configured policy
func (e *Estimator) TreatmentIndicator(series []models.MetricPoint, treatmentDate time.Time) []float64 {
	return TreatmentIndicator(series, treatmentDate, e.opts.Policy, e.opts.TreatmentDays)
}

// Estimate fits value ~ 1 + is_treated + confounder and returns the
// coefficient of is_treated. Short series, constant treatment and collinear
// designs produce a skipped result, never an error.
func (e *Estimator) Estimate(series []models.MetricPoint, treatmentDate time.Time) EstimateResult {
	treated, skip := e.prepare(series, treatmentDate)
	if skip != nil {
		e.logger.Debug("Skipping estimate for %s: %s", treatmentDate.Format(time.DateOnly), skip)
		return skipped(skip)
	}

	y, confounder := columns(series)
	effect, err := fitOLS(y, treated, confounder)
	if err != nil {
		e.logger.Warn("Estimate for %s failed: %v", treatmentDate.Format(time.DateOnly), err)
		return skipped(models.NewSkipReason(models.SkipCollinearity, err.Error()))
	}

	days := countTreated(treated)
	estimate := &models.CausalEstimate{
		TreatmentEffect: effect,
		DaysAffected:    days,
		TotalImpact:     math.Abs(effect) * float64(days),
		ConfounderUsed:  e.opts.ConfounderName,
	}

	e.logger.DebugWithFields("Estimated treatment effect",
		logging.Field("treatment_date", treatmentDate.Format(time.DateOnly)),
		logging.Field("effect", effect),
		logging.Field("days_affected", days),
	)

	return EstimateResult{Status: StatusEstimated, Estimate: estimate}
}

// prepare builds the treatment indicator and checks the preconditions
func (e *Estimator) prepare(series []models.MetricPoint, treatmentDate time.Time) ([]float64, *models.SkipReason) {
	if len(series) < e.opts.MinPoints {
		err := &models.InsufficientDataError{What: "causal estimate", Available: len(series), Required: e.opts.MinPoints}
		return nil, models.NewSkipReason(models.SkipInsufficientData, err.Error())
	}

	treated := e.TreatmentIndicator(series, treatmentDate)
	n := countTreated(treated)
	if n == 0 || n == len(treated) {
		return nil, models.NewSkipReason(models.SkipInsufficientVariation,
			fmt.Sprintf("treatment indicator is constant (%d of %d points treated)", n, len(treated)))
	}
	return treated, nil
}

func columns(series []models.MetricPoint) (y, confounder []float64) {
	y = make([]float64, len(series))
	confounder = make([]float64, len(series))
	for i, p := range series {
		y[i] = p.Value
		confounder[i] = p.Confounder
	}
	return y, confounder
}

func skipped(reason *models.SkipReason) EstimateResult {
	return EstimateResult{Status: StatusSkipped, Skip: reason}
}
