package pipeline

import (
	"time"

	"github.com/moolen/sentinel/internal/analysis/causal"
	"github.com/moolen/sentinel/internal/analysis/linker"
	"github.com/moolen/sentinel/internal/models"
)

// Verdict is the caller-level judgement on an incident
type Verdict string

const (
	// VerdictGuilty means the effect clearly exceeds the placebo magnitude
	VerdictGuilty Verdict = "GUILTY"
	// VerdictInconclusive means the effect is within placebo noise
	VerdictInconclusive Verdict = "INCONCLUSIVE"
	// VerdictUntested means no estimate or no refutation was available
	VerdictUntested Verdict = "UNTESTED"
)

// Input is the normalized data of one run. It is never mutated.
type Input struct {
	Events  []models.Event
	Metrics []models.MetricPoint

	// ConfounderName identifies the confounder column in estimates
	ConfounderName string
}

// Parameters records the settings a result was computed with
type Parameters struct {
	Sensitivity     float64 `json:"sensitivity" yaml:"sensitivity"`
	RollingWindow   int     `json:"rolling_window" yaml:"rolling_window"`
	LookbackDays    int     `json:"lookback_days" yaml:"lookback_days"`
	WindowPolicy    string  `json:"window_policy" yaml:"window_policy"`
	TreatmentPolicy string  `json:"treatment_policy" yaml:"treatment_policy"`
	TreatmentAnchor string  `json:"treatment_anchor" yaml:"treatment_anchor"`
	Refutation      bool    `json:"refutation" yaml:"refutation"`
	Seed            int64   `json:"seed" yaml:"seed"`
}

// Summary describes the metric series as a whole
type Summary struct {
	Points int       `json:"points" yaml:"points"`
	Start  time.Time `json:"start" yaml:"start"`
	End    time.Time `json:"end" yaml:"end"`
	Mean   float64   `json:"mean" yaml:"mean"`
	StdDev float64   `json:"std_dev" yaml:"std_dev"`
	Min    float64   `json:"min" yaml:"min"`
	Max    float64   `json:"max" yaml:"max"`
}

// Incident is the analysis of one anomaly
type Incident struct {
	Anomaly       models.AnomalyRecord     `json:"anomaly" yaml:"anomaly"`
	Window        linker.Window            `json:"window" yaml:"window"`
	Suspects      []models.Event           `json:"suspects" yaml:"suspects"`
	Context       []models.Event           `json:"context" yaml:"context"`
	TreatmentDate time.Time                `json:"treatment_date" yaml:"treatment_date"`
	Causal        causal.EstimateResult    `json:"causal" yaml:"causal"`
	Refutation    *causal.RefutationResult `json:"refutation,omitempty" yaml:"refutation,omitempty"`
	Verdict       Verdict                  `json:"verdict" yaml:"verdict"`
}

// HasSuspects reports whether any HIGH-risk event was linked
func (i *Incident) HasSuspects() bool {
	return len(i.Suspects) > 0
}

// LossPerDay is the absolute daily effect, or 0 without an estimate
func (i *Incident) LossPerDay() float64 {
	if i.Causal.Estimate == nil {
		return 0
	}
	return i.Causal.Estimate.TotalImpact / float64(max(1, i.Causal.Estimate.DaysAffected))
}

// Result is the serializable outcome of a run
type Result struct {
	RunID       string                 `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time              `json:"generated_at" yaml:"generated_at"`
	Parameters  Parameters             `json:"parameters" yaml:"parameters"`
	Summary     Summary                `json:"summary" yaml:"summary"`
	Baseline    []models.BaselinePoint `json:"baseline" yaml:"baseline"`
	Anomalies   []models.AnomalyRecord `json:"anomalies" yaml:"anomalies"`
	Incidents   []Incident             `json:"incidents" yaml:"incidents"`

	// Skip is set when detection itself could not run
	Skip *models.SkipReason `json:"skip,omitempty" yaml:"skip,omitempty"`

	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Healthy reports whether detection ran and found nothing
func (r *Result) Healthy() bool {
	return r.Skip == nil && len(r.Anomalies) == 0
}
