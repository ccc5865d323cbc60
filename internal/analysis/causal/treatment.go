package causal

import (
	"fmt"
	"time"

	"github.com/moolen/sentinel/internal/models"
)

// TreatmentPolicy selects how the treatment indicator is built
type TreatmentPolicy string

const (
	// PolicyAbsorbing treats every point on or after the treatment date
	PolicyAbsorbing TreatmentPolicy = "absorbing"
	// PolicyWindow treats a fixed number of days starting at the treatment date
	PolicyWindow TreatmentPolicy = "window"
)

// ParseTreatmentPolicy validates a policy name. Empty means absorbing.
func ParseTreatmentPolicy(s string) (TreatmentPolicy, error) {
	switch TreatmentPolicy(s) {
	case "", PolicyAbsorbing:
		return PolicyAbsorbing, nil
	case PolicyWindow:
		return PolicyWindow, nil
	default:
		return "", fmt.Errorf("unknown treatment policy %q (expected %s or %s)", s, PolicyAbsorbing, PolicyWindow)
	}
}

// TreatmentIndicator returns 1 for treated points and 0 otherwise. The
// treatment date is truncated to its UTC day. With PolicyWindow the effect
// lasts `days` calendar days (minimum 1).
func TreatmentIndicator(series []models.MetricPoint, treatmentDate time.Time, policy TreatmentPolicy, days int) []float64 {
	start := treatmentDate.UTC()
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, max(1, days))

	treated := make([]float64, len(series))
	for i, p := range series {
		if p.Date.Before(start) {
			continue
		}
		if policy == PolicyWindow && !p.Date.Before(end) {
			continue
		}
		treated[i] = 1
	}
	return treated
}

// countTreated sums a 0/1 indicator
func countTreated(treated []float64) int {
	n := 0
	for _, v := range treated {
		if v == 1 {
			n++
		}
	}
	return n
}
