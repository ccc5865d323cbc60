package anomaly

import "github.com/moolen/sentinel/internal/models"

// SeverityRule assigns a severity once the confidence reaches Multiple times
// the detection threshold
type SeverityRule struct {
	Multiple float64
	Severity models.Severity
}

// severityRules are checked in order, first match wins
var severityRules = []SeverityRule{
	{2.0, models.SeverityCritical},
	{1.5, models.SeverityHigh},
	{1.2, models.SeverityMedium},
}

// GetSeverity buckets a confidence relative to the sensitivity threshold.
// A non-positive sensitivity compares against 1.
func GetSeverity(confidence, sensitivity float64) models.Severity {
	if sensitivity <= 0 {
		sensitivity = 1
	}
	for _, rule := range severityRules {
		if confidence >= rule.Multiple*sensitivity {
			return rule.Severity
		}
	}
	return models.SeverityLow
}
