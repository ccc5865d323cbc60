package models

import "time"

// MetricPoint is one day of the business metric. Dates are unique and the
// series is sorted ascending once normalized.
type MetricPoint struct {
	Date       time.Time `json:"date" yaml:"date"`
	Value      float64   `json:"value" yaml:"value"`
	Confounder float64   `json:"confounder" yaml:"confounder"`
}

// BaselinePoint carries the rolling statistics of a single metric point.
// Nil fields are undefined (warm-up, or zero variance with no fallback).
type BaselinePoint struct {
	Date        time.Time `json:"date" yaml:"date"`
	Value       float64   `json:"value" yaml:"value"`
	RollingMean *float64  `json:"rolling_mean" yaml:"rolling_mean"`
	RollingStd  *float64  `json:"rolling_std" yaml:"rolling_std"`
	ZScore      *float64  `json:"z_score" yaml:"z_score"`
}

// AnomalyRecord is a metric point whose z-score fell below -sensitivity
type AnomalyRecord struct {
	Date        time.Time `json:"date" yaml:"date"`
	Value       float64   `json:"value" yaml:"value"`
	RollingMean float64   `json:"rolling_mean" yaml:"rolling_mean"`
	RollingStd  float64   `json:"rolling_std" yaml:"rolling_std"`
	ZScore      float64   `json:"z_score" yaml:"z_score"`
	Confidence  float64   `json:"confidence" yaml:"confidence"`
	Severity    Severity  `json:"severity" yaml:"severity"`
}

// Severity buckets an anomaly by how far it fell below the baseline
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// CausalEstimate is the backdoor-adjusted average treatment effect of an
// incident on the metric.
type CausalEstimate struct {
	TreatmentEffect float64 `json:"treatment_effect" yaml:"treatment_effect"`
	DaysAffected    int     `json:"days_affected" yaml:"days_affected"`
	TotalImpact     float64 `json:"total_impact" yaml:"total_impact"`
	ConfounderUsed  string  `json:"confounder_used" yaml:"confounder_used"`
}
