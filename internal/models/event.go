package models

import (
	"strings"
	"time"
)

// RiskLevel is the ternary risk label attached to an event by the classifier
type RiskLevel string

const (
	// RiskHigh marks an event that could cause a revenue drop or latency spike
	RiskHigh RiskLevel = "HIGH"
	// RiskLow marks routine changes (docs, css, maintenance)
	RiskLow RiskLevel = "LOW"
	// RiskUnknown is used when classification failed or no label was supplied
	RiskUnknown RiskLevel = "UNKNOWN"
)

// ParseRiskLevel normalizes free-text risk labels. Anything that is not
// HIGH or LOW after trimming and upper-casing is UNKNOWN.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(RiskHigh):
		return RiskHigh
	case string(RiskLow):
		return RiskLow
	default:
		return RiskUnknown
	}
}

// IsHigh reports whether the label is HIGH. UNKNOWN is never HIGH.
func (r RiskLevel) IsHigh() bool {
	return r == RiskHigh
}

// Event is a single normalized operational log entry (commit, chat message,
// ticket, deploy). Timestamps are UTC with the original offset removed.
type Event struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Risk      RiskLevel `json:"risk" yaml:"risk"`
	Message   string    `json:"message" yaml:"message"`

	// Source identifies provenance (file or system) and is used for grouping only
	Source string `json:"source" yaml:"source"`

	Component string `json:"component,omitempty" yaml:"component,omitempty"`
	Reasoning string `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}
