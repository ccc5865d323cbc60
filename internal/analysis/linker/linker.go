// Package linker selects the operational events that happened around an
// anomaly. HIGH-risk events in the window are suspects; every event in the
// window is returned as context.
package linker

import (
	"fmt"
	"sort"
	"time"

	"github.com/moolen/sentinel/internal/logging"
	"github.com/moolen/sentinel/internal/models"
)

// WindowPolicy controls where the search window ends
type WindowPolicy string

const (
	// PolicySymmetric searches L days either side of the anomaly
	PolicySymmetric WindowPolicy = "symmetric"
	// PolicyTrailing searches L days before the anomaly and up to one day after
	PolicyTrailing WindowPolicy = "trailing"
)

// ParseWindowPolicy validates a policy name. Empty means symmetric.
func ParseWindowPolicy(s string) (WindowPolicy, error) {
	switch WindowPolicy(s) {
	case "", PolicySymmetric:
		return PolicySymmetric, nil
	case PolicyTrailing:
		return PolicyTrailing, nil
	default:
		return "", fmt.Errorf("unknown window policy %q (expected %s or %s)", s, PolicySymmetric, PolicyTrailing)
	}
}

// LinkOptions configures the search window
type LinkOptions struct {
	LookbackDays int
	Policy       WindowPolicy
}

// Window is an inclusive time range
type Window struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Contains reports whether t lies within the inclusive window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// LinkResult holds the events found around one anomaly
type LinkResult struct {
	Window   Window         `json:"window" yaml:"window"`
	Suspects []models.Event `json:"suspects" yaml:"suspects"`
	Context  []models.Event `json:"context" yaml:"context"`
}

// SearchWindow computes the window for an anomaly date. The date is
// truncated to the start of its UTC day first. Negative lookbacks count as 0.
func SearchWindow(anomalyDate time.Time, opts LinkOptions) Window {
	day := anomalyDate.UTC()
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	lookback := max(0, opts.LookbackDays)
	w := Window{Start: day.AddDate(0, 0, -lookback)}
	if opts.Policy == PolicyTrailing {
		w.End = day.AddDate(0, 0, 1)
	} else {
		w.End = day.AddDate(0, 0, lookback)
	}
	return w
}

// Link returns the suspects and context for an anomaly. Both slices are
// sorted by timestamp; events keep all their fields including Source.
func Link(events []models.Event, anomalyDate time.Time, opts LinkOptions) LinkResult {
	logger := logging.GetLogger("analysis.linker")

	result := LinkResult{
		Window:   SearchWindow(anomalyDate, opts),
		Suspects: []models.Event{},
		Context:  []models.Event{},
	}

	for _, e := range events {
		if !result.Window.Contains(e.Timestamp) {
			continue
		}
		result.Context = append(result.Context, e)
		if models.ParseRiskLevel(string(e.Risk)).IsHigh() {
			result.Suspects = append(result.Suspects, e)
		}
	}

	byTime := func(s []models.Event) func(i, j int) bool {
		return func(i, j int) bool { return s[i].Timestamp.Before(s[j].Timestamp) }
	}
	sort.SliceStable(result.Context, byTime(result.Context))
	sort.SliceStable(result.Suspects, byTime(result.Suspects))

	logger.Debug("Linked anomaly %s: %d suspects, %d context events in [%s, %s]",
		anomalyDate.Format(time.DateOnly), len(result.Suspects), len(result.Context),
		result.Window.Start.Format(time.DateOnly), result.Window.End.Format(time.DateOnly))

	return result
}

// SourceGroup is a set of events sharing a Source
type SourceGroup struct {
	Source string         `json:"source" yaml:"source"`
	Events []models.Event `json:"events" yaml:"events"`
}

// GroupBySource groups events by Source, keeping groups in first-seen order
// and events in input order within each group
func GroupBySource(events []models.Event) []SourceGroup {
	index := make(map[string]int)
	var groups []SourceGroup
	for _, e := range events {
		i, ok := index[e.Source]
		if !ok {
			i = len(groups)
			index[e.Source] = i
			groups = append(groups, SourceGroup{Source: e.Source})
		}
		groups[i].Events = append(groups[i].Events, e)
	}
	return groups
}
