package normalize

import "strings"

// StandardEventColumns is the schema written by the classify command
var StandardEventColumns = EventColumns{
	Timestamp: "timestamp",
	Risk:      "ai_risk",
	Message:   "message",
	Source:    "source_file",
	Component: "ai_component",
	Reasoning: "ai_reasoning",
}

// GuessColumn returns the index of the first candidate whose name contains
// any keyword (case-insensitive), or -1. It is a suggestion for interactive
// schema mapping; the analysis packages only ever see named columns.
func GuessColumn(candidates []string, keywords []string) int {
	for i, c := range candidates {
		name := strings.ToLower(c)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(name, strings.ToLower(kw)) {
				return i
			}
		}
	}
	return -1
}

// HasStandardEventSchema reports whether the columns already carry the
// timestamp, risk and message columns of the standard schema
func HasStandardEventSchema(columns []string) bool {
	t := Table{Columns: columns}
	return t.HasColumn(StandardEventColumns.Timestamp) &&
		t.HasColumn(StandardEventColumns.Risk) &&
		t.HasColumn(StandardEventColumns.Message)
}

// SuggestEventColumns proposes an event mapping: keyword matches first, then
// positional defaults (timestamp 0, message 1, risk 2).
func SuggestEventColumns(columns []string) EventColumns {
	if HasStandardEventSchema(columns) {
		return StandardEventColumns
	}
	pick := func(keywords []string, fallback int) string {
		idx := GuessColumn(columns, keywords)
		if idx < 0 {
			idx = fallback
		}
		if idx < 0 || idx >= len(columns) {
			return ""
		}
		return columns[idx]
	}
	last := len(columns) - 1
	return EventColumns{
		Timestamp: pick([]string{"time", "date"}, 0),
		Risk:      pick([]string{"risk"}, min(last, 2)),
		Message:   pick([]string{"message", "msg"}, min(last, 1)),
		Source:    pick([]string{"source"}, -1),
		Component: pick([]string{"component"}, -1),
		Reasoning: pick([]string{"reasoning"}, -1),
	}
}

// SuggestMetricColumns proposes a metric mapping: date 0, value 1 by default
func SuggestMetricColumns(columns []string) MetricColumns {
	dateIdx := GuessColumn(columns, []string{"date", "time"})
	if dateIdx < 0 {
		dateIdx = 0
	}
	valueIdx := GuessColumn(columns, []string{"revenue", "sales", "value"})
	if valueIdx < 0 {
		valueIdx = min(len(columns)-1, 1)
	}

	var cols MetricColumns
	if dateIdx < len(columns) {
		cols.Date = columns[dateIdx]
	}
	if valueIdx >= 0 && valueIdx < len(columns) {
		cols.Value = columns[valueIdx]
	}
	if idx := GuessColumn(columns, []string{"confounder", "latency"}); idx >= 0 && idx != valueIdx && idx != dateIdx {
		cols.Confounder = columns[idx]
	}
	return cols
}
