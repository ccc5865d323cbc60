package normalize

import (
	"sort"

	"github.com/moolen/sentinel/internal/logging"
	"github.com/moolen/sentinel/internal/models"
)

// EventColumns names the raw columns holding each canonical event field.
// Timestamp and Message are required; the others are optional and may be
// missing from individual tables.
type EventColumns struct {
	Timestamp string
	Risk      string
	Message   string
	Source    string
	Component string
	Reasoning string
}

// EventSet is the normalized event sequence plus the ingestion report
type EventSet struct {
	Events []models.Event

	// Total is the number of raw rows seen across all tables
	Total int

	// Dropped counts rows whose timestamp could not be parsed
	Dropped int

	// DroppedByTable breaks Dropped down per table name
	DroppedByTable map[string]int
}

// EventGroup is a set of tables sharing one column mapping
type EventGroup struct {
	Tables  []Table
	Columns EventColumns
}

// NormalizeEvents merges tables by concatenation and converts every row into
// a models.Event sorted by timestamp (ties keep input order). Identical rows
// arriving from different tables are kept as separate events.
func NormalizeEvents(tables []Table, cols EventColumns) (*EventSet, error) {
	return NormalizeEventGroups([]EventGroup{{Tables: tables, Columns: cols}})
}

// NormalizeEventGroups behaves like NormalizeEvents but reads each group
// with its own column mapping, e.g. classified tables next to tables that
// were labeled upstream.
func NormalizeEventGroups(groups []EventGroup) (*EventSet, error) {
	logger := logging.GetLogger("normalize")

	tables := 0
	for _, g := range groups {
		tables += len(g.Tables)
	}
	if tables == 0 {
		return nil, models.NewInputError("events", "", 0, "no event tables supplied")
	}

	set := &EventSet{DroppedByTable: make(map[string]int)}
	for _, g := range groups {
		if err := set.add(g.Tables, g.Columns, logger); err != nil {
			return nil, err
		}
	}

	if set.Total == 0 {
		return nil, models.NewInputError("events", "", 0, "event tables are empty")
	}
	if len(set.Events) == 0 {
		return nil, models.NewInputError("events", groups[0].Columns.Timestamp, set.Dropped,
			"no valid timestamps found")
	}

	sort.SliceStable(set.Events, func(i, j int) bool {
		return set.Events[i].Timestamp.Before(set.Events[j].Timestamp)
	})

	if set.Dropped > 0 {
		logger.WarnWithFields("Invalid timestamps ignored",
			logging.Field("dropped", set.Dropped),
			logging.Field("total", set.Total),
		)
	}
	logger.Debug("Normalized %d events from %d tables", len(set.Events), tables)

	return set, nil
}

func (set *EventSet) add(tables []Table, cols EventColumns, logger *logging.Logger) error {
	for _, table := range tables {
		tsIdx := table.ColumnIndex(cols.Timestamp)
		if tsIdx < 0 {
			return models.NewInputError(table.Name, cols.Timestamp, len(table.Rows),
				"required timestamp column is missing (columns: %v)", table.Columns)
		}
		msgIdx := table.ColumnIndex(cols.Message)
		if msgIdx < 0 {
			return models.NewInputError(table.Name, cols.Message, len(table.Rows),
				"required message column is missing (columns: %v)", table.Columns)
		}

		riskIdx := table.ColumnIndex(cols.Risk)
		if riskIdx < 0 && cols.Risk != "" {
			logger.Warn("Table %s has no %q column, its events are labeled UNKNOWN", table.Name, cols.Risk)
		}
		sourceIdx := table.ColumnIndex(cols.Source)
		componentIdx := table.ColumnIndex(cols.Component)
		reasoningIdx := table.ColumnIndex(cols.Reasoning)

		for _, row := range table.Rows {
			set.Total++

			ts, err := ParseTimestamp(cell(row, tsIdx))
			if err != nil {
				set.Dropped++
				set.DroppedByTable[table.Name]++
				logger.Debug("Dropping row from %s: %v", table.Name, err)
				continue
			}

			source := cell(row, sourceIdx)
			if source == "" {
				source = table.Name
			}

			set.Events = append(set.Events, models.Event{
				Timestamp: ts,
				Risk:      models.ParseRiskLevel(cell(row, riskIdx)),
				Message:   cell(row, msgIdx),
				Source:    source,
				Component: cell(row, componentIdx),
				Reasoning: cell(row, reasoningIdx),
			})
		}
	}
	return nil
}
