package classifier

import (
	"context"
	"slices"

	"github.com/moolen/sentinel/internal/logging"
	"github.com/moolen/sentinel/internal/models"
	"github.com/moolen/sentinel/internal/normalize"
)

// DefaultLimit caps how many rows are sent to a provider per run
const DefaultLimit = 50

// Output columns of an annotated table
const (
	ColumnRisk      = "ai_risk"
	ColumnComponent = "ai_component"
	ColumnReasoning = "ai_reasoning"
)

// AnnotateTable classifies the first `limit` rows of a raw event table. The
// message and timestamp columns are renamed to "message" and "timestamp" and
// the ai_risk, ai_component and ai_reasoning columns are appended (or
// overwritten), producing a table in the standard event schema. A limit
// below 1 means DefaultLimit.
func (a *Annotator) AnnotateTable(ctx context.Context, table normalize.Table, messageCol, timestampCol string, limit int) (normalize.Table, error) {
	msgIdx := table.ColumnIndex(messageCol)
	if msgIdx < 0 {
		return normalize.Table{}, models.NewInputError(table.Name, messageCol, len(table.Rows),
			"message column is missing (columns: %v)", table.Columns)
	}
	tsIdx := table.ColumnIndex(timestampCol)
	if tsIdx < 0 {
		return normalize.Table{}, models.NewInputError(table.Name, timestampCol, len(table.Rows),
			"timestamp column is missing (columns: %v)", table.Columns)
	}

	if limit < 1 {
		limit = DefaultLimit
	}
	rows := table.Rows[:min(limit, len(table.Rows))]

	texts := make([]string, len(rows))
	for i, row := range rows {
		if msgIdx < len(row) {
			texts[i] = row[msgIdx]
		}
	}

	a.logger.Info("Starting analysis on first %d of %d rows", len(rows), len(table.Rows))
	labels, err := a.ClassifyAll(ctx, texts)
	if err != nil {
		return normalize.Table{}, err
	}

	out := normalize.Table{Name: table.Name, Columns: slices.Clone(table.Columns)}
	out.Columns[msgIdx] = "message"
	out.Columns[tsIdx] = "timestamp"

	riskIdx := appendColumn(&out, ColumnRisk)
	componentIdx := appendColumn(&out, ColumnComponent)
	reasoningIdx := appendColumn(&out, ColumnReasoning)

	high := 0
	out.Rows = make([][]string, len(rows))
	for i, row := range rows {
		r := make([]string, len(out.Columns))
		copy(r, row)
		r[riskIdx] = string(labels[i].Risk)
		r[componentIdx] = labels[i].Component
		r[reasoningIdx] = labels[i].Reasoning
		out.Rows[i] = r
		if labels[i].Risk.IsHigh() {
			high++
		}
	}

	a.logger.InfoWithFields("Analysis complete",
		logging.Field("rows", len(rows)),
		logging.Field("high_risk", high),
	)
	return out, nil
}

// appendColumn returns the index of name, adding it when absent
func appendColumn(t *normalize.Table, name string) int {
	if idx := t.ColumnIndex(name); idx >= 0 {
		return idx
	}
	t.Columns = append(t.Columns, name)
	return len(t.Columns) - 1
}
