package normalize

import "strings"

// Table is a raw, untyped table as read from a CSV file, a spreadsheet or an
// upstream collector. Name identifies the table in reports and is used as
// the event source when no source column exists.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the index of the named column, or -1. Matching ignores
// surrounding whitespace and case.
func (t Table) ColumnIndex(name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return -1
	}
	for i, c := range t.Columns {
		if strings.ToLower(strings.TrimSpace(c)) == want {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table has the named column
func (t Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// cell returns row[idx] or "" for short rows and negative indexes
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
