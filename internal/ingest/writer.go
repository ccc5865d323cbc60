package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/moolen/sentinel/internal/models"
	"github.com/moolen/sentinel/internal/normalize"
)

// WriteTable writes a table as CSV or XLSX depending on the extension
func WriteTable(path string, table normalize.Table) error {
	switch DetectFileType(path) {
	case FileTypeCSV:
		return writeCSV(path, table)
	case FileTypeXLSX:
		return writeXLSX(path, table)
	default:
		return fmt.Errorf("unsupported output file type: %s", path)
	}
}

func writeCSV(path string, table normalize.Table) error {
	// #nosec G304 -- output path is intentionally user-provided
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(table.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(table.Rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return f.Close()
}

func writeXLSX(path string, table normalize.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	write := func(rowIdx int, values []string) error {
		for c, v := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, rowIdx)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		return nil
	}

	if err := write(1, table.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range table.Rows {
		if err := write(i+2, row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// MetricsTable renders a metric series as a table with a date column, the
// value column and, when confounderCol is set, the confounder column
func MetricsTable(name string, points []models.MetricPoint, valueCol, confounderCol string) normalize.Table {
	table := normalize.Table{Name: name, Columns: []string{"date", valueCol}}
	if confounderCol != "" {
		table.Columns = append(table.Columns, confounderCol)
	}
	for _, p := range points {
		row := []string{p.Date.Format(time.DateOnly), strconv.FormatFloat(p.Value, 'f', 2, 64)}
		if confounderCol != "" {
			row = append(row, strconv.FormatFloat(p.Confounder, 'f', 2, 64))
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}
