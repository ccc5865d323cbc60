// Package ingest reads raw tables from CSV and Excel files and writes
// analyzed tables back out.
//
// This package handles:
//   - Path validation and file type detection
//   - CSV and XLSX parsing into normalize.Table
//   - Directory discovery of table files
//   - CSV and XLSX export
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/moolen/sentinel/internal/logging"
	"github.com/moolen/sentinel/internal/normalize"
)

// FileType is a supported table format
type FileType string

const (
	FileTypeUnknown FileType = ""
	FileTypeCSV     FileType = "csv"
	FileTypeXLSX    FileType = "xlsx"
)

// DetectFileType maps a file extension to a FileType (case-insensitive)
func DetectFileType(path string) FileType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FileTypeCSV
	case ".xlsx", ".xlsm":
		return FileTypeXLSX
	default:
		return FileTypeUnknown
	}
}

// ReadTable reads a CSV or XLSX file. The first row is the header; the
// table is named after the file's base name.
func ReadTable(path string) (normalize.Table, error) {
	logger := logging.GetLogger("ingest")

	if err := validateFile(path); err != nil {
		return normalize.Table{}, err
	}

	var (
		rows [][]string
		err  error
	)
	switch DetectFileType(path) {
	case FileTypeCSV:
		rows, err = readCSV(path)
	case FileTypeXLSX:
		rows, err = readXLSX(path)
	default:
		return normalize.Table{}, fmt.Errorf("unsupported file type: %s", path)
	}
	if err != nil {
		return normalize.Table{}, err
	}

	if len(rows) == 0 {
		return normalize.Table{}, fmt.Errorf("file has no header row: %s", path)
	}

	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := normalize.Table{
		Name:    filepath.Base(path),
		Columns: header,
		Rows:    rows[1:],
	}
	logger.Debug("Read %s: %d columns, %d rows", table.Name, len(table.Columns), len(table.Rows))
	return table, nil
}

// ReadTables reads several files, failing on the first unreadable one
func ReadTables(paths []string) ([]normalize.Table, error) {
	tables := make([]normalize.Table, 0, len(paths))
	for _, p := range paths {
		t, err := ReadTable(p)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// ExpandPaths replaces every directory in paths by the table files it
// contains (recursively, sorted by path). Plain files are kept as given.
func ExpandPaths(paths []string) ([]string, error) {
	logger := logging.GetLogger("ingest")

	var out []string
	for _, p := range paths {
		if p == "" {
			return nil, fmt.Errorf("path cannot be empty")
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("path does not exist: %s", p)
			}
			return nil, fmt.Errorf("failed to stat path %s: %w", p, err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}

		found := 0
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				logger.Warn("Error walking path %s: %v", path, err)
				return nil
			}
			if d.IsDir() || DetectFileType(path) == FileTypeUnknown {
				return nil
			}
			out = append(out, path)
			found++
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk directory %s: %w", p, err)
		}
		if found == 0 {
			return nil, fmt.Errorf("no CSV or XLSX files found in directory: %s", p)
		}
	}
	return out, nil
}

func validateFile(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", path)
		}
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	return nil
}

func readCSV(path string) ([][]string, error) {
	// #nosec G304 -- input path is intentionally user-provided
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets: %s", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}
