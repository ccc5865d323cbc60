package normalize

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/moolen/sentinel/internal/logging"
	"github.com/moolen/sentinel/internal/models"
)

// SynthesizedConfounder identifies the rolling-volatility confounder
const SynthesizedConfounder = "rolling_std_3"

// confounderWindow is the rolling window used to synthesize the confounder
const confounderWindow = 3

// MetricColumns names the raw metric columns. Confounder is optional.
type MetricColumns struct {
	Date       string
	Value      string
	Confounder string
}

// MetricSeries is the normalized metric sequence plus the ingestion report
type MetricSeries struct {
	Points []models.MetricPoint

	// ConfounderName is the source column, or SynthesizedConfounder
	ConfounderName string

	Total         int
	DroppedDates  int
	DroppedValues int
	Duplicates    int
}

// Dropped returns the total number of excluded rows
func (m *MetricSeries) Dropped() int {
	return m.DroppedDates + m.DroppedValues
}

// valueCleaner strips currency symbols and thousands separators
var valueCleaner = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "")

// ParseValue parses a numeric cell such as "50000", "$49,123.50" or "1.2e4"
func ParseValue(raw string) (float64, bool) {
	s := valueCleaner.Replace(strings.TrimSpace(quoteReplacer.Replace(raw)))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// NormalizeMetrics converts a metric table into date-indexed points.
// Dates are truncated to the UTC day; repeated dates keep the last row.
// When cols.Confounder is empty the confounder is synthesized.
func NormalizeMetrics(table Table, cols MetricColumns) (*MetricSeries, error) {
	logger := logging.GetLogger("normalize")

	if len(table.Rows) == 0 {
		return nil, models.NewInputError(table.Name, "", 0, "metric table is empty")
	}

	dateIdx := table.ColumnIndex(cols.Date)
	if dateIdx < 0 {
		return nil, models.NewInputError(table.Name, cols.Date, len(table.Rows),
			"required date column is missing (columns: %v)", table.Columns)
	}
	valueIdx := table.ColumnIndex(cols.Value)
	if valueIdx < 0 {
		return nil, models.NewInputError(table.Name, cols.Value, len(table.Rows),
			"required value column is missing (columns: %v)", table.Columns)
	}
	confIdx := -1
	if cols.Confounder != "" {
		confIdx = table.ColumnIndex(cols.Confounder)
		if confIdx < 0 {
			return nil, models.NewInputError(table.Name, cols.Confounder, len(table.Rows),
				"confounder column is missing (columns: %v)", table.Columns)
		}
	}

	series := &MetricSeries{Total: len(table.Rows)}
	byDate := make(map[time.Time]models.MetricPoint)
	validDates := 0

	for _, row := range table.Rows {
		date, err := ParseDate(cell(row, dateIdx))
		if err != nil {
			series.DroppedDates++
			logger.Debug("Dropping metric row: %v", err)
			continue
		}
		validDates++

		value, ok := ParseValue(cell(row, valueIdx))
		if !ok {
			series.DroppedValues++
			continue
		}

		point := models.MetricPoint{Date: date, Value: value}
		if confIdx >= 0 {
			conf, ok := ParseValue(cell(row, confIdx))
			if !ok {
				series.DroppedValues++
				continue
			}
			point.Confounder = conf
		}

		if _, exists := byDate[date]; exists {
			series.Duplicates++
		}
		byDate[date] = point
	}

	if validDates == 0 {
		return nil, models.NewInputError(table.Name, cols.Date, series.DroppedDates, "no valid dates found")
	}
	if len(byDate) == 0 {
		return nil, models.NewInputError(table.Name, cols.Value, series.DroppedValues,
			"value column is not numeric")
	}

	series.Points = make([]models.MetricPoint, 0, len(byDate))
	for _, p := range byDate {
		series.Points = append(series.Points, p)
	}
	sort.Slice(series.Points, func(i, j int) bool {
		return series.Points[i].Date.Before(series.Points[j].Date)
	})

	if confIdx >= 0 {
		series.ConfounderName = cols.Confounder
	} else {
		series.Points = WithRollingConfounder(series.Points)
		series.ConfounderName = SynthesizedConfounder
	}

	if series.Dropped() > 0 || series.Duplicates > 0 {
		logger.WarnWithFields("Metric rows excluded",
			logging.Field("invalid_dates", series.DroppedDates),
			logging.Field("invalid_values", series.DroppedValues),
			logging.Field("duplicate_dates", series.Duplicates),
		)
	}

	return series, nil
}

// WithRollingConfounder returns a copy of points whose Confounder is the
// rolling sample standard deviation of Value over 3 points (min 1 period).
// Undefined entries fall back to the global standard deviation, then to 0.
func WithRollingConfounder(points []models.MetricPoint) []models.MetricPoint {
	out := make([]models.MetricPoint, len(points))
	copy(out, points)

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	fallback := sampleStdDev(values)
	if math.IsNaN(fallback) {
		fallback = 0
	}

	for i := range out {
		start := max(0, i-confounderWindow+1)
		std := sampleStdDev(values[start : i+1])
		if math.IsNaN(std) {
			std = fallback
		}
		out[i].Confounder = std
	}
	return out
}

// sampleStdDev is the n-1 standard deviation; NaN for fewer than 2 values
func sampleStdDev(x []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.StdDev(x, nil)
}
