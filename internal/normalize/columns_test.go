package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuessColumn(t *testing.T) {
	cols := []string{"Day", "Total_Sales", "Notes"}
	assert.Equal(t, 1, GuessColumn(cols, []string{"revenue", "sales"}))
	assert.Equal(t, -1, GuessColumn(cols, []string{"latency"}))
	assert.Equal(t, -1, GuessColumn(nil, []string{"x"}))
}

func TestSuggestEventColumns(t *testing.T) {
	t.Run("standard schema", func(t *testing.T) {
		got := SuggestEventColumns([]string{"timestamp", "message", "ai_risk", "source_file"})
		assert.Equal(t, StandardEventColumns, got)
	})

	t.Run("keyword matches", func(t *testing.T) {
		got := SuggestEventColumns([]string{"msg", "event_time", "risk_level"})
		assert.Equal(t, "event_time", got.Timestamp)
		assert.Equal(t, "msg", got.Message)
		assert.Equal(t, "risk_level", got.Risk)
		assert.Empty(t, got.Source)
	})

	t.Run("positional fallback", func(t *testing.T) {
		got := SuggestEventColumns([]string{"a", "b", "c"})
		assert.Equal(t, "a", got.Timestamp)
		assert.Equal(t, "b", got.Message)
		assert.Equal(t, "c", got.Risk)
	})
}

func TestSuggestMetricColumns(t *testing.T) {
	got := SuggestMetricColumns([]string{"Date", "Daily_Revenue", "Latency_ms"})
	assert.Equal(t, MetricColumns{Date: "Date", Value: "Daily_Revenue", Confounder: "Latency_ms"}, got)

	got = SuggestMetricColumns([]string{"x", "y"})
	assert.Equal(t, MetricColumns{Date: "x", Value: "y"}, got)
}
