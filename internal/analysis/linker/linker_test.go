package linker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/sentinel/internal/models"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func scenarioEvents() []models.Event {
	return []models.Event{
		{Timestamp: day(16), Risk: models.RiskLow, Message: "css fix", Source: "git"},
		{Timestamp: day(14), Risk: models.RiskLow, Message: "docs update", Source: "git"},
		{Timestamp: day(15), Risk: models.RiskHigh, Message: "sync payment API change", Source: "slack"},
	}
}

func TestLink_Scenario(t *testing.T) {
	result := Link(scenarioEvents(), day(15), LinkOptions{LookbackDays: 2})

	require.Len(t, result.Suspects, 1)
	assert.Equal(t, "sync payment API change", result.Suspects[0].Message)
	assert.Equal(t, "slack", result.Suspects[0].Source)

	require.Len(t, result.Context, 3)
	assert.Equal(t, "docs update", result.Context[0].Message)
	assert.Equal(t, "sync payment API change", result.Context[1].Message)
	assert.Equal(t, "css fix", result.Context[2].Message)

	assert.Equal(t, day(13), result.Window.Start)
	assert.Equal(t, day(17), result.Window.End)
}

func TestLink_TrailingPolicy(t *testing.T) {
	events := append(scenarioEvents(), models.Event{
		Timestamp: day(17), Risk: models.RiskHigh, Message: "late deploy",
	})

	symmetric := Link(events, day(15), LinkOptions{LookbackDays: 2, Policy: PolicySymmetric})
	trailing := Link(events, day(15), LinkOptions{LookbackDays: 2, Policy: PolicyTrailing})

	assert.Len(t, symmetric.Suspects, 2)
	require.Len(t, trailing.Suspects, 1)
	assert.Equal(t, day(16), trailing.Window.End)
	assert.Len(t, trailing.Context, 3)
}

func TestLink_BoundsAreInclusive(t *testing.T) {
	events := []models.Event{
		{Timestamp: day(12), Risk: models.RiskHigh, Message: "start"},
		{Timestamp: day(16), Risk: models.RiskHigh, Message: "end"},
		{Timestamp: day(16).Add(time.Second), Risk: models.RiskHigh, Message: "after"},
	}
	result := Link(events, day(14), LinkOptions{LookbackDays: 2})
	require.Len(t, result.Suspects, 2)
	assert.Equal(t, "start", result.Suspects[0].Message)
	assert.Equal(t, "end", result.Suspects[1].Message)
}

func TestLink_AnomalyDateTruncatedToDay(t *testing.T) {
	result := Link(scenarioEvents(), day(15).Add(18*time.Hour), LinkOptions{LookbackDays: 1})
	assert.Equal(t, day(14), result.Window.Start)
	assert.Len(t, result.Context, 3)
}

func TestLink_UnknownIsNotHigh(t *testing.T) {
	events := []models.Event{
		{Timestamp: day(15), Risk: models.RiskUnknown, Message: "classifier failed"},
		{Timestamp: day(15), Risk: models.RiskLevel("high"), Message: "lowercase label"},
	}
	result := Link(events, day(15), LinkOptions{LookbackDays: 1})
	require.Len(t, result.Suspects, 1)
	assert.Equal(t, "lowercase label", result.Suspects[0].Message)
	assert.Len(t, result.Context, 2)
}

func TestLink_EmptyResultsAreNotNil(t *testing.T) {
	result := Link(nil, day(15), LinkOptions{LookbackDays: 3})
	assert.NotNil(t, result.Suspects)
	assert.NotNil(t, result.Context)
	assert.Empty(t, result.Context)
}

func TestLink_LookbackMonotonicity(t *testing.T) {
	var events []models.Event
	for d := 1; d <= 28; d++ {
		risk := models.RiskLow
		if d%3 == 0 {
			risk = models.RiskHigh
		}
		events = append(events, models.Event{Timestamp: day(d).Add(time.Hour), Risk: risk, Message: "e"})
	}

	for _, policy := range []WindowPolicy{PolicySymmetric, PolicyTrailing} {
		prev := 0
		for lookback := 0; lookback <= 10; lookback++ {
			result := Link(events, day(15), LinkOptions{LookbackDays: lookback, Policy: policy})
			assert.GreaterOrEqual(t, len(result.Suspects), prev, "policy=%s lookback=%d", policy, lookback)
			prev = len(result.Suspects)
		}
	}
}

func TestGroupBySource(t *testing.T) {
	events := []models.Event{
		{Source: "slack", Message: "a"},
		{Source: "git", Message: "b"},
		{Source: "slack", Message: "c"},
	}
	groups := GroupBySource(events)
	require.Len(t, groups, 2)
	assert.Equal(t, "slack", groups[0].Source)
	assert.Len(t, groups[0].Events, 2)
	assert.Equal(t, "c", groups[0].Events[1].Message)
	assert.Equal(t, "git", groups[1].Source)
	assert.Nil(t, GroupBySource(nil))
}

func TestParseWindowPolicy(t *testing.T) {
	p, err := ParseWindowPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicySymmetric, p)

	p, err = ParseWindowPolicy("trailing")
	require.NoError(t, err)
	assert.Equal(t, PolicyTrailing, p)

	_, err = ParseWindowPolicy("forward")
	assert.Error(t, err)
}
