// Package synth generates seeded synthetic business metrics and logs for
// demos and tests. The same seed always yields the same data.
package synth

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/moolen/sentinel/internal/logging"
	"github.com/moolen/sentinel/internal/models"
	"github.com/moolen/sentinel/internal/normalize"
)

const (
	baseRevenue  = 50000.0
	revenueNoise = 2000.0
	minRevenue   = 1000.0

	crashEffect    = -30000.0
	recoveryPerDay = 5000.0

	historyDays = 60
	trailerDays = 7
)

// FromEvents builds a revenue series around an event log: 60 days of
// history before the first event and 7 days after the last. Every day with
// a HIGH-risk event starts a crash of -30000 that recovers by 5000 per day
// (including the crash day). Revenue never falls below 1000.
func FromEvents(events []models.Event, seed int64) ([]models.MetricPoint, error) {
	if len(events) == 0 {
		return nil, models.NewInputError("events", "", 0, "cannot generate metrics without events")
	}

	first, last := events[0].Timestamp, events[0].Timestamp
	crashDays := make(map[time.Time]bool)
	for _, e := range events {
		if e.Timestamp.Before(first) {
			first = e.Timestamp
		}
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
		if e.Risk.IsHigh() {
			crashDays[normalize.StartOfDay(e.Timestamp)] = true
		}
	}

	rng := rand.New(rand.NewSource(seed))
	start := normalize.StartOfDay(first).AddDate(0, 0, -historyDays)
	end := normalize.StartOfDay(last).AddDate(0, 0, trailerDays)

	var points []models.MetricPoint
	effect := 0.0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		noise := rng.NormFloat64() * revenueNoise
		if crashDays[d] {
			effect = crashEffect
		}
		if effect < 0 {
			effect = math.Min(0, effect+recoveryPerDay)
		}
		points = append(points, models.MetricPoint{
			Date:  d,
			Value: math.Max(minRevenue, baseRevenue+noise+effect),
		})
	}

	logging.GetLogger("synth").Info("Generated %d days of metrics (%d crash days)", len(points), len(crashDays))
	return points, nil
}

// ScenarioOptions configures IncidentScenario
type ScenarioOptions struct {
	Start        time.Time
	Days         int
	IncidentDate time.Time
	Seed         int64
}

// DefaultScenario is a 60-day series starting 2024-10-01 with an incident
// on 2024-11-15
func DefaultScenario() ScenarioOptions {
	return ScenarioOptions{
		Start:        time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
		Days:         60,
		IncidentDate: time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC),
		Seed:         42,
	}
}

// Scenario is a generated metric series plus the log table that explains it
type Scenario struct {
	Metrics []models.MetricPoint
	Logs    normalize.Table
}

// LatencyColumn names the latency confounder of generated scenarios
const LatencyColumn = "avg_latency_ms"

var (
	scenarioAuthors = []string{"dev_team", "marketing_bot", "db_admin", "sre_bot"}
	scenarioActions = []string{
		"Optimized image assets",
		"Updated copyright year",
		"Ran vacuum on DB",
		"Restarted cache node",
		"Updated CSS for landing page",
	}
)

// SmokingGun is the log message of the change that causes the incident
const SmokingGun = "feat: switched payment API to synchronous validation loop"

// IncidentScenario generates latency (200±15 ms) and revenue (50000±2000)
// where, from the incident date on, latency rises by 400 ms and revenue
// drops by 40 per ms of excess latency. Latency is the confounder. The log
// table holds 2 to 5 routine entries per day plus the causing change at
// 10:15 on the incident date.
func IncidentScenario(opts ScenarioOptions) (*Scenario, error) {
	if opts.Days < 1 {
		return nil, fmt.Errorf("scenario needs at least one day, got %d", opts.Days)
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	start := normalize.StartOfDay(opts.Start)
	incident := normalize.StartOfDay(opts.IncidentDate)

	s := &Scenario{
		Logs: normalize.Table{
			Name:    "system_logs.csv",
			Columns: []string{"timestamp", "author", "message"},
		},
	}

	for i := 0; i < opts.Days; i++ {
		d := start.AddDate(0, 0, i)

		latency := 200 + rng.NormFloat64()*15
		revenue := baseRevenue + rng.NormFloat64()*revenueNoise
		if !d.Before(incident) {
			latency += 400
			revenue -= (latency - 200) * 40
		}
		s.Metrics = append(s.Metrics, models.MetricPoint{
			Date:       d,
			Value:      math.Trunc(revenue),
			Confounder: math.Trunc(latency),
		})

		for n := 2 + rng.Intn(4); n > 0; n-- {
			ts := d.Add(time.Duration(9+rng.Intn(9))*time.Hour + time.Duration(10+rng.Intn(50))*time.Minute)
			s.Logs.Rows = append(s.Logs.Rows, []string{
				ts.Format(time.DateTime),
				scenarioAuthors[rng.Intn(len(scenarioAuthors))],
				scenarioActions[rng.Intn(len(scenarioActions))],
			})
		}
		if d.Equal(incident) {
			s.Logs.Rows = append(s.Logs.Rows, []string{
				d.Add(10*time.Hour + 15*time.Minute).Format(time.DateTime),
				"dev_team",
				SmokingGun,
			})
		}
	}

	sort.SliceStable(s.Logs.Rows, func(i, j int) bool {
		return s.Logs.Rows[i][0] < s.Logs.Rows[j][0]
	})
	return s, nil
}

// MultiCrashOptions configures MultiCrash
type MultiCrashOptions struct {
	Start      time.Time
	Days       int
	CrashDates []time.Time
	// CrashDays is how long each crash lasts (default 2)
	CrashDays int
	Seed      int64
}

// MultiCrash generates revenue (50000±2000) and latency (200±20 ms) with
// several crashes. A crash lasts CrashDays days at 60% revenue and +300 ms
// latency; a crash starting while another is active restarts the count.
func MultiCrash(opts MultiCrashOptions) ([]models.MetricPoint, error) {
	if opts.Days < 1 {
		return nil, fmt.Errorf("multi-crash series needs at least one day, got %d", opts.Days)
	}
	if opts.CrashDays <= 0 {
		opts.CrashDays = 2
	}

	crashes := make(map[time.Time]bool, len(opts.CrashDates))
	for _, c := range opts.CrashDates {
		crashes[normalize.StartOfDay(c)] = true
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	start := normalize.StartOfDay(opts.Start)
	points := make([]models.MetricPoint, 0, opts.Days)
	remaining := 0

	for i := 0; i < opts.Days; i++ {
		d := start.AddDate(0, 0, i)
		revenue := baseRevenue + rng.NormFloat64()*revenueNoise
		latency := 200 + rng.NormFloat64()*20

		if crashes[d] {
			remaining = opts.CrashDays
		}
		if remaining > 0 {
			revenue *= 0.6
			latency += 300
			remaining--
		}
		points = append(points, models.MetricPoint{
			Date:       d,
			Value:      math.Trunc(revenue),
			Confounder: math.Trunc(latency),
		})
	}
	return points, nil
}
