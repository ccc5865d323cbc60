package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/moolen/sentinel/internal/ingest"
	"github.com/moolen/sentinel/internal/normalize"
	"github.com/moolen/sentinel/internal/synth"
)

var (
	genSeed       int64
	genMetricsOut string
	genCrashOut   string
	genEventPaths []string
	genOutputDir  string
	genStart      string
	genDays       int
	genCrashDates []string
	genCrashDays  int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate synthetic metrics and logs",
	Long:  `Generate writes seeded synthetic datasets for demos and testing.`,
}

var generateMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Generate a revenue series from an event log",
	Long: `Metrics writes a daily revenue series spanning 60 days before the first
event to 7 days after the last. Each day with a HIGH-risk event starts a
crash that recovers over the following days.`,
	RunE: runGenerateMetrics,
}

var generateScenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Generate a single-incident dataset with a latency confounder",
	Long: `Scenario writes business_metrics.csv (date, daily_revenue, avg_latency_ms)
and system_logs.csv (timestamp, author, message) for a 60-day window with one
incident on 2024-11-15.`,
	RunE: runGenerateScenario,
}

var generateMultiCrashCmd = &cobra.Command{
	Use:   "multi-crash",
	Short: "Generate a metric series with several crashes",
	RunE:  runGenerateMultiCrash,
}

func init() {
	generateCmd.PersistentFlags().Int64Var(&genSeed, "seed", 42, "Random seed")

	generateMetricsCmd.Flags().StringSliceVar(&genEventPaths, "events", nil, "Event tables (files or directories)")
	generateMetricsCmd.Flags().StringVarP(&genMetricsOut, "output", "o", "generated_metrics.csv", "Output table")
	_ = generateMetricsCmd.MarkFlagRequired("events")

	generateScenarioCmd.Flags().StringVar(&genOutputDir, "output-dir", ".", "Directory for the generated files")

	generateMultiCrashCmd.Flags().StringVarP(&genCrashOut, "output", "o", "multi_crash_metrics.csv", "Output table")
	generateMultiCrashCmd.Flags().StringVar(&genStart, "start", "2025-12-01", "First day")
	generateMultiCrashCmd.Flags().IntVar(&genDays, "days", 30, "Number of days")
	generateMultiCrashCmd.Flags().StringSliceVar(&genCrashDates, "crash-dates",
		[]string{"2025-12-12", "2025-12-17", "2025-12-19", "2025-12-22"}, "Crash start dates")
	generateMultiCrashCmd.Flags().IntVar(&genCrashDays, "crash-days", 2, "Days each crash lasts")

	generateCmd.AddCommand(generateMetricsCmd)
	generateCmd.AddCommand(generateScenarioCmd)
	generateCmd.AddCommand(generateMultiCrashCmd)
}

func runGenerateMetrics(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	paths, err := ingest.ExpandPaths(genEventPaths)
	if err != nil {
		return err
	}
	tables, err := ingest.ReadTables(paths)
	if err != nil {
		return err
	}
	set, err := normalize.NormalizeEvents(tables, eventColumns(cfg.Columns.Events))
	if err != nil {
		return err
	}

	points, err := synth.FromEvents(set.Events, genSeed)
	if err != nil {
		return err
	}
	table := ingest.MetricsTable(filepath.Base(genMetricsOut), points, cfg.Columns.Metrics.Value, "")
	if err := ingest.WriteTable(genMetricsOut, table); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d days to %s\n", len(points), genMetricsOut)
	return nil
}

func runGenerateScenario(cmd *cobra.Command, args []string) error {
	opts := synth.DefaultScenario()
	opts.Seed = genSeed

	s, err := synth.IncidentScenario(opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(genOutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	metricsFile := filepath.Join(genOutputDir, "business_metrics.csv")
	logsFile := filepath.Join(genOutputDir, "system_logs.csv")
	if err := ingest.WriteTable(metricsFile, ingest.MetricsTable("business_metrics.csv", s.Metrics, "daily_revenue", synth.LatencyColumn)); err != nil {
		return err
	}
	if err := ingest.WriteTable(logsFile, s.Logs); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d days to %s and %d log rows to %s\n",
		len(s.Metrics), metricsFile, len(s.Logs.Rows), logsFile)
	return nil
}

func runGenerateMultiCrash(cmd *cobra.Command, args []string) error {
	start, err := time.Parse(time.DateOnly, genStart)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	crashes := make([]time.Time, 0, len(genCrashDates))
	for _, raw := range genCrashDates {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return fmt.Errorf("invalid crash date %q: %w", raw, err)
		}
		crashes = append(crashes, d)
	}

	points, err := synth.MultiCrash(synth.MultiCrashOptions{
		Start:      start,
		Days:       genDays,
		CrashDates: crashes,
		CrashDays:  genCrashDays,
		Seed:       genSeed,
	})
	if err != nil {
		return err
	}
	table := ingest.MetricsTable(filepath.Base(genCrashOut), points, "daily_revenue", "latency_ms")
	if err := ingest.WriteTable(genCrashOut, table); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d days with %d crashes to %s\n", len(points), len(crashes), genCrashOut)
	return nil
}
