package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/moolen/sentinel/internal/classifier"
	"github.com/moolen/sentinel/internal/config"
	"github.com/moolen/sentinel/internal/ingest"
	"github.com/moolen/sentinel/internal/logging"
	"github.com/moolen/sentinel/internal/models"
	"github.com/moolen/sentinel/internal/normalize"
	"github.com/moolen/sentinel/internal/pipeline"
	"github.com/moolen/sentinel/internal/report"
	"github.com/moolen/sentinel/internal/synth"
	"github.com/moolen/sentinel/internal/tracing"
)

var (
	eventPaths      []string
	metricsPath     string
	generateMetrics bool
	classifyEvents  bool
	outputFormat    string
	outputPath      string
	metricsFilePath string

	// Column overrides
	timestampCol  string
	riskCol       string
	messageCol    string
	sourceCol     string
	dateCol       string
	valueCol      string
	confounderCol string

	// Analysis overrides
	sensitivity     float64
	rollingWindow   int
	lookbackDays    int
	windowPolicy    string
	treatmentPolicy string
	treatmentAnchor string
	noRefute        bool
	simulations     int
	seed            int64

	tracingEnabled   bool
	tracingEndpoint  string
	tracingInsecure  bool
	tracingTLSCAPath string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Detect metric drops and estimate their cause",
	Long: `Analyze reads one or more event tables and a daily metric table, flags
days where the metric fell below its rolling baseline, links each drop to the
HIGH-risk events around it and estimates the causal effect with a placebo
check.`,
	Example: `  sentinel analyze --events logs/ --metrics business_metrics.csv
  sentinel analyze --events system_logs.csv --generate-metrics --format json`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringSliceVar(&eventPaths, "events", nil, "Event tables (CSV/XLSX files or directories, repeatable)")
	f.StringVar(&metricsPath, "metrics", "", "Daily metric table (CSV/XLSX)")
	f.BoolVar(&generateMetrics, "generate-metrics", false, "Generate a synthetic revenue series from the events instead of --metrics")
	f.BoolVar(&classifyEvents, "classify", false, "Classify tables that lack a risk column with the configured classifier")
	f.StringVarP(&outputFormat, "format", "f", "text", "Output format (text, json, yaml)")
	f.StringVarP(&outputPath, "output", "o", "", "Write the report to this file instead of stdout")
	f.StringVar(&metricsFilePath, "metrics-file", "", "Write Prometheus metrics of the run to this file")

	f.StringVar(&timestampCol, "timestamp-col", "", "Event timestamp column")
	f.StringVar(&riskCol, "risk-col", "", "Event risk column")
	f.StringVar(&messageCol, "message-col", "", "Event message column")
	f.StringVar(&sourceCol, "source-col", "", "Event source column")
	f.StringVar(&dateCol, "date-col", "", "Metric date column")
	f.StringVar(&valueCol, "value-col", "", "Metric value column")
	f.StringVar(&confounderCol, "confounder-col", "", "Metric confounder column (synthesized when missing)")

	f.Float64Var(&sensitivity, "sensitivity", 0, "Z-score threshold for anomalies")
	f.IntVar(&rollingWindow, "window", 0, "Rolling baseline window in days")
	f.IntVar(&lookbackDays, "lookback", 0, "Days around an anomaly to search for events")
	f.StringVar(&windowPolicy, "window-policy", "", "Event window policy (symmetric, trailing)")
	f.StringVar(&treatmentPolicy, "treatment-policy", "", "Treatment policy (absorbing, window)")
	f.StringVar(&treatmentAnchor, "anchor", "", "Treatment anchor (anomaly, first_suspect)")
	f.BoolVar(&noRefute, "no-refute", false, "Skip the placebo refutation")
	f.IntVar(&simulations, "simulations", 0, "Placebo simulations")
	f.Int64Var(&seed, "seed", 0, "Random seed for placebo shuffles and generated metrics")

	f.BoolVar(&tracingEnabled, "tracing-enabled", false, "Export OpenTelemetry spans")
	f.StringVar(&tracingEndpoint, "tracing-endpoint", "", "OTLP gRPC endpoint (e.g. localhost:4317)")
	f.BoolVar(&tracingInsecure, "tracing-insecure", false, "Use plaintext gRPC for span export")
	f.StringVar(&tracingTLSCAPath, "tracing-tls-ca", "", "CA bundle for the collector certificate")
}

// applyAnalyzeFlags overrides config values with explicitly set flags
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	set := func(name string) bool { return f.Changed(name) }

	if set("timestamp-col") {
		cfg.Columns.Events.Timestamp = timestampCol
	}
	if set("risk-col") {
		cfg.Columns.Events.Risk = riskCol
	}
	if set("message-col") {
		cfg.Columns.Events.Message = messageCol
	}
	if set("source-col") {
		cfg.Columns.Events.Source = sourceCol
	}
	if set("date-col") {
		cfg.Columns.Metrics.Date = dateCol
	}
	if set("value-col") {
		cfg.Columns.Metrics.Value = valueCol
	}
	if set("confounder-col") {
		cfg.Columns.Metrics.Confounder = confounderCol
	}

	if set("sensitivity") {
		cfg.Detection.Sensitivity = sensitivity
	}
	if set("window") {
		cfg.Detection.RollingWindow = rollingWindow
	}
	if set("lookback") {
		cfg.Linking.LookbackDays = lookbackDays
	}
	if set("window-policy") {
		cfg.Linking.WindowPolicy = windowPolicy
	}
	if set("treatment-policy") {
		cfg.Causal.TreatmentPolicy = treatmentPolicy
	}
	if set("anchor") {
		cfg.Causal.TreatmentAnchor = treatmentAnchor
	}
	if noRefute {
		cfg.Refutation.Enabled = false
	}
	if set("simulations") {
		cfg.Refutation.Simulations = simulations
	}
	if set("seed") {
		cfg.Refutation.Seed = seed
	}

	if set("tracing-enabled") {
		cfg.Tracing.Enabled = tracingEnabled
	}
	if set("tracing-endpoint") {
		cfg.Tracing.Endpoint = tracingEndpoint
	}
	if set("tracing-insecure") {
		cfg.Tracing.Insecure = tracingInsecure
	}
	if set("tracing-tls-ca") {
		cfg.Tracing.TLSCAPath = tracingTLSCAPath
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logger := logging.GetLogger("sentinel")

	if len(eventPaths) == 0 {
		return fmt.Errorf("--events is required")
	}
	if metricsPath == "" && !generateMetrics {
		return fmt.Errorf("either --metrics or --generate-metrics is required")
	}
	format, err := report.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyAnalyzeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:   cfg.Tracing.Enabled,
		Endpoint:  cfg.Tracing.Endpoint,
		Insecure:  cfg.Tracing.Insecure,
		TLSCAPath: cfg.Tracing.TLSCAPath,
		Version:   Version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracing shutdown failed: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()

	events, warnings, err := loadEvents(ctx, cfg, reg)
	if err != nil {
		return err
	}

	input := pipeline.Input{Events: events}
	if metricsPath != "" {
		series, err := loadMetrics(metricsPath, cfg.Columns.Metrics)
		if err != nil {
			return err
		}
		input.Metrics = series.Points
		input.ConfounderName = series.ConfounderName
		if n := series.Dropped(); n > 0 {
			warnings = append(warnings, fmt.Sprintf("%d metric rows dropped (unparseable date or value)", n))
		}
		if series.Duplicates > 0 {
			warnings = append(warnings, fmt.Sprintf("%d duplicate metric dates collapsed", series.Duplicates))
		}
	} else {
		points, err := synth.FromEvents(events, cfg.Refutation.Seed)
		if err != nil {
			return err
		}
		input.Metrics = normalize.WithRollingConfounder(points)
		input.ConfounderName = normalize.SynthesizedConfounder
		warnings = append(warnings, "metrics were generated from the event log")
	}

	p, err := pipeline.New(cfg,
		pipeline.WithMetrics(pipeline.NewMetrics(reg)),
		pipeline.WithTracer(tp.Tracer("sentinel.pipeline")),
	)
	if err != nil {
		return err
	}

	result, err := p.Run(ctx, input)
	if err != nil {
		return err
	}
	result.Warnings = append(warnings, result.Warnings...)

	if err := writeReport(result, format); err != nil {
		return err
	}

	if metricsFilePath != "" {
		if err := prometheus.WriteToTextfile(metricsFilePath, reg); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
		logger.Info("Wrote run metrics to %s", metricsFilePath)
	}
	return nil
}

// loadEvents reads, optionally classifies and normalizes the event tables
func loadEvents(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) ([]models.Event, []string, error) {
	paths, err := ingest.ExpandPaths(eventPaths)
	if err != nil {
		return nil, nil, err
	}
	tables, err := ingest.ReadTables(paths)
	if err != nil {
		return nil, nil, err
	}

	groups := []normalize.EventGroup{{Tables: tables, Columns: eventColumns(cfg.Columns.Events)}}
	if classifyEvents {
		groups, err = classifyTables(ctx, cfg, reg, tables, groups[0].Columns)
		if err != nil {
			return nil, nil, err
		}
	}

	set, err := normalize.NormalizeEventGroups(groups)
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	if set.Dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d of %d event rows dropped (unparseable timestamp)", set.Dropped, set.Total))
	}
	return set.Events, warnings, nil
}

// classifyTables annotates every table without a risk column. Tables that
// already carry one keep the configured mapping; annotated tables are read
// with the standard event schema.
func classifyTables(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, tables []normalize.Table, cols normalize.EventColumns) ([]normalize.EventGroup, error) {
	labeled := normalize.EventGroup{Columns: cols}
	c, err := classifier.New(cfg.Classifier)
	if err != nil {
		return nil, err
	}
	if c == nil {
		labeled.Tables = tables
		return []normalize.EventGroup{labeled}, nil
	}
	annotator, err := classifier.NewAnnotator(c, annotatorOptions(cfg.Classifier, classifier.NewMetrics(reg)))
	if err != nil {
		return nil, err
	}

	std := normalize.StandardEventColumns
	std.Source = cols.Source
	annotated := normalize.EventGroup{Columns: std}

	for _, t := range tables {
		if t.HasColumn(cols.Risk) {
			labeled.Tables = append(labeled.Tables, t)
			continue
		}
		at, err := annotator.AnnotateTable(ctx, t, cols.Message, cols.Timestamp, cfg.Classifier.Limit)
		if err != nil {
			return nil, err
		}
		annotated.Tables = append(annotated.Tables, at)
	}
	return []normalize.EventGroup{labeled, annotated}, nil
}

func annotatorOptions(cfg config.ClassifierConfig, m *classifier.Metrics) classifier.AnnotatorOptions {
	return classifier.AnnotatorOptions{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Concurrency:       cfg.Concurrency,
		CacheSize:         cfg.CacheSize,
		Timeout:           cfg.Timeout,
		Metrics:           m,
		Redact:            cfg.Redact,
	}
}

func loadMetrics(path string, cols config.MetricColumns) (*normalize.MetricSeries, error) {
	table, err := ingest.ReadTable(path)
	if err != nil {
		return nil, err
	}
	return normalize.NormalizeMetrics(table, normalize.MetricColumns{
		Date:       cols.Date,
		Value:      cols.Value,
		Confounder: cols.Confounder,
	})
}

func eventColumns(c config.EventColumns) normalize.EventColumns {
	return normalize.EventColumns{
		Timestamp: c.Timestamp,
		Risk:      c.Risk,
		Message:   c.Message,
		Source:    c.Source,
		Component: c.Component,
		Reasoning: c.Reasoning,
	}
}

// writeReport writes to --output or stdout. Text goes to a terminal styled.
func writeReport(result *pipeline.Result, format report.Format) error {
	var w io.Writer = os.Stdout
	styled := format == report.FormatText && isTerminal(os.Stdout)

	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
		styled = false
	}

	return report.Write(w, result, format, styled)
}
