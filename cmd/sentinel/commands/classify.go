package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/moolen/sentinel/internal/classifier"
	"github.com/moolen/sentinel/internal/ingest"
	"github.com/moolen/sentinel/internal/logging"
	"github.com/moolen/sentinel/internal/normalize"
)

var (
	classifyInput     string
	classifyOutput    string
	classifyMsgCol    string
	classifyTSCol     string
	classifyLimit     int
	classifyProvider  string
	classifyModel     string
	classifyMetricOut string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Label raw log rows with a risk level",
	Long: `Classify sends the message of each row (up to --limit rows) to the
configured classifier and writes the table in the standard event schema:
timestamp, message, the original columns and ai_risk, ai_component and
ai_reasoning.`,
	Example: `  sentinel classify --input slack_export.csv --message-col text --timestamp-col ts
  sentinel classify --input commits.xlsx --provider anthropic --output analyzed_events.csv`,
	RunE: runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.StringVarP(&classifyInput, "input", "i", "", "Raw log table (CSV/XLSX)")
	f.StringVarP(&classifyOutput, "output", "o", "analyzed_events.csv", "Annotated table to write (CSV/XLSX)")
	f.StringVar(&classifyMsgCol, "message-col", "", "Message column (guessed when empty)")
	f.StringVar(&classifyTSCol, "timestamp-col", "", "Timestamp column (guessed when empty)")
	f.IntVar(&classifyLimit, "limit", 0, "Rows to classify (default from config)")
	f.StringVar(&classifyProvider, "provider", "", "Classifier provider (keyword, anthropic, openai)")
	f.StringVar(&classifyModel, "model", "", "Provider model name")
	f.StringVar(&classifyMetricOut, "metrics-file", "", "Write Prometheus metrics of the run to this file")
	_ = classifyCmd.MarkFlagRequired("input")
}

func runClassify(cmd *cobra.Command, args []string) error {
	logger := logging.GetLogger("sentinel")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if classifyProvider != "" {
		cfg.Classifier.Provider = classifyProvider
	}
	if classifyModel != "" {
		cfg.Classifier.Model = classifyModel
	}
	if classifyLimit > 0 {
		cfg.Classifier.Limit = classifyLimit
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	table, err := ingest.ReadTable(classifyInput)
	if err != nil {
		return err
	}

	msgCol, tsCol := classifyMsgCol, classifyTSCol
	if msgCol == "" || tsCol == "" {
		suggested := normalize.SuggestEventColumns(table.Columns)
		if msgCol == "" {
			msgCol = suggested.Message
		}
		if tsCol == "" {
			tsCol = suggested.Timestamp
		}
		logger.Info("Using columns timestamp=%q message=%q", tsCol, msgCol)
	}

	c, err := classifier.New(cfg.Classifier)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("classifier provider %q cannot classify", cfg.Classifier.Provider)
	}

	reg := prometheus.NewRegistry()
	annotator, err := classifier.NewAnnotator(c, annotatorOptions(cfg.Classifier, classifier.NewMetrics(reg)))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := annotator.AnnotateTable(ctx, table, msgCol, tsCol, cfg.Classifier.Limit)
	if err != nil {
		return err
	}
	if err := ingest.WriteTable(classifyOutput, out); err != nil {
		return err
	}

	high := 0
	riskIdx := out.ColumnIndex(classifier.ColumnRisk)
	for _, row := range out.Rows {
		if row[riskIdx] == "HIGH" {
			high++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Classified %d rows (%d HIGH) with %s -> %s\n", len(out.Rows), high, c.Name(), classifyOutput)

	if classifyMetricOut != "" {
		if err := prometheus.WriteToTextfile(classifyMetricOut, reg); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
	}
	return nil
}
