// Package pipeline chains anomaly detection, event linking and causal
// estimation into a single stateless analysis run.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/moolen/sentinel/internal/analysis/anomaly"
	"github.com/moolen/sentinel/internal/analysis/causal"
	"github.com/moolen/sentinel/internal/analysis/linker"
	"github.com/moolen/sentinel/internal/config"
	"github.com/moolen/sentinel/internal/logging"
	"github.com/moolen/sentinel/internal/models"
)

// Pipeline runs Detector → Linker → Estimator over normalized input. It
// holds configuration only; every Run works on its own data.
type Pipeline struct {
	cfg       *config.Config
	detector  *anomaly.Detector
	estimator *causal.Estimator
	linkOpts  linker.LinkOptions
	metrics   *Metrics
	tracer    trace.Tracer
	logger    *logging.Logger

	// now is overridable in tests
	now func() time.Time
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithMetrics records run metrics
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTracer wraps each stage in a span
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// New creates a pipeline from a validated configuration
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	windowPolicy, err := linker.ParseWindowPolicy(cfg.Linking.WindowPolicy)
	if err != nil {
		return nil, err
	}
	treatmentPolicy, err := causal.ParseTreatmentPolicy(cfg.Causal.TreatmentPolicy)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg,
		detector: anomaly.NewDetector(cfg.Detection.RollingWindow, cfg.Detection.Sensitivity),
		estimator: causal.NewEstimator(causal.Options{
			MinPoints:     cfg.Causal.MinPoints,
			Policy:        treatmentPolicy,
			TreatmentDays: cfg.Causal.TreatmentDays,
		}),
		linkOpts: linker.LinkOptions{LookbackDays: cfg.Linking.LookbackDays, Policy: windowPolicy},
		tracer:   noop.NewTracerProvider().Tracer("pipeline"),
		logger:   logging.GetLogger("pipeline"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run analyzes one input. Only an empty metric series, duplicate dates or a
// cancelled context is an error; everything else degrades into skip reasons.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	started := p.now()

	ctx, span := p.tracer.Start(ctx, "pipeline.Run",
		trace.WithAttributes(
			attribute.Int("metrics.points", len(in.Metrics)),
			attribute.Int("events.count", len(in.Events)),
		))
	defer span.End()

	if len(in.Metrics) == 0 {
		err := models.NewInputError("metrics", "", 0, "metric series is empty")
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty metric series")
		return nil, err
	}
	ordered, err := orderSeries(in.Metrics)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid metric series")
		return nil, err
	}
	in.Metrics = ordered

	result := &Result{
		RunID:       uuid.NewString(),
		GeneratedAt: started.UTC(),
		Parameters:  p.parameters(),
		Summary:     summarize(in.Metrics),
		Anomalies:   []models.AnomalyRecord{},
		Incidents:   []Incident{},
	}
	logger := p.logger.WithField("run_id", result.RunID)

	if p.metrics != nil {
		p.metrics.RunsTotal.Inc()
		defer func() {
			p.metrics.RunDuration.Observe(p.now().Sub(started).Seconds())
		}()
	}

	window := p.detector.Window()
	if len(in.Metrics) < window {
		result.Skip = models.NewSkipReason(models.SkipInsufficientData,
			(&models.InsufficientDataError{What: "anomaly detection", Available: len(in.Metrics), Required: window}).Error())
		result.Baseline = p.detector.Baseline(in.Metrics)
		p.metrics.skip("detection", string(result.Skip.Code))
		logger.Warn("Series too short for analysis: %s", result.Skip)
		span.SetStatus(codes.Ok, "skipped")
		return result, nil
	}

	_, detectSpan := p.tracer.Start(ctx, "pipeline.Detect")
	result.Baseline = p.detector.Baseline(in.Metrics)
	result.Anomalies = p.detector.FromBaseline(result.Baseline)
	if result.Anomalies == nil {
		result.Anomalies = []models.AnomalyRecord{}
	}
	detectSpan.SetAttributes(attribute.Int("anomalies", len(result.Anomalies)))
	detectSpan.End()

	if p.metrics != nil {
		p.metrics.AnomaliesTotal.Add(float64(len(result.Anomalies)))
	}

	if len(result.Anomalies) == 0 {
		logger.InfoWithFields("System healthy, no anomalies detected",
			logging.Field("points", result.Summary.Points),
			logging.Field("mean", result.Summary.Mean),
		)
		span.SetStatus(codes.Ok, "healthy")
		return result, nil
	}

	limit := len(result.Anomalies)
	if p.cfg.Causal.MaxIncidents > 0 && limit > p.cfg.Causal.MaxIncidents {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%d anomalies detected, analyzing the %d most severe", limit, p.cfg.Causal.MaxIncidents))
		limit = p.cfg.Causal.MaxIncidents
	}

	for _, a := range result.Anomalies[:limit] {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return nil, err
		}
		incident := p.analyzeIncident(ctx, in, a)
		result.Incidents = append(result.Incidents, incident)

		logger.InfoWithFields("Incident analyzed",
			logging.Field("date", a.Date.Format(time.DateOnly)),
			logging.Field("z_score", a.ZScore),
			logging.Field("suspects", len(incident.Suspects)),
			logging.Field("verdict", string(incident.Verdict)),
		)
	}

	span.SetAttributes(attribute.Int("incidents", len(result.Incidents)))
	span.SetStatus(codes.Ok, "completed")
	return result, nil
}

func (p *Pipeline) analyzeIncident(ctx context.Context, in Input, a models.AnomalyRecord) Incident {
	_, span := p.tracer.Start(ctx, "pipeline.Incident",
		trace.WithAttributes(attribute.String("anomaly.date", a.Date.Format(time.DateOnly))))
	defer span.End()

	link := linker.Link(in.Events, a.Date, p.linkOpts)
	incident := Incident{
		Anomaly:       a,
		Window:        link.Window,
		Suspects:      link.Suspects,
		Context:       link.Context,
		TreatmentDate: p.treatmentDate(a, link.Suspects),
		Verdict:       VerdictUntested,
	}
	if p.metrics != nil {
		p.metrics.SuspectsTotal.Add(float64(len(link.Suspects)))
	}

	if p.cfg.Causal.RequireSuspects && !incident.HasSuspects() {
		incident.Causal = causal.EstimateResult{
			Status: causal.StatusSkipped,
			Skip: models.NewSkipReason(models.SkipNoSuspects, fmt.Sprintf(
				"no HIGH risk events between %s and %s",
				link.Window.Start.Format(time.DateOnly), link.Window.End.Format(time.DateOnly))),
		}
		p.metrics.skip("causal", string(models.SkipNoSuspects))
		p.recordVerdict(incident.Verdict)
		return incident
	}

	series := in.Metrics
	incident.Causal = p.estimator.Estimate(series, incident.TreatmentDate)
	if est := incident.Causal.Estimate; est != nil {
		est.ConfounderUsed = in.ConfounderName
		span.SetAttributes(attribute.Float64("causal.effect", est.TreatmentEffect))
	} else {
		p.metrics.skip("causal", string(incident.Causal.Skip.Code))
		p.recordVerdict(incident.Verdict)
		return incident
	}

	if !p.cfg.Refutation.Enabled {
		p.recordVerdict(incident.Verdict)
		return incident
	}

	refutation := p.estimator.Refute(series, incident.TreatmentDate, causal.RefuteOptions{
		Simulations: p.cfg.Refutation.Simulations,
		Seed:        p.cfg.Refutation.Seed,
	})
	incident.Refutation = &refutation
	incident.Verdict = Judge(incident.Causal.Estimate, &refutation, p.cfg.Refutation.VerdictFactor)
	if refutation.Status != causal.StatusEstimated {
		p.metrics.skip("refutation", string(refutation.Skip.Code))
	}

	p.recordVerdict(incident.Verdict)
	return incident
}

// treatmentDate anchors the treatment at the anomaly, or at the first
// suspect when configured and one exists
func (p *Pipeline) treatmentDate(a models.AnomalyRecord, suspects []models.Event) time.Time {
	if p.cfg.Causal.TreatmentAnchor == config.AnchorFirstSuspect && len(suspects) > 0 {
		t := suspects[0].Timestamp.UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return a.Date
}

func (p *Pipeline) recordVerdict(v Verdict) {
	if p.metrics != nil {
		p.metrics.VerdictsTotal.WithLabelValues(string(v)).Inc()
	}
}

func (p *Pipeline) parameters() Parameters {
	return Parameters{
		Sensitivity:     p.cfg.Detection.Sensitivity,
		RollingWindow:   p.detector.Window(),
		LookbackDays:    p.linkOpts.LookbackDays,
		WindowPolicy:    string(p.linkOpts.Policy),
		TreatmentPolicy: p.cfg.Causal.TreatmentPolicy,
		TreatmentAnchor: p.cfg.Causal.TreatmentAnchor,
		Refutation:      p.cfg.Refutation.Enabled,
		Seed:            p.cfg.Refutation.Seed,
	}
}

// Judge turns an estimate and its refutation into a verdict. The incident
// is GUILTY when |effect| exceeds factor times the mean absolute placebo
// effect.
func Judge(estimate *models.CausalEstimate, refutation *causal.RefutationResult, factor float64) Verdict {
	if estimate == nil || refutation == nil || refutation.Status != causal.StatusEstimated {
		return VerdictUntested
	}
	if refutation.ExceedsPlacebo(factor) {
		return VerdictGuilty
	}
	return VerdictInconclusive
}

// orderSeries returns a copy of the series sorted ascending by date.
// Windowed computations assume one point per day in date order.
func orderSeries(series []models.MetricPoint) ([]models.MetricPoint, error) {
	ordered := make([]models.MetricPoint, len(series))
	copy(ordered, series)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Date.Equal(ordered[i-1].Date) {
			return nil, models.NewInputError("metrics", "date", 0,
				"duplicate date %s", ordered[i].Date.Format(time.DateOnly))
		}
	}
	return ordered, nil
}

func summarize(series []models.MetricPoint) Summary {
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}
	s := Summary{
		Points: len(series),
		Start:  series[0].Date,
		End:    series[len(series)-1].Date,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	return s
}
