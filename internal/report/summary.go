package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/moolen/sentinel/internal/models"
	"github.com/moolen/sentinel/internal/pipeline"
)

var (
	colorPrimary = lipgloss.Color("#00D4FF")
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
)

type render func(string) string

type palette struct {
	title   render
	label   render
	muted   render
	good    render
	warn    render
	bad     render
	suspect render
}

func style(st lipgloss.Style) render {
	return func(s string) string { return st.Render(s) }
}

func newPalette(styled bool) palette {
	if !styled {
		plain := func(s string) string { return s }
		return palette{plain, plain, plain, plain, plain, plain, plain}
	}
	return palette{
		title:   style(lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)),
		label:   style(lipgloss.NewStyle().Bold(true)),
		muted:   style(lipgloss.NewStyle().Foreground(colorMuted)),
		good:    style(lipgloss.NewStyle().Foreground(colorSuccess)),
		warn:    style(lipgloss.NewStyle().Foreground(colorWarning)),
		bad:     style(lipgloss.NewStyle().Bold(true).Foreground(colorError)),
		suspect: style(lipgloss.NewStyle().Foreground(colorError)),
	}
}

func (p palette) verdict(v pipeline.Verdict) string {
	switch v {
	case pipeline.VerdictGuilty:
		return p.bad(string(v))
	case pipeline.VerdictInconclusive:
		return p.warn(string(v))
	default:
		return p.muted(string(v))
	}
}

// FormatSummary formats a result for terminal display. With styled set the
// output carries ANSI colors.
func FormatSummary(result *pipeline.Result, styled bool) string {
	p := newPalette(styled)
	var sb strings.Builder

	sb.WriteString(p.title("Incident Analysis") + " " + p.muted("(run "+result.RunID+")") + "\n")
	s := result.Summary
	if s.Points > 0 {
		sb.WriteString(fmt.Sprintf("  Points:      %d (%s .. %s)\n", s.Points, s.Start.Format(time.DateOnly), s.End.Format(time.DateOnly)))
		sb.WriteString(fmt.Sprintf("  Mean:        %.2f\n", s.Mean))
		sb.WriteString(fmt.Sprintf("  Std Dev:     %.2f\n", s.StdDev))
		sb.WriteString(fmt.Sprintf("  Range:       %.2f .. %.2f\n", s.Min, s.Max))
	}
	params := result.Parameters
	sb.WriteString(p.muted(fmt.Sprintf("  sensitivity %.2f, window %d, lookback %d (%s), treatment %s from %s",
		params.Sensitivity, params.RollingWindow, params.LookbackDays, params.WindowPolicy,
		params.TreatmentPolicy, params.TreatmentAnchor)) + "\n")

	switch {
	case result.Skip != nil:
		sb.WriteString("\n" + p.warn("Detection skipped: "+result.Skip.String()) + "\n")
	case result.Healthy():
		sb.WriteString("\n" + p.good("No anomalies detected.") + "\n")
	default:
		sb.WriteString("\n" + p.label(fmt.Sprintf("Anomalies: %d", len(result.Anomalies))) + "\n")
		for _, a := range result.Anomalies {
			sb.WriteString(fmt.Sprintf("  %s  value %.2f  z %.2f  %s\n",
				a.Date.Format(time.DateOnly), a.Value, a.ZScore, a.Severity))
		}
		for i := range result.Incidents {
			writeIncident(&sb, p, i+1, &result.Incidents[i])
		}
	}

	if len(result.Warnings) > 0 {
		sb.WriteString("\n" + p.warn("Warnings:") + "\n")
		for _, w := range result.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", w))
		}
	}

	return sb.String()
}

func writeIncident(sb *strings.Builder, p palette, n int, inc *pipeline.Incident) {
	sb.WriteString("\n" + p.label(fmt.Sprintf("Incident #%d: %s", n, inc.Anomaly.Date.Format(time.DateOnly))) + "\n")
	sb.WriteString(fmt.Sprintf("  Window:      %s .. %s\n", inc.Window.Start.Format(time.DateOnly), inc.Window.End.Format(time.DateOnly)))

	if inc.HasSuspects() {
		sb.WriteString(fmt.Sprintf("  Suspects (%d):\n", len(inc.Suspects)))
		for _, e := range inc.Suspects {
			sb.WriteString("    " + p.suspect(formatEvent(e)) + "\n")
		}
	} else {
		sb.WriteString("  Suspects:    none\n")
	}
	if others := len(inc.Context) - len(inc.Suspects); others > 0 {
		sb.WriteString(p.muted(fmt.Sprintf("  Context:     %d other events in window", others)) + "\n")
	}

	if est := inc.Causal.Estimate; est != nil {
		sb.WriteString(fmt.Sprintf("  Effect:      %.2f per day over %d days (total %.2f), adjusted for %s\n",
			est.TreatmentEffect, est.DaysAffected, est.TotalImpact, est.ConfounderUsed))
	} else if inc.Causal.Skip != nil {
		sb.WriteString(p.muted("  Effect:      skipped ("+inc.Causal.Skip.String()+")") + "\n")
	}

	if r := inc.Refutation; r != nil {
		if r.Skip != nil {
			sb.WriteString(p.muted("  Placebo:     skipped ("+r.Skip.String()+")") + "\n")
		} else {
			sb.WriteString(fmt.Sprintf("  Placebo:     mean |effect| %.2f over %d runs, p=%.4f\n",
				r.MeanAbsPlacebo, r.Simulations, r.PValue))
		}
	}

	sb.WriteString("  Verdict:     " + p.verdict(inc.Verdict) + "\n")
}

func formatEvent(e models.Event) string {
	line := e.Timestamp.Format("2006-01-02 15:04")
	if e.Source != "" {
		line += " [" + e.Source + "]"
	}
	if e.Component != "" {
		line += " (" + e.Component + ")"
	}
	return line + " " + e.Message
}
