// Package classifier labels free-text operational events with a risk level,
// the affected component and a short reasoning. Labels come from an LLM
// provider or from a deterministic keyword heuristic; a failed
// classification is reported as UNKNOWN and never blocks the analysis.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/moolen/sentinel/internal/models"
)

// Components the classifier may assign
const (
	ComponentDatabase   = "database"
	ComponentFrontend   = "frontend"
	ComponentPaymentAPI = "payment_api"
	ComponentOther      = "other"
	ComponentUnknown    = "unknown"
)

// Classification is the label attached to one event
type Classification struct {
	Risk      models.RiskLevel `json:"risk_level"`
	Component string           `json:"component"`
	Reasoning string           `json:"reasoning"`
}

// Unknown is the classification used when a provider call fails
func Unknown() Classification {
	return Classification{Risk: models.RiskUnknown, Component: ComponentUnknown, Reasoning: "API Error"}
}

// Classifier labels a single event text
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
	Name() string
}

const promptTemplate = `You are a Senior Site Reliability Engineer (SRE).
Analyze this system log entry: %q

Your Goal: Determine if this event could CAUSE a revenue drop or latency spike.

Rules:
1. documentation, css, typos, and routine maintenance are LOW risk.
2. database changes, api logic changes, infinite loops, and synchronous calls are HIGH risk.

Return a JSON object with this exact format:
{
    "risk_level": "HIGH" or "LOW",
    "component": "database" or "frontend" or "payment_api" or "other",
    "reasoning": "brief explanation"
}`

// Prompt renders the classification prompt for one event
func Prompt(text string) string {
	return fmt.Sprintf(promptTemplate, text)
}

// ParseReply extracts the classification JSON object from a model reply.
// Markdown fences and text around the object are ignored.
func ParseReply(reply string) (Classification, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return Classification{}, fmt.Errorf("no JSON object in reply: %q", truncate(reply, 80))
	}

	var raw struct {
		Risk      string `json:"risk_level"`
		Component string `json:"component"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return Classification{}, fmt.Errorf("invalid classification JSON: %w", err)
	}

	c := Classification{
		Risk:      models.ParseRiskLevel(raw.Risk),
		Component: strings.ToLower(strings.TrimSpace(raw.Component)),
		Reasoning: strings.TrimSpace(raw.Reasoning),
	}
	if c.Component == "" {
		c.Component = ComponentOther
	}
	return c, nil
}

// truncate shortens s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
