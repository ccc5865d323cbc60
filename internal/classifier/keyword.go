package classifier

import (
	"context"
	"strings"
	"unicode"

	"github.com/moolen/sentinel/internal/models"
)

// highRiskKeywords mark changes that can plausibly cause a revenue drop
var highRiskKeywords = map[string]string{
	"database":    ComponentDatabase,
	"db":          ComponentDatabase,
	"sql":         ComponentDatabase,
	"migration":   ComponentDatabase,
	"schema":      ComponentDatabase,
	"index":       ComponentDatabase,
	"query":       ComponentDatabase,
	"payment":     ComponentPaymentAPI,
	"payments":    ComponentPaymentAPI,
	"checkout":    ComponentPaymentAPI,
	"billing":     ComponentPaymentAPI,
	"api":         ComponentOther,
	"sync":        ComponentOther,
	"synchronous": ComponentOther,
	"loop":        ComponentOther,
	"timeout":     ComponentOther,
	"deadlock":    ComponentOther,
	"retry":       ComponentOther,
	"cache":       ComponentOther,
	"outage":      ComponentOther,
	"rollback":    ComponentOther,
}

// lowRiskKeywords mark routine changes
var lowRiskKeywords = map[string]string{
	"docs":          ComponentOther,
	"doc":           ComponentOther,
	"documentation": ComponentOther,
	"readme":        ComponentOther,
	"typo":          ComponentOther,
	"typos":         ComponentOther,
	"comment":       ComponentOther,
	"comments":      ComponentOther,
	"lint":          ComponentOther,
	"format":        ComponentOther,
	"chore":         ComponentOther,
	"maintenance":   ComponentOther,
	"css":           ComponentFrontend,
	"style":         ComponentFrontend,
	"styles":        ComponentFrontend,
	"ui":            ComponentFrontend,
	"frontend":      ComponentFrontend,
}

// KeywordClassifier is an offline heuristic following the same rules as the
// LLM prompt. HIGH-risk keywords win over LOW-risk ones.
type KeywordClassifier struct{}

// NewKeywordClassifier creates a keyword classifier
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Name implements Classifier
func (k *KeywordClassifier) Name() string {
	return "keyword"
}

// Classify implements Classifier. It never fails.
func (k *KeywordClassifier) Classify(_ context.Context, text string) (Classification, error) {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var high, low []string
	highComponent, lowComponent := "", ""
	for _, tok := range tokens {
		if c, ok := highRiskKeywords[tok]; ok {
			high = append(high, tok)
			if highComponent == "" || highComponent == ComponentOther {
				highComponent = c
			}
		}
		if c, ok := lowRiskKeywords[tok]; ok {
			low = append(low, tok)
			if lowComponent == "" || lowComponent == ComponentOther {
				lowComponent = c
			}
		}
	}

	switch {
	case len(high) > 0:
		return Classification{
			Risk:      models.RiskHigh,
			Component: highComponent,
			Reasoning: "touches " + strings.Join(high, ", "),
		}, nil
	case len(low) > 0:
		return Classification{
			Risk:      models.RiskLow,
			Component: lowComponent,
			Reasoning: "routine change: " + strings.Join(low, ", "),
		}, nil
	default:
		return Classification{
			Risk:      models.RiskLow,
			Component: ComponentOther,
			Reasoning: "no risk indicators",
		}, nil
	}
}
