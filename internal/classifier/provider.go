package classifier

import (
	"fmt"
	"os"

	"github.com/moolen/sentinel/internal/config"
)

// New builds the classifier named by cfg.Provider. API keys are read from
// ANTHROPIC_API_KEY and OPENAI_API_KEY; OPENAI_BASE_URL overrides the
// OpenAI endpoint. ProviderNone returns nil.
func New(cfg config.ClassifierConfig) (Classifier, error) {
	switch cfg.Provider {
	case config.ProviderNone:
		return nil, nil
	case config.ProviderKeyword, "":
		return NewKeywordClassifier(), nil
	case config.ProviderAnthropic:
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		return NewAnthropicClassifier(key, cfg.Model), nil
	case config.ProviderOpenAI:
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return NewOpenAIClassifier(key, cfg.Model, os.Getenv("OPENAI_BASE_URL")), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}
