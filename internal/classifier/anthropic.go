package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicClassifier classifies events with the Anthropic Messages API
type AnthropicClassifier struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicClassifier creates a classifier. The API key is read from the
// ANTHROPIC_API_KEY environment variable when apiKey is empty.
func NewAnthropicClassifier(apiKey, model string, opts ...option.RequestOption) *AnthropicClassifier {
	if model == "" {
		model = DefaultAnthropicModel
	}
	if apiKey != "" {
		opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	}
	return &AnthropicClassifier{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: 256,
	}
}

// Name implements Classifier
func (a *AnthropicClassifier) Name() string {
	return "anthropic"
}

// Classify implements Classifier
func (a *AnthropicClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(Prompt(text))),
		},
	})
	if err != nil {
		return Classification{}, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var parts []string
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			parts = append(parts, resp.Content[i].Text)
		}
	}
	return ParseReply(strings.Join(parts, ""))
}
