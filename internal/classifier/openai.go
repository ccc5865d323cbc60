package classifier

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIClassifier classifies events with the OpenAI chat completions API
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

// NewOpenAIClassifier creates a classifier. baseURL overrides the API
// endpoint (OpenAI-compatible gateways); empty uses the default.
func NewOpenAIClassifier(apiKey, model, baseURL string) *OpenAIClassifier {
	if model == "" {
		model = DefaultOpenAIModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClassifier{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Name implements Classifier
func (o *OpenAIClassifier) Name() string {
	return "openai"
}

// Classify implements Classifier
func (o *OpenAIClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: Prompt(text)},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Classification{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Classification{}, fmt.Errorf("OpenAI returned no choices")
	}
	return ParseReply(resp.Choices[0].Message.Content)
}
