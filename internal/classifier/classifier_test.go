package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/sentinel/internal/config"
	"github.com/moolen/sentinel/internal/models"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    Classification
		wantErr bool
	}{
		{
			name:  "plain json",
			reply: `{"risk_level": "HIGH", "component": "payment_api", "reasoning": "synchronous call"}`,
			want:  Classification{Risk: models.RiskHigh, Component: "payment_api", Reasoning: "synchronous call"},
		},
		{
			name:  "fenced with prose",
			reply: "Here you go:\n```json\n{\"risk_level\": \"low\", \"component\": \"Frontend\", \"reasoning\": \"css\"}\n```",
			want:  Classification{Risk: models.RiskLow, Component: "frontend", Reasoning: "css"},
		},
		{
			name:  "unexpected risk label",
			reply: `{"risk_level": "MEDIUM", "reasoning": "unsure"}`,
			want:  Classification{Risk: models.RiskUnknown, Component: ComponentOther, Reasoning: "unsure"},
		},
		{name: "no object", reply: "HIGH", wantErr: true},
		{name: "broken json", reply: `{"risk_level": }`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.reply)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrompt(t *testing.T) {
	p := Prompt("sync payment API change")
	assert.Contains(t, p, `"sync payment API change"`)
	assert.Contains(t, p, "risk_level")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"deploy payment api", 6, "deploy..."},
		{"héllo", 2, "h..."},
		{"日本語", 4, "日..."},
		{"日本語", 6, "日本..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		assert.Equal(t, tt.want, got)
		assert.True(t, utf8.ValidString(got))
	}
}

func TestKeywordClassifier(t *testing.T) {
	tests := []struct {
		text      string
		risk      models.RiskLevel
		component string
	}{
		{"sync payment API change", models.RiskHigh, ComponentPaymentAPI},
		{"Add index to orders table (DB migration)", models.RiskHigh, ComponentDatabase},
		{"docs update", models.RiskLow, ComponentOther},
		{"css fix", models.RiskLow, ComponentFrontend},
		{"fix typo in payment docs", models.RiskHigh, ComponentPaymentAPI},
		{"bump version", models.RiskLow, ComponentOther},
		{"feedback form copy", models.RiskLow, ComponentOther},
	}

	k := NewKeywordClassifier()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := k.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.risk, got.Risk)
			assert.Equal(t, tt.component, got.Component)
			assert.NotEmpty(t, got.Reasoning)
		})
	}
}

func TestAnthropicClassifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultAnthropicModel, body["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_01",
			"type":        "message",
			"role":        "assistant",
			"model":       DefaultAnthropicModel,
			"stop_reason": "end_turn",
			"content": []map[string]any{
				{"type": "text", "text": `{"risk_level": "HIGH", "component": "database", "reasoning": "schema change"}`},
			},
			"usage": map[string]any{"input_tokens": 10, "output_tokens": 20},
		})
	}))
	defer server.Close()

	c := NewAnthropicClassifier("test-key", "", option.WithBaseURL(server.URL), option.WithMaxRetries(0))
	got, err := c.Classify(context.Background(), "alter table orders")
	require.NoError(t, err)
	assert.Equal(t, Classification{Risk: models.RiskHigh, Component: "database", Reasoning: "schema change"}, got)
	assert.Equal(t, "anthropic", c.Name())
}

func TestOpenAIClassifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   DefaultOpenAIModel,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": `{"risk_level": "LOW", "component": "frontend", "reasoning": "css only"}`,
				},
			}},
		})
	}))
	defer server.Close()

	c := NewOpenAIClassifier("test-key", "", server.URL+"/v1")
	got, err := c.Classify(context.Background(), "css fix")
	require.NoError(t, err)
	assert.Equal(t, Classification{Risk: models.RiskLow, Component: "frontend", Reasoning: "css only"}, got)
}

func TestOpenAIClassifier_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "bad key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewOpenAIClassifier("test-key", "", server.URL+"/v1")
	_, err := c.Classify(context.Background(), "anything")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	c, err := New(config.ClassifierConfig{Provider: config.ProviderNone})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = New(config.ClassifierConfig{Provider: config.ProviderKeyword})
	require.NoError(t, err)
	assert.Equal(t, "keyword", c.Name())

	_, err = New(config.ClassifierConfig{Provider: config.ProviderAnthropic})
	assert.Error(t, err)
	_, err = New(config.ClassifierConfig{Provider: config.ProviderOpenAI})
	assert.Error(t, err)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	c, err = New(config.ClassifierConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	_, err = New(config.ClassifierConfig{Provider: "bard"})
	assert.Error(t, err)
}
