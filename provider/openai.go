package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rustledotdev/rustle"
	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider translates batches by calling OpenAI directly, without the
// rustle service in between. The extractor falls back to it when only an
// OPENAI_API_KEY is configured.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string  // OpenAI API key
	Model       string  // Model to use (default: "gpt-4o-mini")
	Temperature float32 // Temperature for generation (default: 0.3)
	BaseURL     string  // Custom base URL (optional)
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
	}
}

// TranslateBatch translates a batch of entries using OpenAI. Returned values
// pass through the translation cleaner.
func (p *OpenAIProvider) TranslateBatch(ctx context.Context, req BatchRequest) (map[string]string, error) {
	if len(req.Entries) == 0 {
		return map[string]string{}, nil
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: buildUserMessage(req)},
		},
		Temperature: p.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &rustle.APIError{
			Message:   "OpenAI API call failed",
			Code:      "openai_failure",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}

	if len(resp.Choices) == 0 {
		return nil, &rustle.APIError{
			Message:   "no response from OpenAI",
			Code:      "openai_empty",
			Retryable: true,
		}
	}

	translations, err := parseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return rustle.CleanBatch(translations), nil
}

func buildSystemPrompt(req BatchRequest) string {
	targetName := rustle.LanguageName(req.TargetLang)
	sourceName := rustle.LanguageName(req.SourceLang)

	prompt := fmt.Sprintf(`# Role
You are an expert native translator. You translate website content from %s to %s with the fluency of a highly educated native speaker.

# Task
Translate the "text" field of every provided item into idiomatic %s.

# Style Guide
- **Natural Flow**: Avoid literal translations. Rephrase sentences to sound completely natural to a native speaker.
- **HTML/Code Safety**: Do NOT translate HTML tags, class names, IDs, attributes, URLs, or email addresses.
- **Interpolation**: Do NOT translate variables or placeholders (e.g., {{name}}, {count}, %%s, $1).
- **Context Hints**: Each item may carry "tags" naming the enclosing HTML elements; use them to disambiguate.

# Format
Return a valid JSON object with a single key "translations" mapping each item's "id" to its translated string.
Example: { "translations": { "a1b2": "translated string" } }
- Do NOT wrap in Markdown code blocks.
- Do NOT add commentary.`, sourceName, targetName, targetName)

	return prompt
}

func buildUserMessage(req BatchRequest) string {
	type item struct {
		ID   string   `json:"id"`
		Text string   `json:"text"`
		Tags []string `json:"tags,omitempty"`
	}

	items := make([]item, len(req.Entries))
	for i, entry := range req.Entries {
		items[i] = item{ID: entry.ID, Text: entry.Text, Tags: entry.Tags}
	}

	data, _ := json.Marshal(map[string][]item{"items": items})
	return string(data)
}

func parseResponse(content string) (map[string]string, error) {
	// Models occasionally fence the JSON despite instructions.
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if i := strings.LastIndex(content, "```"); i >= 0 {
			content = content[:i]
		}
		content = strings.TrimSpace(content)
	}

	var obj struct {
		Translations map[string]string `json:"translations"`
	}
	if err := json.Unmarshal([]byte(content), &obj); err == nil && len(obj.Translations) > 0 {
		return obj.Translations, nil
	}

	// Fallback: a bare map of id to text.
	var bare map[string]string
	if err := json.Unmarshal([]byte(content), &bare); err == nil && len(bare) > 0 {
		return bare, nil
	}

	return nil, &rustle.APIError{
		Message: "invalid response format from OpenAI",
		Code:    "openai_bad_response",
	}
}

func isRetryableError(err error) bool {
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"rate limit",
		"timeout",
		"connection refused",
		"temporary",
		"503",
		"502",
		"429",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// Verify OpenAIProvider implements BatchTranslator
var _ BatchTranslator = (*OpenAIProvider)(nil)
