package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"

	appcfg "github.com/decidepage/core/internal/config"
)

// Client answers completion requests against one configured provider.
// Construct one per concern so extraction and rendering can run on
// different models.
type Client struct {
	provider        *appcfg.AIProvider
	maxOutputTokens int
}

// New builds a client for the provider resolved from the assignment. Returns
// an error when no enabled provider matches.
func New(cfg appcfg.AIConfig, assignment *appcfg.AIModelAssignment, maxOutputTokens int) (*Client, error) {
	provider := SelectProvider(cfg, assignment)
	if provider == nil {
		return nil, errors.New("no enabled AI provider configured")
	}
	if maxOutputTokens <= 0 {
		maxOutputTokens = 4096
	}
	return &Client{provider: provider, maxOutputTokens: maxOutputTokens}, nil
}

// Model returns the model identifier this client targets.
func (c *Client) Model() string {
	return strings.TrimSpace(c.provider.DefaultModel)
}

// Complete performs a blocking completion and returns the full text.
func (c *Client) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if isOpenAICompatibleProviderType(c.provider.Type) {
		return c.completeOpenAICompatible(ctx, systemPrompt, prompt)
	}

	model, _, err := buildLanguageModel(c.provider)
	if err != nil {
		return "", err
	}
	resp, err := jetai.GenerateText(
		ctx,
		buildPromptMessages(systemPrompt, prompt),
		jetai.WithModel(model),
		jetai.WithMaxOutputTokens(c.maxOutputTokens),
	)
	if err != nil {
		return "", err
	}
	return extractTextFromResponse(resp)
}

// Stream performs a streaming completion, invoking onToken for each text
// delta. A non-nil error from onToken aborts the stream. Returns the full
// accumulated text.
func (c *Client) Stream(ctx context.Context, systemPrompt, prompt string, onToken func(string) error) (string, error) {
	if isOpenAICompatibleProviderType(c.provider.Type) {
		return c.streamOpenAICompatible(ctx, systemPrompt, prompt, onToken)
	}

	model, streamEnabled, err := buildLanguageModel(c.provider)
	if err != nil {
		return "", err
	}

	if !streamEnabled {
		result, err := c.Complete(ctx, systemPrompt, prompt)
		if err != nil {
			return "", err
		}
		if onToken != nil && result != "" {
			if err := onToken(result); err != nil {
				return "", err
			}
		}
		return result, nil
	}

	streamResp, err := jetai.StreamText(
		ctx,
		buildPromptMessages(systemPrompt, prompt),
		jetai.WithModel(model),
		jetai.WithMaxOutputTokens(c.maxOutputTokens),
	)
	if err != nil {
		return "", err
	}

	var full strings.Builder
	for event := range streamResp.Stream {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		switch evt := event.(type) {
		case *jetapi.TextDeltaEvent:
			if evt.TextDelta == "" {
				continue
			}
			full.WriteString(evt.TextDelta)
			if onToken != nil {
				if err := onToken(evt.TextDelta); err != nil {
					return "", err
				}
			}
		case *jetapi.ErrorEvent:
			if evt.Err == nil {
				return "", errors.New("AI stream returned an unknown error")
			}
			return "", fmt.Errorf("%v", evt.Err)
		}
	}

	result := full.String()
	if strings.TrimSpace(result) == "" {
		return "", errors.New("empty response from AI")
	}
	return result, nil
}

func buildPromptMessages(systemPrompt, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: systemPrompt})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}

func extractTextFromResponse(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", errors.New("empty response from AI")
	}

	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}

	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty response from AI")
	}
	return text, nil
}

func buildLanguageModel(provider *appcfg.AIProvider) (jetapi.LanguageModel, bool, error) {
	if provider == nil {
		return nil, false, errors.New("AI provider is nil")
	}

	apiKey := strings.TrimSpace(provider.APIKey)
	if apiKey == "" {
		return nil, false, errors.New("AI provider api key is empty")
	}

	modelID := strings.TrimSpace(provider.DefaultModel)
	endpoint := strings.TrimSpace(provider.Endpoint)

	if isAnthropicProviderType(provider.Type) {
		if modelID == "" {
			modelID = "claude-haiku-4-5-20251001"
		}

		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}

		client := anthropicclient.NewClient(opts...)
		model := jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client))
		return model, false, nil
	}

	if modelID == "" {
		modelID = "gpt-4o-mini"
	}

	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeOpenAIBaseURL(endpoint); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}

	client := openaiclient.NewClient(opts...)
	model := jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client))
	return model, true, nil
}

// SelectProvider resolves the provider for an assignment, falling back to the
// first enabled provider. The assignment's model overrides the provider default.
func SelectProvider(cfg appcfg.AIConfig, assignment *appcfg.AIModelAssignment) *appcfg.AIProvider {
	var providerID string
	var overrideModel string
	if assignment != nil {
		providerID = strings.TrimSpace(assignment.ProviderID)
		overrideModel = strings.TrimSpace(assignment.Model)
	}

	pick := func(provider appcfg.AIProvider) *appcfg.AIProvider {
		selected := provider
		if overrideModel != "" {
			selected.DefaultModel = overrideModel
		}
		return &selected
	}

	if providerID != "" {
		for _, provider := range cfg.Providers {
			if !provider.Enabled {
				continue
			}
			if strings.TrimSpace(provider.ID) != providerID {
				continue
			}
			return pick(provider)
		}
	}

	for _, provider := range cfg.Providers {
		if !provider.Enabled {
			continue
		}
		return pick(provider)
	}

	return nil
}

func isOpenAICompatibleProviderType(raw string) bool {
	t := normalizeProviderType(raw)
	return t == "openai-compatible" || t == "openaicompatible"
}

func isAnthropicProviderType(raw string) bool {
	return normalizeProviderType(raw) == "anthropic"
}

func normalizeProviderType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	return t
}
