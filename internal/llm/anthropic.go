package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/fleveque/heliassets/internal/model"
)

// AnthropicClient implements the Client interface using Claude.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a new Claude-powered query suggester.
// Extra options (base URL, HTTP client) are mostly for tests.
func NewAnthropicClient(apiKey string, model string, opts ...option.RequestOption) *AnthropicClient {
	client := anthropic.NewClient(
		append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...,
	)
	return &AnthropicClient{
		client: &client,
		model:  model,
	}
}

func (a *AnthropicClient) ProviderName() string { return "anthropic" }
func (a *AnthropicClient) ModelName() string     { return a.model }

func (a *AnthropicClient) SuggestQuery(ctx context.Context, item model.Item, previous string) (string, error) {
	// A custom tool for structured output: Claude "submits" its answer through it.
	submitTool := anthropic.ToolParam{
		Name:        submitQueryTool,
		Description: param.NewOpt("Submit the alternative Wikimedia Commons search query."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The search query, plain words only.",
				},
			},
		},
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(item, previous))),
		},
		Tools: []anthropic.ToolUnionParam{{OfTool: &submitTool}},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	// Prefer the tool call; fall back to plain text if Claude answered directly.
	var text string
	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.ToolUseBlock:
			if b.Name != submitQueryTool {
				continue
			}
			inputBytes, err := json.Marshal(b.Input)
			if err != nil {
				return "", fmt.Errorf("marshaling tool input: %w", err)
			}
			var result submitQueryResult
			if err := json.Unmarshal(inputBytes, &result); err != nil {
				return "", fmt.Errorf("parsing tool input: %w", err)
			}
			if q := cleanQuery(result.Query); q != "" {
				return q, nil
			}
		case anthropic.TextBlock:
			if text == "" {
				text = b.Text
			}
		}
	}

	if q := cleanQuery(text); q != "" {
		return q, nil
	}
	return "", fmt.Errorf("Claude did not suggest a query for %s", item.ID)
}
