package llm

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fleveque/heliassets/internal/model"
)

// OpenAIClient implements the Client interface using OpenAI's chat API as a fallback.
// Uses function calling to get a structured query back.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAI-powered query suggester.
// An empty baseURL keeps the public API endpoint.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *OpenAIClient) ProviderName() string { return "openai" }
func (o *OpenAIClient) ModelName() string     { return o.model }

func (o *OpenAIClient) SuggestQuery(ctx context.Context, item model.Item, previous string) (string, error) {
	// OpenAI's Parameters field accepts `any`, so we pass a raw JSON schema map.
	tools := []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        submitQueryTool,
				Description: "Submit the alternative Wikimedia Commons search query.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"query": map[string]interface{}{
							"type":        "string",
							"description": "The search query, plain words only.",
						},
					},
					"required": []string{"query"},
				},
			},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You help find aircraft photographs on Wikimedia Commons. Answer by calling the provided function.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(item, previous),
			},
		},
		Tools: tools,
	})
	if err != nil {
		return "", fmt.Errorf("openai API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	msg := resp.Choices[0].Message
	for _, toolCall := range msg.ToolCalls {
		if toolCall.Function.Name != submitQueryTool {
			continue
		}
		var result submitQueryResult
		if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &result); err != nil {
			return "", fmt.Errorf("parsing tool arguments: %w", err)
		}
		if q := cleanQuery(result.Query); q != "" {
			return q, nil
		}
	}

	if q := cleanQuery(msg.Content); q != "" {
		return q, nil
	}
	return "", fmt.Errorf("OpenAI did not suggest a query for %s", item.ID)
}
