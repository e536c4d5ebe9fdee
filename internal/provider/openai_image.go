package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fleveque/heliassets/internal/model"
)

// OpenAIImageConfig holds the Images API settings.
type OpenAIImageConfig struct {
	APIKey  string
	Model   string // e.g. dall-e-3
	Size    string // e.g. 1792x1024, the closest DALL·E 3 size to 16:9
	BaseURL string // optional override, used by tests
}

// OpenAIImageGenerator generates images with OpenAI's Images API.
// It asks for b64_json so the image comes back inline, like Gemini's.
type OpenAIImageGenerator struct {
	client *openai.Client
	cfg    OpenAIImageConfig
}

// NewOpenAIImageGenerator creates the generator. httpClient may be nil.
func NewOpenAIImageGenerator(cfg OpenAIImageConfig, httpClient *http.Client) (*OpenAIImageGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", model.ErrMissingCredential)
	}
	if cfg.Model == "" {
		cfg.Model = openai.CreateImageModelDallE3
	}
	if cfg.Size == "" {
		cfg.Size = openai.CreateImageSize1792x1024
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	return &OpenAIImageGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

func (o *OpenAIImageGenerator) Name() string      { return "openai" }
func (o *OpenAIImageGenerator) ModelName() string { return o.cfg.Model }

func (o *OpenAIImageGenerator) Generate(ctx context.Context, item model.Item) ([]byte, error) {
	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         BuildPrompt(item),
		Model:          o.cfg.Model,
		N:              1,
		Size:           o.cfg.Size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai image API call: %v", model.ErrNetwork, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: openai returned no image", model.ErrGeneration)
	}

	data, err := decodeBase64(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding openai payload: %v", model.ErrGeneration, err)
	}
	return data, nil
}
