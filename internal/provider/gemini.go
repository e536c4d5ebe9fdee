package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/model"
)

// GeminiConfig holds the Imagen request settings.
type GeminiConfig struct {
	APIKey      string
	Endpoint    string // e.g. https://generativelanguage.googleapis.com/v1beta
	Model       string // e.g. imagen-4.0-generate-001
	AspectRatio string
	MimeType    string
	Timeout     time.Duration
}

// GeminiGenerator calls the Gemini API's Imagen generateImages method.
type GeminiGenerator struct {
	client     HTTPClient
	cfg        GeminiConfig
	extractors []Extractor
	logger     *zap.Logger
}

// NewGeminiGenerator returns an error wrapping model.ErrMissingCredential when no key is set,
// so the CLI can stop before touching any item.
func NewGeminiGenerator(client HTTPClient, cfg GeminiConfig, logger *zap.Logger) (*GeminiGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", model.ErrMissingCredential)
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = "16:9"
	}
	if cfg.MimeType == "" {
		cfg.MimeType = "image/png"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &GeminiGenerator{
		client:     client,
		cfg:        cfg,
		extractors: DefaultExtractors,
		logger:     logger,
	}, nil
}

func (g *GeminiGenerator) Name() string      { return "gemini" }
func (g *GeminiGenerator) ModelName() string { return g.cfg.Model }

type geminiRequest struct {
	Prompt string              `json:"prompt"`
	Config geminiRequestConfig `json:"config"`
}

type geminiRequestConfig struct {
	NumberOfImages int    `json:"numberOfImages"`
	AspectRatio    string `json:"aspectRatio"`
	OutputMimeType string `json:"outputMimeType"`
}

// Generate builds the prompt for item, calls the API, and returns the decoded image.
func (g *GeminiGenerator) Generate(ctx context.Context, item model.Item) ([]byte, error) {
	url := fmt.Sprintf("%s/models/%s:generateImages", strings.TrimRight(g.cfg.Endpoint, "/"), g.cfg.Model)

	// The key travels in a header so it never shows up in a logged URL.
	header := http.Header{}
	header.Set("x-goog-api-key", g.cfg.APIKey)

	body, err := g.client.PostJSON(ctx, url, header, geminiRequest{
		Prompt: BuildPrompt(item),
		Config: geminiRequestConfig{
			NumberOfImages: 1,
			AspectRatio:    g.cfg.AspectRatio,
			OutputMimeType: g.cfg.MimeType,
		},
	}, g.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("calling gemini: %w", err)
	}

	data, err := ExtractImage(body, g.extractors)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("gemini image decoded", zap.String("item", item.ID), zap.Int("bytes", len(data)))
	return data, nil
}
