// Package provider defines the interfaces for image acquisition sources.
// Search providers (Wikimedia Commons) find existing photos; generation
// providers (Gemini Imagen, OpenAI) synthesize new ones.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/fleveque/heliassets/internal/model"
)

// Searcher finds candidate images for a free-text query.
// Results come back best match first; an empty slice means nothing usable was found.
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
	Name() string
}

// Generator produces raw image bytes for an item.
type Generator interface {
	Generate(ctx context.Context, item model.Item) ([]byte, error)
	// Name returns a human-readable name for the provider.
	Name() string
	ModelName() string
}

// HTTPClient is the subset of *httpclient.Client the adapters need.
// Keeping it an interface lets tests pass a client pointed at httptest servers.
type HTTPClient interface {
	GetJSON(ctx context.Context, url string, out any) error
	PostJSON(ctx context.Context, url string, header http.Header, in any, timeout time.Duration) ([]byte, error)
}
