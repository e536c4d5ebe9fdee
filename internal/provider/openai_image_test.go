package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleveque/heliassets/internal/model"
)

func TestOpenAIImageGenerate(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"created":1700000000,"data":[{"b64_json":"`+base64.StdEncoding.EncodeToString(pngMagic)+`"}]}`)
	}))
	defer ts.Close()

	gen, err := NewOpenAIImageGenerator(OpenAIImageConfig{APIKey: "sk-test", BaseURL: ts.URL + "/v1"}, ts.Client())
	require.NoError(t, err)

	item := model.Item{ID: "aw139", Name: "Leonardo AW139", Category: model.CategoryCivilian}
	data, err := gen.Generate(context.Background(), item)
	require.NoError(t, err)

	assert.Equal(t, pngMagic, data)
	assert.Equal(t, "/v1/images/generations", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "b64_json", gotBody["response_format"])
	assert.Equal(t, "dall-e-3", gotBody["model"])
	assert.Equal(t, BuildPrompt(item), gotBody["prompt"])
	assert.Equal(t, "dall-e-3", gen.ModelName())
}

func TestOpenAIImageGenerate_EmptyData(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"created":1700000000,"data":[]}`)
	}))
	defer ts.Close()

	gen, err := NewOpenAIImageGenerator(OpenAIImageConfig{APIKey: "sk-test", BaseURL: ts.URL + "/v1"}, ts.Client())
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), model.Item{ID: "aw139"})
	assert.True(t, errors.Is(err, model.ErrGeneration))
}

func TestNewOpenAIImageGenerator_MissingKey(t *testing.T) {
	_, err := NewOpenAIImageGenerator(OpenAIImageConfig{}, nil)
	assert.True(t, errors.Is(err, model.ErrMissingCredential))
}
