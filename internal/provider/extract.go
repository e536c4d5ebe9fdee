package provider

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fleveque/heliassets/internal/model"
)

// Extractor pulls a base64 image payload out of one response shape.
// Supporting a new response shape means adding an Extractor, nothing else.
type Extractor interface {
	Name() string
	// Extract returns the payload and true if this shape is present with a non-empty payload.
	Extract(body []byte) (string, bool)
}

// PathExtractor reads a gjson path. When the path yields an array
// (e.g. a "#" query over parts), the first non-empty string wins.
type PathExtractor struct {
	Label string
	Path  string
}

func (p PathExtractor) Name() string { return p.Label }

func (p PathExtractor) Extract(body []byte) (string, bool) {
	res := gjson.GetBytes(body, p.Path)
	if !res.Exists() {
		return "", false
	}
	if res.IsArray() {
		for _, v := range res.Array() {
			if s := v.String(); s != "" {
				return s, true
			}
		}
		return "", false
	}
	s := res.String()
	return s, s != ""
}

// DefaultExtractors lists the response shapes we understand, in priority order.
var DefaultExtractors = []Extractor{
	// {"generatedImages":[{"image":{"imageBytes":"..."}}]}
	PathExtractor{Label: "generatedImages", Path: "generatedImages.0.image.imageBytes"},
	// {"candidates":[{"content":{"parts":[{"text":"..."},{"inlineData":{"mimeType":"image/png","data":"..."}}]}}]}
	PathExtractor{Label: "inlineData", Path: "candidates.0.content.parts.#.inlineData.data"},
	// {"predictions":[{"bytesBase64Encoded":"...","mimeType":"image/png"}]}
	PathExtractor{Label: "predictions", Path: "predictions.0.bytesBase64Encoded"},
}

// ExtractImage runs the extractors in order and decodes the first payload found.
// A body that isn't JSON wraps model.ErrParse; a JSON body with no usable image
// wraps model.ErrGeneration.
func ExtractImage(body []byte, extractors []Extractor) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: generation response is not JSON", model.ErrParse)
	}

	for _, ex := range extractors {
		payload, ok := ex.Extract(body)
		if !ok {
			continue
		}
		data, err := decodeBase64(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding %s payload: %v", model.ErrGeneration, ex.Name(), err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: empty %s payload", model.ErrGeneration, ex.Name())
		}
		return data, nil
	}

	// The API sometimes answers 200 with an explanation instead of an image.
	if msg := gjson.GetBytes(body, "error.message").String(); msg != "" {
		return nil, fmt.Errorf("%w: no image in response: %s", model.ErrGeneration, msg)
	}
	return nil, fmt.Errorf("%w: no image in response", model.ErrGeneration)
}

// decodeBase64 accepts padded or unpadded, standard or URL-safe alphabets.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)

	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
