// Package llm provides a provider-agnostic interface for using LLMs to rewrite
// an image search query when Wikimedia Commons returns nothing usable.
package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fleveque/heliassets/internal/model"
)

// Client is the interface for LLM providers that can suggest search queries.
// Both Anthropic (Claude) and OpenAI implement this interface, allowing
// the suggester to fall back from one to the other.
//
// Go interface design tip: keep interfaces small. The bigger the interface,
// the harder it is to implement and mock.
type Client interface {
	SuggestQuery(ctx context.Context, item model.Item, previous string) (string, error)
	ProviderName() string
	ModelName() string
}

// submitQueryTool is the name of the function both providers are asked to call.
// A tool call gives us a clean string instead of free-form prose.
const submitQueryTool = "submit_search_query"

type submitQueryResult struct {
	Query string `json:"query"`
}

// maxQueryLen bounds what we send back to the search API.
const maxQueryLen = 120

// buildPrompt creates the user prompt for the LLM.
func buildPrompt(item model.Item, previous string) string {
	hint := ""
	if item.Name != "" && item.Name != item.Query {
		hint = fmt.Sprintf(" (also known as %s)", item.Name)
	}
	return fmt.Sprintf(`I am searching Wikimedia Commons (File namespace, full-text search) for a photograph of a helicopter%s.

The query %q returned no usable photos. Usable photos are JPEG photographs of the aircraft itself, not wrecks, drawings, diagrams, or cutaways.

Suggest ONE alternative search query that is more likely to match file titles and descriptions on Commons. Prefer manufacturer designations and common names used by spotters (e.g. older Eurocopter or Aerospatiale names for Airbus models). Keep it under 8 words, no quotes or operators.

Call the %s tool with the query.`, hint, previous, submitQueryTool)
}

// cleanQuery normalises a model's answer into a single search line.
func cleanQuery(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'` ")
	if len(s) > maxQueryLen {
		// Back up to a rune boundary so the cut never splits a UTF-8 sequence.
		cut := maxQueryLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = strings.TrimSpace(s[:cut])
	}
	return s
}
