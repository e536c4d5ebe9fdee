package provider

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/model"
)

// WikimediaConfig holds the search request parameters.
type WikimediaConfig struct {
	Endpoint    string // e.g. https://commons.wikimedia.org/w/api.php
	QueryPrefix string // prepended to every query, e.g. "File: "
	Limit       int    // gsrlimit
	ThumbWidth  int    // iiurlwidth
}

// WikimediaSearcher searches Wikimedia Commons' File namespace and returns
// photo candidates ranked by width.
type WikimediaSearcher struct {
	client HTTPClient
	cfg    WikimediaConfig
	filter Filter
	logger *zap.Logger
}

// NewWikimediaSearcher creates a searcher. Zero Limit/ThumbWidth fall back to 30/1200.
func NewWikimediaSearcher(client HTTPClient, cfg WikimediaConfig, filter Filter, logger *zap.Logger) *WikimediaSearcher {
	if cfg.Limit <= 0 {
		cfg.Limit = 30
	}
	if cfg.ThumbWidth <= 0 {
		cfg.ThumbWidth = 1200
	}
	return &WikimediaSearcher{client: client, cfg: cfg, filter: filter, logger: logger}
}

func (w *WikimediaSearcher) Name() string { return "wikimedia" }

// wikimediaResponse is the subset of the MediaWiki query API response we read.
// "pages" is an object keyed by page ID, so it decodes into a map.
// When nothing matches, the API omits "query" entirely and Pages stays nil.
type wikimediaResponse struct {
	Query struct {
		Pages map[string]wikimediaPage `json:"pages"`
	} `json:"query"`
}

type wikimediaPage struct {
	Title     string               `json:"title"`
	ImageInfo []wikimediaImageInfo `json:"imageinfo"`
}

type wikimediaImageInfo struct {
	URL        string `json:"url"`
	ThumbURL   string `json:"thumburl"`
	Width      int    `json:"width"`
	ThumbWidth int    `json:"thumbwidth"`
	Mime       string `json:"mime"`
}

// Search queries the API and returns the filtered, ranked candidates.
// No surviving candidate is not an error: the result is simply empty.
func (w *WikimediaSearcher) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	var resp wikimediaResponse
	if err := w.client.GetJSON(ctx, w.searchURL(query), &resp); err != nil {
		return nil, fmt.Errorf("searching wikimedia for %q: %w", query, err)
	}

	candidates := parseCandidates(resp)
	results := w.filter.Apply(candidates)

	w.logger.Debug("wikimedia search",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)),
		zap.Int("kept", len(results)),
	)
	return results, nil
}

func (w *WikimediaSearcher) searchURL(query string) string {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("generator", "search")
	params.Set("gsrsearch", w.cfg.QueryPrefix+query)
	params.Set("gsrlimit", strconv.Itoa(w.cfg.Limit))
	params.Set("gsrnamespace", "6") // File: namespace
	params.Set("prop", "imageinfo")
	params.Set("iiprop", "url|size|mime")
	params.Set("iiurlwidth", strconv.Itoa(w.cfg.ThumbWidth))
	params.Set("format", "json")
	return w.cfg.Endpoint + "?" + params.Encode()
}

// parseCandidates turns each page's first imageinfo entry into a SearchResult.
// The scaled thumbnail is preferred over the original when the API provides one.
func parseCandidates(resp wikimediaResponse) []model.SearchResult {
	results := make([]model.SearchResult, 0, len(resp.Query.Pages))
	for _, page := range resp.Query.Pages {
		if len(page.ImageInfo) == 0 {
			continue
		}
		info := page.ImageInfo[0]

		u := info.ThumbURL
		if u == "" {
			u = info.URL
		}
		if u == "" {
			continue
		}
		width := info.ThumbWidth
		if width == 0 {
			width = info.Width
		}

		results = append(results, model.SearchResult{
			URL:   u,
			Width: width,
			Title: page.Title,
			Mime:  info.Mime,
		})
	}
	return results
}

// Filter decides which search candidates are usable photos.
type Filter struct {
	// AllowMimes lists accepted MIME types. Empty means any image/* except SVG.
	AllowMimes []string
	// Denylist holds title keywords (matched case-insensitively) that disqualify a candidate.
	Denylist []string
}

// Keep reports whether a single candidate passes the filter.
func (f Filter) Keep(r model.SearchResult) bool {
	if r.URL == "" || !f.mimeAllowed(r.Mime) {
		return false
	}
	title := strings.ToLower(r.Title)
	for _, word := range f.Denylist {
		if word != "" && strings.Contains(title, strings.ToLower(word)) {
			return false
		}
	}
	return true
}

func (f Filter) mimeAllowed(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if len(f.AllowMimes) == 0 {
		return strings.HasPrefix(mime, "image/") && mime != "image/svg+xml"
	}
	for _, allowed := range f.AllowMimes {
		if strings.EqualFold(mime, allowed) {
			return true
		}
	}
	return false
}

// Apply returns the candidates that pass the filter, widest first (ties by title).
// The input slice is not modified, and Apply(Apply(x)) equals Apply(x).
func (f Filter) Apply(results []model.SearchResult) []model.SearchResult {
	out := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		if f.Keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Width != out[j].Width {
			return out[i].Width > out[j].Width
		}
		return out[i].Title < out[j].Title
	})
	return out
}
