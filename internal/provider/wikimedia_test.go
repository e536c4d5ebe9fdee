package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fleveque/heliassets/internal/httpclient"
	"github.com/fleveque/heliassets/internal/model"
)

const wikimediaBody = `{
  "batchcomplete": "",
  "query": {
    "pages": {
      "101": {"title": "File:H160 small.jpg", "imageinfo": [{"url": "https://upload/h160-small.jpg", "thumburl": "https://upload/thumb/h160-small.jpg", "width": 3000, "thumbwidth": 800, "mime": "image/jpeg"}]},
      "102": {"title": "File:H160 large.jpg", "imageinfo": [{"url": "https://upload/h160-large.jpg", "thumburl": "https://upload/thumb/h160-large.jpg", "width": 4000, "thumbwidth": 1200, "mime": "image/jpeg"}]},
      "103": {"title": "File:H160 wreck at Marignane.jpg", "imageinfo": [{"url": "https://upload/wreck.jpg", "width": 5000, "mime": "image/jpeg"}]},
      "104": {"title": "File:H160 3-view.svg", "imageinfo": [{"url": "https://upload/h160.svg", "width": 512, "mime": "image/svg+xml"}]},
      "105": {"title": "File:H160 no info.jpg"},
      "106": {"title": "File:H160 original only.jpg", "imageinfo": [{"url": "https://upload/orig.jpg", "width": 640, "mime": "image/jpeg"}]}
    }
  }
}`

func newWikimediaServer(t *testing.T, body string, gotQuery *string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotQuery != nil {
			*gotQuery = r.URL.RawQuery
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newSearcher(t *testing.T, endpoint string, filter Filter) *WikimediaSearcher {
	t.Helper()
	logger := zaptest.NewLogger(t)
	client := httpclient.New(httpclient.Config{UserAgent: "test"}, logger)
	return NewWikimediaSearcher(client, WikimediaConfig{Endpoint: endpoint, QueryPrefix: "File: ", Limit: 5, ThumbWidth: 1024}, filter, logger)
}

func defaultFilter() Filter {
	return Filter{
		AllowMimes: []string{"image/jpeg"},
		Denylist:   []string{"wreck", "3-view", "drawing"},
	}
}

func TestWikimediaSearch_RanksAndFilters(t *testing.T) {
	var rawQuery string
	ts := newWikimediaServer(t, wikimediaBody, &rawQuery)

	results, err := newSearcher(t, ts.URL, defaultFilter()).Search(context.Background(), "Airbus H160 helicopter")
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Widest first; the thumbnail URL and width are preferred.
	assert.Equal(t, "https://upload/thumb/h160-large.jpg", results[0].URL)
	assert.Equal(t, 1200, results[0].Width)
	assert.Equal(t, 800, results[1].Width)
	// No thumbnail: fall back to the original URL and width.
	assert.Equal(t, "https://upload/orig.jpg", results[2].URL)
	assert.Equal(t, 640, results[2].Width)

	for _, r := range results {
		assert.NotContains(t, r.Title, "wreck")
	}

	assert.Contains(t, rawQuery, "gsrsearch=File%3A+Airbus+H160+helicopter")
	assert.Contains(t, rawQuery, "gsrlimit=5")
	assert.Contains(t, rawQuery, "gsrnamespace=6")
	assert.Contains(t, rawQuery, "iiurlwidth=1024")
	assert.Contains(t, rawQuery, "iiprop=url%7Csize%7Cmime")
}

func TestWikimediaSearch_NoResultsIsEmptyNotError(t *testing.T) {
	ts := newWikimediaServer(t, `{"batchcomplete":""}`, nil)

	results, err := newSearcher(t, ts.URL, defaultFilter()).Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestWikimediaSearch_Errors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		_, err := newSearcher(t, ts.URL, defaultFilter()).Search(context.Background(), "q")
		assert.True(t, errors.Is(err, model.ErrNetwork))
	})

	t.Run("malformed body", func(t *testing.T) {
		ts := newWikimediaServer(t, `<html>maintenance</html>`, nil)
		_, err := newSearcher(t, ts.URL, defaultFilter()).Search(context.Background(), "q")
		assert.True(t, errors.Is(err, model.ErrParse))
	})
}

func TestFilter_WidestFirst(t *testing.T) {
	in := []model.SearchResult{
		{URL: "a", Width: 800, Title: "File:A.jpg", Mime: "image/jpeg"},
		{URL: "b", Width: 1200, Title: "File:B.jpg", Mime: "image/jpeg"},
	}
	out := defaultFilter().Apply(in)
	require.Len(t, out, 2)
	assert.Equal(t, 1200, out[0].Width)
	// Input is left untouched.
	assert.Equal(t, 800, in[0].Width)
}

func TestFilter_DenylistBeatsWidth(t *testing.T) {
	in := []model.SearchResult{
		{URL: "a", Width: 5000, Title: "File:Puma WRECK.jpg", Mime: "image/jpeg"},
		{URL: "b", Width: 300, Title: "File:Puma.jpg", Mime: "image/jpeg"},
	}
	out := defaultFilter().Apply(in)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].URL)
}

func TestFilter_TiesByTitle(t *testing.T) {
	in := []model.SearchResult{
		{URL: "z", Width: 1200, Title: "File:Zeta.jpg", Mime: "image/jpeg"},
		{URL: "a", Width: 1200, Title: "File:Alpha.jpg", Mime: "image/jpeg"},
	}
	out := defaultFilter().Apply(in)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].URL)
}

func TestFilter_Mime(t *testing.T) {
	in := []model.SearchResult{
		{URL: "jpg", Title: "1", Mime: "image/jpeg"},
		{URL: "png", Title: "2", Mime: "image/png"},
		{URL: "svg", Title: "3", Mime: "image/svg+xml"},
		{URL: "pdf", Title: "4", Mime: "application/pdf"},
	}

	strict := Filter{AllowMimes: []string{"image/jpeg"}}.Apply(in)
	require.Len(t, strict, 1)
	assert.Equal(t, "jpg", strict[0].URL)

	// Empty allow list: any raster image.
	loose := Filter{}.Apply(in)
	urls := make([]string, 0, len(loose))
	for _, r := range loose {
		urls = append(urls, r.URL)
	}
	assert.ElementsMatch(t, []string{"jpg", "png"}, urls)
}

func TestFilter_Idempotent(t *testing.T) {
	in := []model.SearchResult{
		{URL: "1", Width: 640, Title: "File:H145 at Donauwörth.jpg", Mime: "image/jpeg"},
		{URL: "2", Width: 1200, Title: "File:H145 cutaway.jpg", Mime: "image/jpeg"},
		{URL: "3", Width: 1200, Title: "File:H145 D-HADA.jpg", Mime: "image/jpeg"},
		{URL: "4", Width: 1024, Title: "File:H145.png", Mime: "image/png"},
		{URL: "", Width: 2000, Title: "File:Broken.jpg", Mime: "image/jpeg"},
		{URL: "6", Width: 1200, Title: "File:H145 abandoned.jpg", Mime: "image/jpeg"},
		{URL: "7", Width: 900, Title: "File:H145 LINE DRAWING.jpg", Mime: "image/jpeg"},
		{URL: "8", Width: 1200, Title: "File:A H145.jpg", Mime: "image/jpeg"},
	}

	for _, f := range []Filter{
		{AllowMimes: []string{"image/jpeg"}, Denylist: []string{"cutaway", "abandoned", "line drawing"}},
		{},
	} {
		once := f.Apply(in)
		twice := f.Apply(once)
		assert.Equal(t, once, twice)
	}
}
