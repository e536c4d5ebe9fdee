package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/model"
	"github.com/fleveque/heliassets/internal/provider"
	"github.com/fleveque/heliassets/internal/storage"
)

// Fetcher downloads a URL. *httpclient.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// QuerySuggester proposes a new search query when the first one finds nothing.
// *llm.Suggester satisfies it; nil disables the retry.
type QuerySuggester interface {
	Enabled() bool
	Suggest(ctx context.Context, item model.Item, previous string) (string, error)
}

// FetchJob searches for a photo of each item and saves the best match as {id}.jpg.
// It follows a "try the cheap path first" pattern: the configured query goes
// to the search API, and only an empty result is handed to the (paid) suggester.
type FetchJob struct {
	searcher  provider.Searcher
	fetcher   Fetcher
	suggester QuerySuggester // nil if no LLM keys configured
	fs        *storage.FileSystem
	logger    *zap.Logger
}

// NewFetchJob creates the job. suggester can be nil.
func NewFetchJob(
	searcher provider.Searcher,
	fetcher Fetcher,
	suggester QuerySuggester,
	fs *storage.FileSystem,
	logger *zap.Logger,
) *FetchJob {
	return &FetchJob{
		searcher:  searcher,
		fetcher:   fetcher,
		suggester: suggester,
		fs:        fs,
		logger:    logger,
	}
}

func (j *FetchJob) Name() string { return "fetch" }

func (j *FetchJob) OutputPath(item model.Item) string {
	return j.fs.Path(item.ID, ".jpg")
}

// Run searches, picks the widest usable result, downloads it, and saves it as {id}.jpg.
func (j *FetchJob) Run(ctx context.Context, item model.Item, dest string) (int64, error) {
	query := item.Query
	if query == "" {
		query = item.DisplayName()
	}

	results, err := j.searcher.Search(ctx, query)
	if err != nil {
		return 0, err
	}

	if len(results) == 0 && j.suggester != nil && j.suggester.Enabled() {
		results, err = j.retryWithSuggestion(ctx, item, query)
		if err != nil {
			return 0, err
		}
	}

	if len(results) == 0 {
		return 0, fmt.Errorf("%w for %q", model.ErrNoResults, query)
	}

	best := results[0]
	j.logger.Info("selected image",
		zap.String("item", item.ID),
		zap.String("title", best.Title),
		zap.Int("width", best.Width),
	)

	data, err := j.fetcher.Get(ctx, best.URL)
	if err != nil {
		return 0, fmt.Errorf("downloading %s: %w", best.URL, err)
	}
	if !IsImage(data) {
		return 0, fmt.Errorf("%w: %s is not an image", model.ErrParse, best.URL)
	}

	if _, err := j.fs.Write(item.ID, ".jpg", data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// retryWithSuggestion asks the LLM for a better query and searches once more.
// A failed suggestion is logged and treated as "still no results".
func (j *FetchJob) retryWithSuggestion(ctx context.Context, item model.Item, query string) ([]model.SearchResult, error) {
	alt, err := j.suggester.Suggest(ctx, item, query)
	if err != nil {
		j.logger.Warn("query suggestion failed", zap.String("item", item.ID), zap.Error(err))
		return nil, nil
	}

	j.logger.Info("retrying search with suggested query",
		zap.String("item", item.ID),
		zap.String("query", alt),
	)
	return j.searcher.Search(ctx, alt)
}
