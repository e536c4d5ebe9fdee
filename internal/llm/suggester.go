package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/heliassets/internal/model"
	"github.com/fleveque/heliassets/internal/storage"
)

// Suggester asks LLM clients (in configured order) for a better search query.
// First success wins, failures fall through.
//
// Rate limited to keep API costs bounded, and every call is recorded in the
// call ledger.
type Suggester struct {
	clients  []Client // Ordered list: first is primary, rest are fallbacks
	limiter  *rate.Limiter
	callRepo storage.CallRepository
	runID    string
	logger   *zap.Logger
}

// NewSuggester creates a suggester with an ordered list of LLM clients.
// The order is configurable via config.yaml: llm.provider_order: ["anthropic", "openai"]
func NewSuggester(
	clients []Client,
	ratePerMinute int,
	callRepo storage.CallRepository,
	runID string,
	logger *zap.Logger,
) *Suggester {
	if ratePerMinute <= 0 {
		ratePerMinute = 10
	}
	// rate.Every returns a rate.Limit from a time interval between events.
	rps := rate.Every(time.Minute / time.Duration(ratePerMinute))

	return &Suggester{
		clients:  clients,
		limiter:  rate.NewLimiter(rps, 1), // burst of 1: strict rate limiting
		callRepo: callRepo,
		runID:    runID,
		logger:   logger,
	}
}

// Enabled reports whether any client is configured.
func (s *Suggester) Enabled() bool { return s != nil && len(s.clients) > 0 }

// Suggest returns an alternative query for item. A suggestion identical to
// previous (ignoring case) counts as a failure.
func (s *Suggester) Suggest(ctx context.Context, item model.Item, previous string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("no LLM providers configured")
	}

	var lastErr error
	for i, client := range s.clients {
		// Blocks until a token is available or context is cancelled.
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}

		start := time.Now()
		query, err := client.SuggestQuery(ctx, item, previous)
		if err == nil && strings.EqualFold(query, strings.TrimSpace(previous)) {
			err = fmt.Errorf("suggested the same query %q", query)
		}
		s.recordCall(ctx, client, item.ID, err, time.Since(start).Milliseconds())

		if err == nil {
			return query, nil
		}
		lastErr = err

		if i < len(s.clients)-1 {
			s.logger.Warn("LLM provider failed, trying next",
				zap.String("item", item.ID),
				zap.String("provider", client.ProviderName()),
				zap.Error(err),
			)
		}
	}

	return "", fmt.Errorf("all LLM providers failed for %s: %w", item.ID, lastErr)
}

func (s *Suggester) recordCall(ctx context.Context, client Client, itemID string, callErr error, durationMs int64) {
	if s.callRepo == nil {
		return
	}
	call := &model.ProviderCall{
		RunID:      s.runID,
		ItemID:     itemID,
		Kind:       model.CallSuggest,
		Provider:   client.ProviderName(),
		Model:      client.ModelName(),
		Success:    callErr == nil,
		DurationMs: durationMs,
	}
	if callErr != nil {
		msg := callErr.Error()
		call.Error = &msg
	}
	if err := s.callRepo.Create(context.WithoutCancel(ctx), call); err != nil {
		s.logger.Error("recording LLM call", zap.Error(err))
	}
}
