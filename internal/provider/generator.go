package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/model"
	"github.com/fleveque/heliassets/internal/storage"
)

// GeneratorChain tries image generators in configured order. First success wins,
// failures fall through to the next provider.
//
// Every attempt is recorded in the call ledger for cost tracking.
type GeneratorChain struct {
	generators []Generator // Ordered list: first is primary, rest are fallbacks
	callRepo   storage.CallRepository
	runID      string
	logger     *zap.Logger
}

// NewGeneratorChain creates a chain over an ordered list of generators.
// The order is configurable via config.yaml: generate.provider_order: ["gemini", "openai"]
// This means swapping provider priority is a config change, not a code change.
func NewGeneratorChain(
	generators []Generator,
	callRepo storage.CallRepository,
	runID string,
	logger *zap.Logger,
) *GeneratorChain {
	return &GeneratorChain{
		generators: generators,
		callRepo:   callRepo,
		runID:      runID,
		logger:     logger,
	}
}

func (c *GeneratorChain) Name() string {
	names := make([]string, len(c.generators))
	for i, g := range c.generators {
		names[i] = g.Name()
	}
	return strings.Join(names, ">")
}

func (c *GeneratorChain) ModelName() string {
	if len(c.generators) == 0 {
		return ""
	}
	return c.generators[0].ModelName()
}

// Generate asks each generator in turn. The returned error wraps the last failure.
func (c *GeneratorChain) Generate(ctx context.Context, item model.Item) ([]byte, error) {
	if len(c.generators) == 0 {
		return nil, fmt.Errorf("%w: no image generators configured", model.ErrGeneration)
	}

	var lastErr error
	for i, gen := range c.generators {
		start := time.Now()
		data, err := gen.Generate(ctx, item)
		c.recordCall(ctx, gen, item.ID, len(data), err, time.Since(start).Milliseconds())
		if err == nil {
			return data, nil
		}
		lastErr = err

		// Cancellation isn't a provider failure; don't burn the fallbacks on it.
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			break
		}

		if i < len(c.generators)-1 {
			c.logger.Warn("generator failed, trying next",
				zap.String("item", item.ID),
				zap.String("provider", gen.Name()),
				zap.Error(err),
			)
		}
	}

	return nil, fmt.Errorf("all generators failed for %s: %w", item.ID, lastErr)
}

func (c *GeneratorChain) recordCall(ctx context.Context, gen Generator, itemID string, size int, callErr error, durationMs int64) {
	if c.callRepo == nil {
		return
	}
	call := &model.ProviderCall{
		RunID:      c.runID,
		ItemID:     itemID,
		Kind:       model.CallGenerate,
		Provider:   gen.Name(),
		Model:      gen.ModelName(),
		Success:    callErr == nil,
		DurationMs: durationMs,
		Bytes:      int64(size),
	}
	if callErr != nil {
		msg := callErr.Error()
		call.Error = &msg
	}

	// The ledger must not fail the item: record with a fresh context so a
	// cancelled run still logs the attempt that was in flight.
	if err := c.callRepo.Create(context.WithoutCancel(ctx), call); err != nil {
		c.logger.Error("recording provider call", zap.Error(err))
	}
}
