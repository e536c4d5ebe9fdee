// Package batch runs a Job over a list of items, one at a time.
// It owns the per-item lifecycle (skip check, pacing, error capture) so every
// command gets the same resilience: one bad item never stops the run.
package batch

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/model"
	"github.com/fleveque/heliassets/internal/storage"
)

// Job does the work for a single item: fetch or generate the bytes and write dest.
type Job interface {
	Name() string
	// OutputPath is where the item's file lives. The driver uses it for the skip check.
	OutputPath(item model.Item) string
	// Run produces the file at dest and returns the number of bytes written.
	Run(ctx context.Context, item model.Item, dest string) (int64, error)
}

// Options tune a Driver. The zero value never skips, never waits, and prints nothing.
type Options struct {
	// MinBytes: an existing output strictly larger than this is skipped.
	MinBytes int64
	// Force disables the skip check.
	Force bool
	Pacer Pacer
	// Progress receives one human-readable line per item. Nil discards.
	Progress io.Writer
}

// Driver runs a Job over items sequentially.
type Driver struct {
	job    Job
	opts   Options
	logger *zap.Logger
}

// NewDriver creates a Driver for job.
func NewDriver(job Job, opts Options, logger *zap.Logger) *Driver {
	if opts.Pacer == nil {
		opts.Pacer = NopPacer{}
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	return &Driver{job: job, opts: opts, logger: logger}
}

// Run processes every item and returns exactly one Outcome per item.
// Errors never escape: each one is logged with the item ID and recorded as a failure.
// A cancelled context makes the remaining items fail fast instead of disappearing.
func (d *Driver) Run(ctx context.Context, items []model.Item) *Result {
	start := time.Now()
	result := &Result{Job: d.job.Name(), Outcomes: make([]model.Outcome, 0, len(items))}
	width := len(strconv.Itoa(len(items)))

	d.logger.Info("batch started",
		zap.String("job", d.job.Name()),
		zap.Int("items", len(items)),
		zap.Int64("min_bytes", d.opts.MinBytes),
		zap.Bool("force", d.opts.Force),
	)

	for i, item := range items {
		prefix := fmt.Sprintf("[%0*d/%d] %s", width, i+1, len(items), item.ID)

		var outcome model.Outcome
		if i > 0 {
			if err := d.opts.Pacer.Wait(ctx); err != nil {
				outcome = model.Outcome{ItemID: item.ID, Status: model.StatusFailure, Err: fmt.Errorf("waiting for pacer: %w", err)}
			}
		}
		if outcome.Status == "" {
			outcome = d.runItem(ctx, item)
		}

		d.report(prefix, item, outcome)
		result.Outcomes = append(result.Outcomes, outcome)
	}

	result.Duration = time.Since(start)
	d.logger.Info("batch finished",
		zap.String("job", d.job.Name()),
		zap.Int("total", result.Total()),
		zap.Int("succeeded", result.Count(model.StatusSuccess)),
		zap.Int("skipped", result.Count(model.StatusSkipped)),
		zap.Int("failed", result.Count(model.StatusFailure)),
		zap.Duration("duration", result.Duration),
	)
	return result
}

// runItem is the per-item error boundary, panics included.
func (d *Driver) runItem(ctx context.Context, item model.Item) (outcome model.Outcome) {
	dest := d.job.OutputPath(item)
	outcome = model.Outcome{ItemID: item.ID, Path: dest}

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = model.StatusFailure
			outcome.Bytes = 0
			outcome.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	if !d.opts.Force && storage.ExistsAbove(dest, d.opts.MinBytes) {
		outcome.Status = model.StatusSkipped
		outcome.Bytes = storage.Size(dest)
		return outcome
	}

	if err := ctx.Err(); err != nil {
		outcome.Status = model.StatusFailure
		outcome.Err = err
		return outcome
	}

	n, err := d.job.Run(ctx, item, dest)
	if err != nil {
		outcome.Status = model.StatusFailure
		outcome.Err = err
		return outcome
	}
	outcome.Status = model.StatusSuccess
	outcome.Bytes = n
	return outcome
}

func (d *Driver) report(prefix string, item model.Item, o model.Outcome) {
	switch o.Status {
	case model.StatusSkipped:
		fmt.Fprintf(d.opts.Progress, "%s skipped, %s already exists (%d bytes)\n", prefix, o.Path, o.Bytes)
		d.logger.Debug("item skipped", zap.String("item", item.ID), zap.String("path", o.Path))
	case model.StatusSuccess:
		fmt.Fprintf(d.opts.Progress, "%s saved %s (%d bytes)\n", prefix, o.Path, o.Bytes)
		d.logger.Debug("item done", zap.String("item", item.ID), zap.Int64("bytes", o.Bytes))
	default:
		fmt.Fprintf(d.opts.Progress, "%s failed: %v\n", prefix, o.Err)
		d.logger.Warn("item failed",
			zap.String("item", item.ID),
			zap.String("name", item.DisplayName()),
			zap.Error(o.Err),
		)
	}
}
