package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/batch"
	"github.com/fleveque/heliassets/internal/config"
	"github.com/fleveque/heliassets/internal/model"
	"github.com/fleveque/heliassets/internal/storage"
)

// batchFlags are the flags shared by fetch and generate. They override the
// matching config keys only when set on the command line.
type batchFlags struct {
	items    string
	out      string
	delay    time.Duration
	minBytes int64
	force    bool
	only     []string
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.items, "items", "", "Items YAML file (overrides config)")
	cmd.Flags().StringVar(&f.out, "out", "", "Output directory (overrides config)")
	cmd.Flags().DurationVar(&f.delay, "delay", 0, "Pause between items, e.g. 1s (overrides config)")
	cmd.Flags().Int64Var(&f.minBytes, "min-bytes", 0, "Skip items whose output is larger than this (overrides config)")
	cmd.Flags().BoolVar(&f.force, "force", false, "Re-process items even if their output already exists")
	cmd.Flags().StringSliceVar(&f.only, "only", nil, "Comma-separated item IDs to process (default: all)")
}

// apply returns bc with any flags the user set applied on top.
func (f *batchFlags) apply(cmd *cobra.Command, bc config.BatchConfig) config.BatchConfig {
	flags := cmd.Flags()
	if flags.Changed("items") {
		bc.ItemsFile = f.items
	}
	if flags.Changed("out") {
		bc.OutputDir = f.out
	}
	if flags.Changed("delay") {
		bc.Delay = f.delay
	}
	if flags.Changed("min-bytes") {
		bc.MinBytes = f.minBytes
	}
	return bc
}

// loadItems reads the items file and narrows it to --only.
func (f *batchFlags) loadItems(bc config.BatchConfig) ([]model.Item, error) {
	items, err := model.LoadItems(bc.ItemsFile)
	if err != nil {
		return nil, err
	}
	return model.Select(items, f.only)
}

// runBatch drives job over items with the configured pacing and prints the summary to out,
// followed by how many paid provider calls this run made.
func runBatch(
	ctx context.Context,
	job batch.Job,
	items []model.Item,
	bc config.BatchConfig,
	force bool,
	calls storage.CallRepository,
	runID string,
	out io.Writer,
	logger *zap.Logger,
) (*batch.Result, error) {
	driver := batch.NewDriver(job, batch.Options{
		MinBytes: bc.MinBytes,
		Force:    force,
		Pacer:    batch.NewRatePacer(bc.Delay),
		Progress: out,
	}, logger)

	fmt.Fprintf(out, "%s: %d items -> %s\n", job.Name(), len(items), bc.OutputDir)
	result := driver.Run(ctx, items)

	fmt.Fprintln(out)
	if err := result.WriteSummary(out); err != nil {
		return nil, fmt.Errorf("writing summary: %w", err)
	}

	// The count is informational; a ledger error must not turn a finished run into a failure.
	n, err := calls.CountByRunID(context.WithoutCancel(ctx), runID)
	if err != nil {
		logger.Warn("counting provider calls", zap.String("run_id", runID), zap.Error(err))
	} else if n > 0 {
		fmt.Fprintf(out, "Provider calls this run: %d\n", n)
	}

	return result, nil
}
