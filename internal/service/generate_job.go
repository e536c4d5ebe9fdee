package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/model"
	"github.com/fleveque/heliassets/internal/provider"
	"github.com/fleveque/heliassets/internal/storage"
)

// GenerateJob renders each item with an image generator and saves it as {id}.png.
type GenerateJob struct {
	generator provider.Generator
	converter PNGConverter
	fs        *storage.FileSystem
	logger    *zap.Logger
}

// NewGenerateJob creates the job.
func NewGenerateJob(generator provider.Generator, converter PNGConverter, fs *storage.FileSystem, logger *zap.Logger) *GenerateJob {
	return &GenerateJob{generator: generator, converter: converter, fs: fs, logger: logger}
}

func (j *GenerateJob) Name() string { return "generate" }

func (j *GenerateJob) OutputPath(item model.Item) string {
	return j.fs.Path(item.ID, ".png")
}

func (j *GenerateJob) Run(ctx context.Context, item model.Item, dest string) (int64, error) {
	j.logger.Debug("generating", zap.String("item", item.ID), zap.String("provider", j.generator.Name()))

	data, err := j.generator.Generate(ctx, item)
	if err != nil {
		return 0, err
	}
	if !IsImage(data) {
		return 0, fmt.Errorf("%w: decoded payload for %s is not an image", model.ErrGeneration, item.ID)
	}

	// Providers may hand back JPEG or WebP even when PNG was asked for.
	png, err := j.converter.ToPNG(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("normalising %s: %w", item.ID, err)
	}

	if _, err := j.fs.Write(item.ID, ".png", png); err != nil {
		return 0, err
	}
	return int64(len(png)), nil
}
