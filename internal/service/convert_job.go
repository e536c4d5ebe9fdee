package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/model"
	"github.com/fleveque/heliassets/internal/storage"
)

// ConvertJob converts every file with a given extension in a directory to PNG,
// writing {stem}.png next to the source.
type ConvertJob struct {
	fs        *storage.FileSystem
	ext       string
	converter PNGConverter
	sizer     func([]byte) (int, int, error)
	sources   map[string]string // item ID → source file name
	logger    *zap.Logger
}

// NewConvertJob creates the job. processor supplies both conversion and dimensions.
func NewConvertJob(fs *storage.FileSystem, ext string, processor *ImageProcessor, logger *zap.Logger) *ConvertJob {
	// Accept "jpx" as well as ".jpx".
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &ConvertJob{
		fs:        fs,
		ext:       ext,
		converter: processor,
		sizer:     processor.Dimensions,
		sources:   map[string]string{},
		logger:    logger,
	}
}

func (j *ConvertJob) Name() string { return "convert" }

// Items lists the source files as work items, one per file, sorted by name.
func (j *ConvertJob) Items() ([]model.Item, error) {
	names, err := j.fs.List(j.ext)
	if err != nil {
		return nil, err
	}
	items := make([]model.Item, 0, len(names))
	for _, name := range names {
		id := strings.TrimSuffix(name, filepath.Ext(name))
		j.sources[id] = name
		items = append(items, model.Item{ID: id, Name: name})
	}
	return items, nil
}

func (j *ConvertJob) OutputPath(item model.Item) string {
	return j.fs.Path(item.ID, ".png")
}

func (j *ConvertJob) Run(ctx context.Context, item model.Item, dest string) (int64, error) {
	name, ok := j.sources[item.ID]
	if !ok {
		name = item.ID + j.ext
	}

	data, err := os.ReadFile(filepath.Join(j.fs.Dir(), name))
	if err != nil {
		return 0, fmt.Errorf("%w: reading %s: %v", model.ErrFilesystem, name, err)
	}

	png, err := j.converter.ToPNG(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("converting %s: %w", name, err)
	}
	out, err := j.fs.Write(item.ID, ".png", png)
	if err != nil {
		return 0, err
	}

	if j.sizer != nil {
		if w, h, err := j.sizer(png); err == nil {
			j.logger.Info("converted",
				zap.String("source", name),
				zap.String("output", filepath.Base(out)),
				zap.Int("width", w),
				zap.Int("height", h),
			)
		}
	}
	return int64(len(png)), nil
}
