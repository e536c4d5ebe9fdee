// Package service wires the acquisition providers to the batch driver.
// Each *Job type here implements batch.Job for one command.
package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/h2non/bimg"
	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/model"
)

// PNGConverter turns image bytes of any supported format into PNG.
type PNGConverter interface {
	ToPNG(ctx context.Context, data []byte) ([]byte, error)
}

// ImageProcessor handles format conversion for downloaded, generated, and extracted images.
// It uses bimg (Go bindings for libvips), a C library that's extremely fast
// at image manipulation. The trade-off: requires libvips as a system dependency.
//
// bimg can't sniff JPEG 2000, so those go through the vips command-line tool,
// which ships with the same libvips install.
type ImageProcessor struct {
	vipsCmd string
	logger  *zap.Logger
}

// NewImageProcessor creates a new ImageProcessor.
func NewImageProcessor(logger *zap.Logger) *ImageProcessor {
	return &ImageProcessor{vipsCmd: "vips", logger: logger}
}

// IsImage reports whether data sniffs as a raster or vector image.
func IsImage(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}

// isJPEG2000 matches the JP2 family: .jp2, .jpx, .jpm, and bare codestreams.
func isJPEG2000(m *mimetype.MIME) bool {
	return m.Is("image/jp2") || m.Is("image/jpx") || m.Is("image/jpm") || m.Is("image/x-jp2-codestream")
}

// ToPNG converts data to PNG. PNG input is returned unchanged.
func (p *ImageProcessor) ToPNG(ctx context.Context, data []byte) ([]byte, error) {
	m := mimetype.Detect(data)
	switch {
	case m.Is("image/png"):
		return data, nil
	case isJPEG2000(m):
		return p.convertWithVips(ctx, data, m.Extension())
	}

	// bimg.NewImage wraps raw bytes; it doesn't copy them, just references them.
	out, err := bimg.NewImage(data).Convert(bimg.PNG)
	if err != nil {
		return nil, fmt.Errorf("%w: converting %s to PNG: %v", model.ErrParse, m.String(), err)
	}
	return out, nil
}

// Dimensions returns the pixel size of an image bimg can read.
func (p *ImageProcessor) Dimensions(data []byte) (int, int, error) {
	size, err := bimg.NewImage(data).Size()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: reading image size: %v", model.ErrParse, err)
	}
	return size.Width, size.Height, nil
}

// convertWithVips runs `vips copy in.<ext> out.png` in a scratch directory.
func (p *ImageProcessor) convertWithVips(ctx context.Context, data []byte, ext string) ([]byte, error) {
	if ext == "" {
		ext = ".jp2"
	}
	dir, err := os.MkdirTemp("", "heliassets-vips-*")
	if err != nil {
		return nil, fmt.Errorf("%w: creating scratch dir: %v", model.ErrFilesystem, err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in"+ext)
	out := filepath.Join(dir, "out.png")
	if err := os.WriteFile(in, data, 0600); err != nil {
		return nil, fmt.Errorf("%w: writing scratch input: %v", model.ErrFilesystem, err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.vipsCmd, "copy", in, out)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s copy failed: %v: %s", model.ErrParse, p.vipsCmd, err, bytes.TrimSpace(stderr.Bytes()))
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: reading converted image: %v", model.ErrFilesystem, err)
	}
	p.logger.Debug("converted with vips", zap.Int("in_bytes", len(data)), zap.Int("out_bytes", len(png)))
	return png, nil
}
