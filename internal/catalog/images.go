package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/model"
	"github.com/fleveque/heliassets/internal/storage"
)

// pdfcpu otherwise installs a config directory under the user's home on first use.
var disableConfigDir sync.Once

// keepImage drops icons, bullets and spacer images.
func keepImage(width, height, minPx int) bool {
	return width > minPx && height > minPx
}

// imageFileName names an image after where it came from: p{page}_i{index}_{w}x{h}.{ext}.
// index counts every image on the page, including skipped ones, so names stay
// stable when the size threshold changes.
func imageFileName(page, index, width, height int, fileType string) string {
	ext := strings.ToLower(strings.TrimPrefix(fileType, "."))
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("p%d_i%d_%dx%d.%s", page, index, width, height, ext)
}

// extractImages writes every embedded image above the size threshold in its
// native encoding. JPEG 2000 images keep their .jpx extension for the convert command.
func (e *Extractor) extractImages(ctx context.Context) (images []ImageEntry, err error) {
	disableConfigDir.Do(api.DisableConfigDir)

	f, err := os.Open(e.cfg.PDFPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", model.ErrFilesystem, e.cfg.PDFPath, err)
	}
	defer f.Close()

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	perPage := make(map[int]int)
	var errs []error

	digest := func(img pdfmodel.Image, _ bool, _ int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		index := perPage[img.PageNr]
		perPage[img.PageNr]++

		if !keepImage(img.Width, img.Height, e.cfg.MinImagePx) {
			e.logger.Debug("skipping small image",
				zap.Int("page", img.PageNr),
				zap.Int("width", img.Width),
				zap.Int("height", img.Height),
			)
			return nil
		}

		name := imageFileName(img.PageNr, index, img.Width, img.Height, img.FileType)
		data, err := io.ReadAll(img)
		if err != nil {
			// One unreadable stream shouldn't stop the rest of the walk.
			errs = append(errs, fmt.Errorf("%w: page %d image %d: %v", model.ErrParse, img.PageNr, index, err))
			return nil
		}
		if err := storage.WriteAtomic(filepath.Join(e.fs.Dir(), name), data); err != nil {
			return err
		}

		images = append(images, ImageEntry{
			File:   name,
			Page:   img.PageNr,
			Index:  index,
			Width:  img.Width,
			Height: img.Height,
			Format: strings.ToLower(img.FileType),
			Bytes:  int64(len(data)),
		})
		fmt.Fprintf(e.progress, "Saved: %s\n", name)
		return nil
	}

	walkErr := recoverParse(0, func() error {
		if err := api.ExtractImages(f, nil, digest, conf); err != nil {
			return fmt.Errorf("extracting images: %w", err)
		}
		return nil
	})
	errs = append(errs, walkErr)
	return images, multierr.Combine(errs...)
}
