// Package catalog pulls the text, tables, and embedded images out of a PDF
// product catalog so they can be reviewed and reused on the site.
//
// Two libraries do the heavy lifting: ledongthuc/pdf reads the text layer
// (plain text plus positioned glyphs, from which tables are rebuilt), and
// pdfcpu walks the image resources. Both are pure Go, so no poppler or
// mupdf install is needed.
package catalog

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/fleveque/heliassets/internal/model"
	"github.com/fleveque/heliassets/internal/storage"
)

// Output file names inside the output directory.
const (
	TextFile     = "all-text.txt"
	TablesFile   = "tables.txt"
	ManifestFile = "manifest.yaml"
)

// Config controls one extraction run.
type Config struct {
	PDFPath    string
	OutputDir  string
	MinImagePx int     // images must be strictly larger than this on both sides
	ColumnGap  float64 // horizontal gap (PDF points) that separates two table cells

	Text   bool
	Tables bool
	Images bool
}

// ImageEntry describes one saved image.
type ImageEntry struct {
	File   string `yaml:"file"`
	Page   int    `yaml:"page"`
	Index  int    `yaml:"index"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Format string `yaml:"format"`
	Bytes  int64  `yaml:"bytes"`
}

// Report is what an extraction produced. It is also written to disk as the manifest.
type Report struct {
	Source      string       `yaml:"source"`
	ExtractedAt time.Time    `yaml:"extracted_at"`
	Pages       int          `yaml:"pages"`
	TextFile    string       `yaml:"text_file,omitempty"`
	TablesFile  string       `yaml:"tables_file,omitempty"`
	Tables      int          `yaml:"tables"`
	Images      []ImageEntry `yaml:"images"`
	Errors      []string     `yaml:"errors,omitempty"`

	// Err combines every per-page failure. The files above are still written.
	Err error `yaml:"-"`
}

// Extractor runs the extraction steps against one PDF.
type Extractor struct {
	cfg      Config
	fs       *storage.FileSystem
	progress io.Writer
	logger   *zap.Logger
}

// New creates an Extractor, ensuring the output directory exists.
// progress receives the human-readable "Saved: ..." lines; pass io.Discard to silence it.
func New(cfg Config, progress io.Writer, logger *zap.Logger) (*Extractor, error) {
	if cfg.PDFPath == "" {
		return nil, fmt.Errorf("%w: no PDF path configured", model.ErrFilesystem)
	}
	fs, err := storage.NewFileSystem(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Extractor{cfg: cfg, fs: fs, progress: progress, logger: logger}, nil
}

// Extract runs the enabled steps and writes the manifest.
//
// A returned error means nothing useful could be produced (unreadable PDF,
// unwritable output directory). Problems on individual pages are collected in
// Report.Err instead, so one corrupt page doesn't cost the rest of the catalog.
func (e *Extractor) Extract(ctx context.Context) (*Report, error) {
	report := &Report{
		Source:      e.cfg.PDFPath,
		ExtractedAt: time.Now().UTC(),
		Images:      []ImageEntry{},
	}

	if e.cfg.Text || e.cfg.Tables {
		pages, err := readPages(ctx, e.cfg.PDFPath, e.cfg.ColumnGap, e.logger)
		if err != nil {
			return nil, err
		}
		report.Pages = len(pages)
		for _, p := range pages {
			report.Err = multierr.Append(report.Err, p.Err)
		}

		if e.cfg.Text {
			if err := e.writeText(pages); err != nil {
				return nil, err
			}
			report.TextFile = TextFile
		}
		if e.cfg.Tables {
			n, err := e.writeTables(pages)
			if err != nil {
				return nil, err
			}
			report.TablesFile = TablesFile
			report.Tables = n
		}
	}

	if e.cfg.Images {
		images, err := e.extractImages(ctx)
		report.Images = append(report.Images, images...)
		report.Err = multierr.Append(report.Err, err)
		fmt.Fprintf(e.progress, "\nTotal images extracted: %d\n", len(images))
	}

	for _, err := range multierr.Errors(report.Err) {
		report.Errors = append(report.Errors, err.Error())
	}

	if err := e.writeManifest(report); err != nil {
		return nil, err
	}

	e.logger.Info("catalog extracted",
		zap.String("source", e.cfg.PDFPath),
		zap.Int("pages", report.Pages),
		zap.Int("tables", report.Tables),
		zap.Int("images", len(report.Images)),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

func (e *Extractor) writeText(pages []pageContent) error {
	path := filepath.Join(e.fs.Dir(), TextFile)
	if err := storage.WriteAtomic(path, []byte(renderText(pages))); err != nil {
		return err
	}
	fmt.Fprintf(e.progress, "Text saved to %s\n", TextFile)
	return nil
}

func (e *Extractor) writeTables(pages []pageContent) (int, error) {
	body, n := renderTables(pages)
	path := filepath.Join(e.fs.Dir(), TablesFile)
	if err := storage.WriteAtomic(path, []byte(body)); err != nil {
		return 0, err
	}
	fmt.Fprintf(e.progress, "Tables saved to %s (%d found)\n", TablesFile, n)
	return n, nil
}

func (e *Extractor) writeManifest(report *Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return storage.WriteAtomic(filepath.Join(e.fs.Dir(), ManifestFile), data)
}

// ReadManifest loads a manifest written by a previous run.
func ReadManifest(dir string) (*Report, error) {
	fs, err := storage.NewFileSystem(dir)
	if err != nil {
		return nil, err
	}
	data, err := fs.Read("manifest", ".yaml")
	if err != nil {
		return nil, err
	}
	var report Report
	if err := yaml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("%w: decoding manifest: %v", model.ErrParse, err)
	}
	return &report, nil
}
