package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/catalog"
)

func extractCmd(configPath func() string) *cobra.Command {
	var (
		pdfPath  string
		out      string
		noText   bool
		noTables bool
		noImages bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract text, tables, and images from the PDF catalog",
		Long: `Writes all-text.txt (one block per page), tables.txt (rows joined with " | "),
every embedded image larger than catalog.min_image_px as p{page}_i{n}_{w}x{h}.{ext},
and a manifest.yaml describing what was produced.

JPEG 2000 images keep their .jpx extension; run "heliassets convert" afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath())
			if err != nil {
				return err
			}
			defer a.Close()

			cc := a.cfg.Catalog
			if cmd.Flags().Changed("pdf") {
				cc.PDFPath = pdfPath
			}
			if cmd.Flags().Changed("out") {
				cc.OutputDir = out
			}

			ex, err := catalog.New(catalog.Config{
				PDFPath:    cc.PDFPath,
				OutputDir:  cc.OutputDir,
				MinImagePx: cc.MinImagePx,
				ColumnGap:  cc.ColumnGap,
				Text:       !noText,
				Tables:     !noTables,
				Images:     !noImages,
			}, cmd.OutOrStdout(), a.logger)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(a.logger)
			defer cancel()

			report, err := ex.Extract(ctx)
			if err != nil {
				return fmt.Errorf("extracting %s: %w", cc.PDFPath, err)
			}

			// Page-level problems don't fail the command; the rest of the catalog is still useful.
			for _, pageErr := range multierr.Errors(report.Err) {
				a.logger.Warn("extraction problem", zap.Error(pageErr))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pages: %d, tables: %d, images: %d, problems: %d\n",
				report.Pages, report.Tables, len(report.Images), len(report.Errors))
			return nil
		},
	}

	cmd.Flags().StringVar(&pdfPath, "pdf", "", "PDF file (overrides catalog.pdf_path)")
	cmd.Flags().StringVar(&out, "out", "", "Output directory (overrides catalog.output_dir)")
	cmd.Flags().BoolVar(&noText, "no-text", false, "Skip all-text.txt")
	cmd.Flags().BoolVar(&noTables, "no-tables", false, "Skip tables.txt")
	cmd.Flags().BoolVar(&noImages, "no-images", false, "Skip image extraction")
	return cmd
}
