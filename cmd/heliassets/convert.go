package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleveque/heliassets/internal/config"
	"github.com/fleveque/heliassets/internal/service"
	"github.com/fleveque/heliassets/internal/storage"
)

func convertCmd(configPath func() string) *cobra.Command {
	var (
		dir   string
		ext   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert extracted JPEG 2000 (.jpx) images to PNG",
		Long: `Converts every file with the configured extension (convert.extension, default .jpx)
in convert.dir to {stem}.png alongside it. Existing non-empty PNGs are kept
unless --force is given. Requires libvips.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath())
			if err != nil {
				return err
			}
			defer a.Close()

			cc := a.cfg.Convert
			if cmd.Flags().Changed("dir") {
				cc.Dir = dir
			}
			if cmd.Flags().Changed("ext") {
				cc.Extension = ext
			}

			fs, err := storage.NewFileSystem(cc.Dir)
			if err != nil {
				return err
			}
			job := service.NewConvertJob(fs, cc.Extension, service.NewImageProcessor(a.logger), a.logger)

			items, err := job.Items()
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s files in %s\n", cc.Extension, cc.Dir)
				return nil
			}

			ctx, cancel := signalContext(a.logger)
			defer cancel()

			// Local conversion needs no pacing: zero delay gives a NopPacer.
			bc := config.BatchConfig{OutputDir: cc.Dir}
			_, err = runBatch(ctx, job, items, bc, force, a.calls, a.runID, cmd.OutOrStdout(), a.logger)
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory to convert (overrides convert.dir)")
	cmd.Flags().StringVar(&ext, "ext", "", "Source extension, e.g. .jpx (overrides convert.extension)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing PNGs")
	return cmd
}
