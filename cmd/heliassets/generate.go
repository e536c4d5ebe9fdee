package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/fleveque/heliassets/internal/provider"
	"github.com/fleveque/heliassets/internal/service"
	"github.com/fleveque/heliassets/internal/storage"
)

func generateCmd(configPath func() string) *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a studio-style image of each helicopter",
		Long: `Renders each item with the configured image generators (generate.provider_order,
default gemini) and saves the result as {out}/{id}.png.

A missing API key for any configured provider stops the command before any work starts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath())
			if err != nil {
				return err
			}
			defer a.Close()

			bc := flags.apply(cmd, a.cfg.Generate.BatchConfig)
			items, err := flags.loadItems(bc)
			if err != nil {
				return err
			}

			generator, err := a.generatorChain()
			if err != nil {
				return err
			}

			fs, err := storage.NewFileSystem(bc.OutputDir)
			if err != nil {
				return err
			}
			job := service.NewGenerateJob(generator, service.NewImageProcessor(a.logger), fs, a.logger)

			ctx, cancel := signalContext(a.logger)
			defer cancel()

			_, err = runBatch(ctx, job, items, bc, flags.force, a.calls, a.runID, cmd.OutOrStdout(), a.logger)
			return err
		},
	}

	flags.register(cmd)
	return cmd
}

// generatorChain builds the configured generators in order.
func (a *app) generatorChain() (*provider.GeneratorChain, error) {
	gc := a.cfg.Generate
	if len(gc.ProviderOrder) == 0 {
		return nil, fmt.Errorf("generate.provider_order is empty")
	}

	var generators []provider.Generator
	for _, name := range gc.ProviderOrder {
		switch name {
		case "gemini":
			g, err := provider.NewGeminiGenerator(a.httpClient(), provider.GeminiConfig{
				APIKey:      gc.Gemini.APIKey,
				Endpoint:    gc.Gemini.Endpoint,
				Model:       gc.Gemini.Model,
				AspectRatio: gc.Gemini.AspectRatio,
				MimeType:    gc.Gemini.MimeType,
				Timeout:     gc.Timeout,
			}, a.logger)
			if err != nil {
				return nil, err
			}
			generators = append(generators, g)
		case "openai":
			g, err := provider.NewOpenAIImageGenerator(provider.OpenAIImageConfig{
				APIKey: gc.OpenAI.APIKey,
				Model:  gc.OpenAI.Model,
				Size:   gc.OpenAI.Size,
			}, &http.Client{Timeout: gc.Timeout})
			if err != nil {
				return nil, err
			}
			generators = append(generators, g)
		default:
			return nil, fmt.Errorf("unknown image provider %q", name)
		}
	}

	return provider.NewGeneratorChain(generators, a.calls, a.runID, a.logger), nil
}
