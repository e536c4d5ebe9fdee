package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/llm"
	"github.com/fleveque/heliassets/internal/provider"
	"github.com/fleveque/heliassets/internal/service"
	"github.com/fleveque/heliassets/internal/storage"
)

func fetchCmd(configPath func() string) *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download a Wikimedia Commons photo for each helicopter",
		Long: `Searches Wikimedia Commons for each item's query, drops wrecks, drawings and
non-JPEG files, and saves the widest remaining photo as {out}/{id}.jpg.

Use --only and --force to refresh a few photos that came out wrong.`,
		// RunE returns an error (vs Run which doesn't). Cobra prints the error automatically.
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath())
			if err != nil {
				return err
			}
			defer a.Close()

			bc := flags.apply(cmd, a.cfg.Fetch)
			items, err := flags.loadItems(bc)
			if err != nil {
				return err
			}

			fs, err := storage.NewFileSystem(bc.OutputDir)
			if err != nil {
				return err
			}

			client := a.httpClient()
			searcher := provider.NewWikimediaSearcher(client, provider.WikimediaConfig{
				Endpoint:    a.cfg.Search.Endpoint,
				QueryPrefix: a.cfg.Search.QueryPrefix,
				Limit:       a.cfg.Search.Limit,
				ThumbWidth:  a.cfg.Search.ThumbWidth,
			}, provider.Filter{
				AllowMimes: a.cfg.Search.AllowMimes,
				Denylist:   a.cfg.Search.Denylist,
			}, a.logger)

			job := service.NewFetchJob(searcher, client, a.suggester(), fs, a.logger)

			ctx, cancel := signalContext(a.logger)
			defer cancel()

			_, err = runBatch(ctx, job, items, bc, flags.force, a.calls, a.runID, cmd.OutOrStdout(), a.logger)
			return err
		},
	}

	flags.register(cmd)
	return cmd
}

// suggester builds the optional LLM query suggester from llm.provider_order.
// Providers without an API key are skipped with a warning, so an empty result
// just disables the retry instead of failing the run.
func (a *app) suggester() *llm.Suggester {
	var clients []llm.Client
	for _, name := range a.cfg.LLM.ProviderOrder {
		switch name {
		case "anthropic":
			if a.cfg.LLM.Anthropic.APIKey == "" {
				a.logger.Warn("skipping LLM provider without API key", zap.String("provider", name))
				continue
			}
			clients = append(clients, llm.NewAnthropicClient(a.cfg.LLM.Anthropic.APIKey, a.cfg.LLM.Anthropic.Model))
		case "openai":
			if a.cfg.LLM.OpenAI.APIKey == "" {
				a.logger.Warn("skipping LLM provider without API key", zap.String("provider", name))
				continue
			}
			clients = append(clients, llm.NewOpenAIClient(a.cfg.LLM.OpenAI.APIKey, a.cfg.LLM.OpenAI.Model, ""))
		default:
			a.logger.Warn("unknown LLM provider", zap.String("provider", name))
		}
	}

	if len(clients) == 0 {
		return nil
	}
	a.logger.Info("query suggestions enabled", zap.Int("providers", len(clients)))
	return llm.NewSuggester(clients, a.cfg.LLM.RatePerMinute, a.calls, a.runID, a.logger)
}
