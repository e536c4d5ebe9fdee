package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fleveque/heliassets/internal/model"
	"github.com/fleveque/heliassets/internal/storage"
)

func historyCmd(configPath func() string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent image-generation and query-suggestion calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath())
			if err != nil {
				return err
			}
			defer a.Close()

			if a.db == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Call ledger disabled (storage.database_path is empty)")
				return nil
			}
			return printHistory(cmd.Context(), cmd.OutOrStdout(), a.calls, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of calls to show")
	return cmd
}

// printHistory writes the most recent calls as an aligned table.
func printHistory(ctx context.Context, w io.Writer, repo storage.CallRepository, limit int) error {
	calls, err := repo.ListRecent(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing calls: %w", err)
	}
	if len(calls) == 0 {
		fmt.Fprintln(w, "No calls recorded yet")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRUN\tITEM\tKIND\tPROVIDER\tMODEL\tOK\tMS\tBYTES\tERROR")
	for _, c := range calls {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			c.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			shortRunID(c.RunID),
			c.ItemID,
			c.Kind,
			c.Provider,
			c.Model,
			okMark(c),
			c.DurationMs,
			c.Bytes,
			errText(c),
		)
	}
	return tw.Flush()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func okMark(c model.ProviderCall) string {
	if c.Success {
		return "yes"
	}
	return "no"
}

func errText(c model.ProviderCall) string {
	if c.Error == nil {
		return ""
	}
	const maxLen = 60
	if len(*c.Error) > maxLen {
		return (*c.Error)[:maxLen] + "..."
	}
	return *c.Error
}
