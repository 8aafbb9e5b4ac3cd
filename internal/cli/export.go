package cli

import (
	"github.com/spf13/cobra"

	"github.com/Sternrassler/todo-client/pkg/pagination"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		limit   int
		workers int
		output  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch every page and print the whole collection",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateOutput(output)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := pagination.DefaultConfig()
			cfg.MaxConcurrency = workers
			if a.cfg.Timeout > 0 {
				cfg.Timeout = a.cfg.Timeout
			}

			items, err := pagination.NewBatchFetcher(a.client, cfg).FetchAll(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output == outputTable {
				if err := writeTable(out, items); err != nil {
					return err
				}
				cmd.Printf("\n%d todos\n", len(items))
				return nil
			}
			return writeStructured(out, output, items)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "todos per request")
	cmd.Flags().IntVar(&workers, "workers", pagination.DefaultConfig().MaxConcurrency, "parallel requests")
	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "output format: table, json, yaml")
	return cmd
}
