package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/todo-client/pkg/pagination"
	"github.com/Sternrassler/todo-client/pkg/todo"
)

func newListCmd(a *app) *cobra.Command {
	var (
		page   int
		limit  int
		output string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show one page of todos, newest first",
		Example: `  # First page
  todo list

  # Third page, 10 per page
  todo list --page 3 --limit 10`,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateOutput(output)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.PageSize
			}
			ctrl, err := pagination.NewControllerWith(page, limit)
			if err != nil {
				return err
			}

			var result *todo.PageResult
			err = a.do(cmd.Context(), func(ctx context.Context) error {
				var err error
				result, err = a.client.ListTodos(ctx, ctrl.Page(), ctrl.Limit())
				return err
			})
			if err != nil {
				return err
			}

			meta := ctrl.Meta(result.TotalCount)
			if meta.OutOfRange() {
				a.logger.Warn().
					Int("page", meta.CurrentPage).
					Int("total_pages", meta.TotalPages).
					Msg("Page is beyond the last page")
			}

			out := cmd.OutOrStdout()
			if output != outputTable {
				return writeStructured(out, output, listOutput{
					Items:      result.Data,
					Pagination: meta,
					Link:       result.HeaderLink,
				})
			}
			return writePage(out, result.Data, meta)
		},
	}

	cmd.Flags().IntVar(&page, "page", pagination.DefaultPage, "page number (1-based)")
	cmd.Flags().IntVar(&limit, "limit", pagination.DefaultLimit, "todos per page (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json, yaml")

	return cmd
}
