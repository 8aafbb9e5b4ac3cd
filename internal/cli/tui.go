package cli

import (
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/todo-client/internal/tui"
	"github.com/Sternrassler/todo-client/pkg/logging"
	"github.com/Sternrassler/todo-client/pkg/pagination"
	"github.com/Sternrassler/todo-client/pkg/query"
)

func newTUICmd(a *app) *cobra.Command {
	var noClamp bool

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive paginated list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !logging.IsTerminal(os.Stdin) || !logging.IsTerminal(os.Stdout) {
				return errors.New("tui needs an interactive terminal")
			}

			ctrl, err := pagination.NewControllerWith(pagination.DefaultPage, a.cfg.PageSize)
			if err != nil {
				return err
			}
			q := query.New(a.client, ctrl,
				query.WithClampOnShrink(!noClamp),
				query.WithLogger(logging.NewLogger(logging.ComponentQuery)),
			)
			defer q.Close()

			return tui.Run(q, a.client, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		},
	}

	cmd.Flags().BoolVar(&noClamp, "no-clamp", false, "stay on a page past the end after deletions")
	return cmd
}
