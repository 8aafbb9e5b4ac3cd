package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/todo-client/pkg/todo"
)

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid todo id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newAddCmd(a *app) *cobra.Command {
	var (
		userID    int
		completed bool
	)

	cmd := &cobra.Command{
		Use:   "add <title>...",
		Short: "Add a todo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args, " "))
			if title == "" {
				return errors.New("title must not be empty")
			}
			item := todo.NewTodo{UserID: userID, Title: title, Completed: completed}
			if err := a.do(cmd.Context(), func(ctx context.Context) error {
				return a.client.AddTodo(ctx, item)
			}); err != nil {
				return err
			}
			cmd.Printf("Added %q\n", title)
			return nil
		},
	}

	cmd.Flags().IntVar(&userID, "user", 1, "owner user id")
	cmd.Flags().BoolVar(&completed, "completed", false, "create the todo as completed")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var (
		title     string
		userID    int
		completed bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a todo; unset flags are left untouched",
		Example: `  todo update 5 --title "Buy oat milk"
  todo update 5 --completed=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			patch := todo.Patch{ID: ids[0]}
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("user") {
				patch.UserID = &userID
			}
			if flags.Changed("completed") {
				patch.Completed = &completed
			}
			if patch.Title == nil && patch.UserID == nil && patch.Completed == nil {
				return errors.New("nothing to update: set --title, --user or --completed")
			}

			if err := a.do(cmd.Context(), func(ctx context.Context) error {
				return a.client.UpdateTodo(ctx, patch)
			}); err != nil {
				return err
			}
			cmd.Printf("Updated todo %d\n", patch.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().IntVar(&userID, "user", 0, "new owner user id")
	cmd.Flags().BoolVar(&completed, "completed", false, "completed state")
	return cmd
}

func newSetCompletedCmd(a *app, use, short string, completed bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			for _, id := range ids {
				value := completed
				patch := todo.Patch{ID: id, Completed: &value}
				if err := a.do(cmd.Context(), func(ctx context.Context) error {
					return a.client.UpdateTodo(ctx, patch)
				}); err != nil {
					return fmt.Errorf("todo %d: %w", id, err)
				}
			}
			cmd.Printf("Updated %d todo(s)\n", len(ids))
			return nil
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete todos",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err := a.do(cmd.Context(), func(ctx context.Context) error {
					return a.client.DeleteTodo(ctx, id)
				}); err != nil {
					return fmt.Errorf("todo %d: %w", id, err)
				}
			}
			cmd.Printf("Deleted %d todo(s)\n", len(ids))
			return nil
		},
	}
}
