// Package cli implements the todo command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/Sternrassler/todo-client/internal/config"
)

// NewRootCmd creates the root Cobra command for the todo CLI.
func NewRootCmd(ver string) *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "todo",
		Short:         "Paginated todo list client",
		Long:          "todo: list, add, update and delete todos on a json-server compatible REST API",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.flags.configPath, "config", config.DefaultPath(), "config file (YAML)")
	flags.StringVar(&a.flags.baseURL, "base-url", "", "REST API base URL (overrides "+config.EnvBaseURL+")")
	flags.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.flags.redisURL, "redis-url", "", "share the response cache through Redis")
	flags.IntVar(&a.flags.retries, "retries", 0, "retry failed requests this many times")
	flags.BoolVar(&a.flags.debug, "debug", false, "enable debug logging")
	flags.StringVar(&a.flags.logFile, "log-file", "", "write logs to this file instead of stderr")

	cmd.AddCommand(
		newListCmd(a),
		newAddCmd(a),
		newUpdateCmd(a),
		newSetCompletedCmd(a, "done", "Mark todos as completed", true),
		newSetCompletedCmd(a, "reopen", "Mark todos as not completed", false),
		newRemoveCmd(a),
		newExportCmd(a),
		newTUICmd(a),
	)

	return cmd
}

const rootCmdExample = `  # Show the first page (4 todos per page)
  todo list

  # Show page 2 with 10 todos per page as JSON
  todo list --page 2 --limit 10 --output json

  # Add a todo
  todo add Buy milk

  # Complete todo 5, then delete it
  todo done 5
  todo rm 5

  # Export the whole collection
  todo export --output yaml

  # Interactive list view
  todo tui`
