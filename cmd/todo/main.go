// Command todo is the command line client for the paginated todo list.
package main

import (
	"os"

	"github.com/Sternrassler/todo-client/internal/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		os.Exit(1)
	}
}
