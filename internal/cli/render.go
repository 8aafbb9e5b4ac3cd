package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/todo-client/pkg/logging"
	"github.com/Sternrassler/todo-client/pkg/pagination"
	"github.com/Sternrassler/todo-client/pkg/todo"
)

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	currentStyle  = lipgloss.NewStyle().Bold(true).Reverse(true)
	disabledStyle = lipgloss.NewStyle().Faint(true)
)

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// listOutput is the machine readable form of one page.
type listOutput struct {
	Items      []todo.Todo     `json:"items"       yaml:"items"`
	Pagination pagination.Meta `json:"pagination"  yaml:"pagination"`
	Link       string          `json:"link,omitempty" yaml:"link,omitempty"`
}

func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported structured format %q", format)
	}
}

// styled reports whether w gets terminal styling.
func styled(w io.Writer) bool {
	return logging.IsTerminal(w) && os.Getenv("NO_COLOR") == ""
}

func render(w io.Writer, style lipgloss.Style, s string) string {
	if !styled(w) {
		return s
	}
	return style.Render(s)
}

func writeTable(w io.Writer, items []todo.Todo) error {
	const tabPadding = 2
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)

	fmt.Fprintln(tw, render(w, headerStyle, "ID\tDONE\tTITLE\tUSER"))
	for _, item := range items {
		done := "[ ]"
		if item.Completed {
			done = "[x]"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", item.ID, done, item.Title, item.UserID)
	}
	return tw.Flush()
}

// navLine renders the page buttons: << 1 [2] 3 >>
func navLine(w io.Writer, meta pagination.Meta) string {
	parts := make([]string, 0, len(meta.Pages)+2)

	button := func(label string, disabled bool) string {
		if disabled {
			if styled(w) {
				return disabledStyle.Render(label)
			}
			return "(" + label + ")"
		}
		return label
	}

	parts = append(parts, button("<<", meta.FirstDisabled))
	for _, page := range meta.Pages {
		label := fmt.Sprintf("%d", page)
		if page == meta.CurrentPage {
			if styled(w) {
				label = currentStyle.Render(label)
			} else {
				label = "[" + label + "]"
			}
		}
		parts = append(parts, label)
	}
	parts = append(parts, button(">>", meta.LastDisabled))
	return strings.Join(parts, " ")
}

func writePage(w io.Writer, items []todo.Todo, meta pagination.Meta) error {
	if len(items) == 0 {
		fmt.Fprintln(w, "No todos.")
	} else if err := writeTable(w, items); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "page %d of %d (%d items)  %s\n", meta.CurrentPage, meta.TotalPages, meta.TotalItems, navLine(w, meta))
	return nil
}
