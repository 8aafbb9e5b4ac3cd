// Package tui renders the paginated todo list in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/todo-client/pkg/logging"
	"github.com/Sternrassler/todo-client/pkg/query"
	"github.com/Sternrassler/todo-client/pkg/todo"
)

// DefaultUserID owns todos created from the list view.
const DefaultUserID = 1

const mutationTimeout = 10 * time.Second

// Mutator performs todo mutations. *client.Client implements it.
type Mutator interface {
	AddTodo(ctx context.Context, item todo.NewTodo) error
	UpdateTodo(ctx context.Context, patch todo.Patch) error
	DeleteTodo(ctx context.Context, id int) error
}

// stateChangedMsg signals that the list query published a new state.
type stateChangedMsg struct{}

// mutationDoneMsg carries the result of an add, toggle or delete.
type mutationDoneMsg struct {
	op  string
	err error
}

// Model is the bubbletea model of the todo list screen.
type Model struct {
	query   *query.ListQuery
	mutator Mutator
	logger  zerolog.Logger

	changes     chan struct{}
	unsubscribe func()

	state   query.State
	cursor  int
	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
	lastErr error
}

// New creates the list model. The model subscribes to q; call Close when the
// program has exited.
func New(q *query.ListQuery, mutator Mutator) Model {
	input := textinput.New()
	input.Placeholder = "Enter new todo"
	input.CharLimit = 200
	input.Prompt = "+ "

	m := Model{
		query:   q,
		mutator: mutator,
		logger:  logging.NewLogger(logging.ComponentTUI),
		changes: make(chan struct{}, 1),
		state:   q.State(),
		input:   input,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:    help.New(),
		keys:    defaultKeyMap(),
	}
	changes := m.changes
	m.unsubscribe = q.Subscribe(func(query.State) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	return m
}

// Close stops listening for list updates.
func (m Model) Close() {
	m.unsubscribe()
}

// Init starts the first fetch.
func (m Model) Init() tea.Cmd {
	m.query.Refetch()
	return tea.Batch(m.waitForChange(), m.spinner.Tick)
}

func (m Model) waitForChange() tea.Cmd {
	changes := m.changes
	return func() tea.Msg {
		<-changes
		return stateChangedMsg{}
	}
}

// Update handles key presses and async results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateChangedMsg:
		m.state = m.query.State()
		m.clampCursor()
		return m, m.waitForChange()

	case mutationDoneMsg:
		if msg.err != nil {
			m.logger.Warn().Err(msg.err).Str("op", msg.op).Msg("mutation failed")
			m.lastErr = fmt.Errorf("%s: %w", msg.op, msg.err)
		} else {
			m.lastErr = nil
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.input.Focused() {
			return m.updateInput(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.input.Blur()
		m.input.SetValue("")
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		title := strings.TrimSpace(m.input.Value())
		m.input.SetValue("")
		m.input.Blur()
		if title == "" {
			return m, nil
		}
		return m, m.mutate("add", func(ctx context.Context) error {
			return m.mutator.AddTodo(ctx, todo.NewTodo{UserID: DefaultUserID, Title: title})
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.New):
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items())-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Toggle):
		if item, ok := m.selected(); ok {
			return m, m.mutate("toggle", func(ctx context.Context) error {
				return m.mutator.UpdateTodo(ctx, item.Toggle())
			})
		}

	case key.Matches(msg, m.keys.Delete):
		if item, ok := m.selected(); ok {
			return m, m.mutate("delete", func(ctx context.Context) error {
				return m.mutator.DeleteTodo(ctx, item.ID)
			})
		}

	case key.Matches(msg, m.keys.First):
		if !m.state.Meta.FirstDisabled {
			m.cursor = 0
			m.query.GoToFirst()
		}

	case key.Matches(msg, m.keys.Last):
		if !m.state.Meta.LastDisabled && m.state.Meta.TotalPages > 0 {
			m.cursor = 0
			m.query.GoToLast()
		}

	case key.Matches(msg, m.keys.Prev):
		if m.query.Previous() {
			m.cursor = 0
		}

	case key.Matches(msg, m.keys.Next):
		if m.query.Next() {
			m.cursor = 0
		}

	case key.Matches(msg, m.keys.GoToPage):
		page := int(msg.Runes[0] - '0')
		if page <= m.state.Meta.TotalPages && page != m.state.Meta.CurrentPage {
			m.cursor = 0
			if err := m.query.SetPage(page); err != nil {
				m.lastErr = err
			}
		}

	case key.Matches(msg, m.keys.Refresh):
		m.query.Refetch()
	}
	return m, nil
}

// mutate runs fn off the update loop. The list refreshes through the query's
// invalidation subscription.
func (m Model) mutate(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()
		return mutationDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) items() []todo.Todo {
	if m.state.Result == nil {
		return nil
	}
	return m.state.Result.Data
}

func (m Model) selected() (todo.Todo, bool) {
	items := m.items()
	if m.cursor < 0 || m.cursor >= len(items) {
		return todo.Todo{}, false
	}
	return items[m.cursor], true
}

func (m *Model) clampCursor() {
	if n := len(m.items()); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Todo List"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch {
	case m.state.Status == query.StatusLoading && m.state.Result == nil:
		b.WriteString(m.spinner.View() + " Loading...\n")
	case m.state.Status == query.StatusError && m.state.Result == nil:
		b.WriteString(errorStyle.Render(m.state.Err.Error()) + "\n")
	case m.state.Result != nil:
		b.WriteString(m.navView())
		b.WriteString("\n\n")
		b.WriteString(m.listView())
	}

	if m.state.Status == query.StatusError && m.state.Result != nil {
		b.WriteString("\n" + errorStyle.Render(m.state.Err.Error()))
	}
	if m.lastErr != nil {
		b.WriteString("\n" + errorStyle.Render(m.lastErr.Error()))
	}
	if m.state.Loading() && m.state.Result != nil {
		b.WriteString("\n" + statusStyle.Render(m.spinner.View()+" refreshing"))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) navView() string {
	meta := m.state.Meta
	parts := make([]string, 0, len(meta.Pages)+2)

	parts = append(parts, navButton("<<", meta.FirstDisabled))
	for _, page := range meta.Pages {
		label := fmt.Sprintf("%d", page)
		if page == meta.CurrentPage {
			parts = append(parts, currentStyle.Render(label))
		} else {
			parts = append(parts, pageStyle.Render(label))
		}
	}
	parts = append(parts, navButton(">>", meta.LastDisabled))

	return strings.Join(parts, "")
}

func navButton(label string, disabled bool) string {
	if disabled {
		return disabledStyle.Render(label)
	}
	return pageStyle.Render(label)
}

func (m Model) listView() string {
	items := m.items()
	if len(items) == 0 {
		return statusStyle.Render("No todos.")
	}

	lines := make([]string, 0, len(items))
	for i, item := range items {
		check := "[ ]"
		title := item.Title
		if item.Completed {
			check = "[x]"
			title = doneStyle.Render(title)
		}
		line := fmt.Sprintf("%s %s", check, title)
		if i == m.cursor && !m.input.Focused() {
			line = cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Run starts the list view and blocks until the user quits.
func Run(q *query.ListQuery, mutator Mutator, opts ...tea.ProgramOption) error {
	m := New(q, mutator)
	defer m.Close()

	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return fmt.Errorf("run list view: %w", err)
	}
	return nil
}
