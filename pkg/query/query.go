package query

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/todo-client/pkg/cache"
	"github.com/Sternrassler/todo-client/pkg/client"
	"github.com/Sternrassler/todo-client/pkg/logging"
	"github.com/Sternrassler/todo-client/pkg/pagination"
	"github.com/Sternrassler/todo-client/pkg/todo"
)

// Status of the list query.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrClosed is returned by Wait after Close.
var ErrClosed = errors.New("query closed")

// Source is what a ListQuery reads from. *client.Client implements it.
type Source interface {
	ListTodos(ctx context.Context, page, limit int) (*todo.PageResult, error)
	Cache() *cache.Manager
}

// State is an immutable snapshot published to subscribers.
type State struct {
	Status Status
	// Result of the last successful fetch. Kept while a refetch is loading
	// and after a failed one.
	Result *todo.PageResult
	Meta   pagination.Meta
	Err    error
}

// Loading reports whether a fetch is in flight.
func (s State) Loading() bool { return s.Status == StatusLoading }

// Listener receives state changes. It runs without the query lock held.
type Listener func(State)

// Option configures a ListQuery.
type Option func(*ListQuery)

// WithClampOnShrink moves the controller to the new last page when a fetch
// reports fewer pages than the current page. Enabled by default.
func WithClampOnShrink(enabled bool) Option {
	return func(q *ListQuery) { q.clampOnShrink = enabled }
}

// WithLogger sets the query logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(q *ListQuery) { q.logger = logger }
}

// ListQuery tracks the current page of the todo list.
type ListQuery struct {
	src           Source
	ctrl          *pagination.Controller
	logger        zerolog.Logger
	clampOnShrink bool

	mu        sync.Mutex
	state     State
	gen       uint64
	cancel    context.CancelFunc
	settled   chan struct{}
	closed    bool
	nextID    uint64
	listeners map[uint64]Listener

	unsubscribe func()
	wg          sync.WaitGroup
}

// New creates a list query over src. It subscribes to invalidations of the
// Todos tag; call Refetch to load the first page.
func New(src Source, ctrl *pagination.Controller, opts ...Option) *ListQuery {
	if ctrl == nil {
		ctrl = pagination.NewController()
	}
	q := &ListQuery{
		src:           src,
		ctrl:          ctrl,
		logger:        logging.NewLogger(logging.ComponentQuery),
		clampOnShrink: true,
		state:         State{Status: StatusIdle},
		settled:       closedChan(),
		listeners:     make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.unsubscribe = src.Cache().SubscribeTag(client.TagTodos, func(ev cache.Event) {
		if ev.Type == cache.EventInvalidated {
			q.logger.Debug().Str("tag", ev.Tag).Msg("list invalidated, refetching")
			q.Refetch()
		}
	})
	return q
}

// Controller returns the pagination controller driving the query.
func (q *ListQuery) Controller() *pagination.Controller {
	return q.ctrl
}

// State returns the current snapshot.
func (q *ListQuery) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Subscribe registers l for state changes. The returned func unsubscribes.
func (q *ListQuery) Subscribe(l Listener) func() {
	q.mu.Lock()
	q.nextID++
	id := q.nextID
	q.listeners[id] = l
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.listeners, id)
			q.mu.Unlock()
		})
	}
}

// SetPage moves to page and refetches.
func (q *ListQuery) SetPage(page int) error {
	if err := q.ctrl.SetPage(page); err != nil {
		return err
	}
	q.Refetch()
	return nil
}

// SetLimit changes the page size and refetches.
func (q *ListQuery) SetLimit(limit int) error {
	if err := q.ctrl.SetLimit(limit); err != nil {
		return err
	}
	q.Refetch()
	return nil
}

// GoToFirst moves to page 1 and refetches.
func (q *ListQuery) GoToFirst() {
	q.ctrl.GoToFirst()
	q.Refetch()
}

// GoToLast moves to the last page known from the previous fetch and
// refetches.
func (q *ListQuery) GoToLast() {
	q.ctrl.GoToLast(q.State().Meta.TotalPages)
	q.Refetch()
}

// Next moves one page forward unless already on the last known page.
func (q *ListQuery) Next() bool {
	meta := q.State().Meta
	if meta.CurrentPage >= meta.TotalPages {
		return false
	}
	return q.SetPage(q.ctrl.Page()+1) == nil
}

// Previous moves one page back unless already on page 1.
func (q *ListQuery) Previous() bool {
	page := q.ctrl.Page()
	if page <= pagination.MinPage {
		return false
	}
	return q.SetPage(page-1) == nil
}

// Refetch cancels any request in flight and fetches the controller's current
// page. It returns immediately; observe progress through Subscribe or Wait.
func (q *ListQuery) Refetch() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if q.cancel != nil {
		q.cancel()
	}
	q.gen++
	gen := q.gen
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	if !q.state.Loading() {
		q.settled = make(chan struct{})
	}
	page, limit := q.ctrl.Params()
	q.state = State{
		Status: StatusLoading,
		Result: q.state.Result,
		Meta:   pagination.NewMeta(page, limit, totalCount(q.state.Result)),
	}
	state, listeners := q.state, q.snapshotListeners()
	q.wg.Add(1)
	q.mu.Unlock()

	notify(listeners, state)
	go q.fetch(ctx, gen, page, limit)
}

func (q *ListQuery) fetch(ctx context.Context, gen uint64, page, limit int) {
	defer q.wg.Done()

	result, err := q.src.ListTodos(ctx, page, limit)

	q.mu.Lock()
	if gen != q.gen || q.closed {
		q.mu.Unlock()
		queryFetchesTotal.WithLabelValues("superseded").Inc()
		q.logger.Debug().
			Int("page", page).
			Int("limit", limit).
			Msg("dropping superseded list response")
		return
	}

	if err != nil {
		q.state = State{
			Status: StatusError,
			Result: q.state.Result,
			Meta:   q.state.Meta,
			Err:    err,
		}
		queryFetchesTotal.WithLabelValues("error").Inc()
		q.logger.Warn().Err(err).Int("page", page).Int("limit", limit).Msg("list fetch failed")
		q.settle()
		return
	}

	meta := pagination.NewMeta(page, limit, result.TotalCount)
	if q.clampOnShrink && meta.OutOfRange() && q.ctrl.Clamp(meta.TotalPages) {
		q.mu.Unlock()
		queryClampsTotal.Inc()
		q.logger.Info().
			Int("page", page).
			Int("total_pages", meta.TotalPages).
			Msg("page beyond last page, clamping")
		q.Refetch()
		return
	}

	q.state = State{Status: StatusSuccess, Result: result, Meta: meta}
	queryFetchesTotal.WithLabelValues("success").Inc()
	q.settle()
}

// settle publishes the final state of a fetch. Called with q.mu held; it
// releases the lock.
func (q *ListQuery) settle() {
	q.cancel = nil
	close(q.settled)
	state, listeners := q.state, q.snapshotListeners()
	q.mu.Unlock()
	notify(listeners, state)
}

// Wait blocks until no fetch is in flight and returns the settled state.
func (q *ListQuery) Wait(ctx context.Context) (State, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return State{}, ErrClosed
		}
		if !q.state.Loading() {
			state := q.state
			q.mu.Unlock()
			return state, nil
		}
		settled := q.settled
		q.mu.Unlock()

		select {
		case <-settled:
		case <-ctx.Done():
			return State{}, ctx.Err()
		}
	}
}

// Close cancels the fetch in flight and stops listening for invalidations.
func (q *ListQuery) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.cancel != nil {
		q.cancel()
	}
	if q.state.Loading() {
		close(q.settled)
	}
	q.listeners = make(map[uint64]Listener)
	q.mu.Unlock()

	q.unsubscribe()
	q.wg.Wait()
}

func (q *ListQuery) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(q.listeners))
	for _, l := range q.listeners {
		out = append(out, l)
	}
	return out
}

func notify(listeners []Listener, s State) {
	for _, l := range listeners {
		l(s)
	}
}

func totalCount(r *todo.PageResult) int {
	if r == nil {
		return 0
	}
	return r.TotalCount
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
