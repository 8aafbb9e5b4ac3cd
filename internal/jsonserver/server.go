// Package jsonserver serves an in-memory todos collection with the query and
// header conventions of json-server: _page, _limit, _sort and _order query
// parameters, X-Total-Count and Link response headers.
package jsonserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Sternrassler/todo-client/pkg/logging"
	"github.com/Sternrassler/todo-client/pkg/todo"
	"github.com/rs/zerolog"
)

// defaultLimit is json-server's page size when _page is given without _limit.
const defaultLimit = 10

// Server is an http.Handler over an in-memory todo collection.
type Server struct {
	mu     sync.RWMutex
	items  []todo.Todo
	nextID int
	logger zerolog.Logger
	mux    *http.ServeMux
}

// New creates a server seeded with items. Ids of the seed are kept; new items
// get max(id)+1.
func New(seed []todo.Todo, logger zerolog.Logger) *Server {
	s := &Server{
		logger: logger.With().Str("component", logging.ComponentJSONServer).Logger(),
		mux:    http.NewServeMux(),
	}
	s.Reset(seed)

	s.mux.HandleFunc("GET /todos", s.handleList)
	s.mux.HandleFunc("POST /todos", s.handleCreate)
	s.mux.HandleFunc("GET /todos/{id}", s.handleGet)
	s.mux.HandleFunc("PATCH /todos/{id}", s.handlePatch)
	s.mux.HandleFunc("DELETE /todos/{id}", s.handleDelete)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Expose-Headers", "X-Total-Count, Link")
	s.mux.ServeHTTP(w, r)
}

// Reset replaces the collection.
func (s *Server) Reset(items []todo.Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append([]todo.Todo(nil), items...)
	s.nextID = 1
	for _, it := range s.items {
		if it.ID >= s.nextID {
			s.nextID = it.ID + 1
		}
	}
}

// Items returns a snapshot of the collection in insertion order.
func (s *Server) Items() []todo.Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]todo.Todo(nil), s.items...)
}

// Len returns the collection size.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.RLock()
	items := append([]todo.Todo(nil), s.items...)
	s.mu.RUnlock()

	if field := q.Get("_sort"); field != "" {
		if err := sortTodos(items, field, q.Get("_order")); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}

	total := len(items)
	w.Header().Set("X-Total-Count", strconv.Itoa(total))

	page, limit, paged, err := pageParams(q)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if paged {
		start, end := pageWindow(page, limit, total)
		items = items[start:end]

		if link := linkHeader(r, page, limit, total); link != "" {
			w.Header().Set("Link", link)
		}
	} else if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, s.items[idx])
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body todo.NewTodo
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}

	s.mu.Lock()
	item := todo.Todo{
		ID:        s.nextID,
		UserID:    body.UserID,
		Title:     body.Title,
		Completed: body.Completed,
	}
	s.nextID++
	s.items = append(s.items, item)
	s.mu.Unlock()

	s.logger.Debug().Int("id", item.ID).Msg("Todo created")
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var patch todo.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	// The path id wins over any id in the body
	patch.ID = id
	s.items[idx] = s.items[idx].Apply(patch)
	item := s.items[idx]
	s.mu.Unlock()

	s.logger.Debug().Int("id", id).Msg("Todo updated")
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.mu.Unlock()

	s.logger.Debug().Int("id", id).Msg("Todo deleted")
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) indexLocked(id int) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return 0, false
	}
	return id, true
}

// pageParams reads _page and _limit. paged reports whether _page was given.
func pageParams(q url.Values) (page, limit int, paged bool, err error) {
	if raw := q.Get("_limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, false, fmt.Errorf("_limit must be a positive integer")
		}
	}

	raw := q.Get("_page")
	if raw == "" {
		return 0, limit, false, nil
	}
	page, err = strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, 0, false, fmt.Errorf("_page must be a positive integer")
	}
	if limit == 0 {
		limit = defaultLimit
	}
	return page, limit, true, nil
}

func sortTodos(items []todo.Todo, field, order string) error {
	var less func(a, b todo.Todo) bool
	switch field {
	case "id":
		less = func(a, b todo.Todo) bool { return a.ID < b.ID }
	case "userId":
		less = func(a, b todo.Todo) bool { return a.UserID < b.UserID }
	case "title":
		less = func(a, b todo.Todo) bool { return a.Title < b.Title }
	case "completed":
		less = func(a, b todo.Todo) bool { return !a.Completed && b.Completed }
	default:
		return fmt.Errorf("unknown sort field %q", field)
	}

	desc := strings.EqualFold(order, "desc")
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
	return nil
}

// linkHeader builds first/prev/next/last relations the way json-server does.
// pageWindow returns the slice bounds of page within total items. Pages past
// the end yield an empty window; the bounds never overflow.
func pageWindow(page, limit, total int) (start, end int) {
	if total == 0 || page-1 > (total-1)/limit {
		return total, total
	}
	start = (page - 1) * limit
	return start, start + min(limit, total-start)
}

func linkHeader(r *http.Request, page, limit, total int) string {
	last := 1
	if total > 0 {
		last = (total-1)/limit + 1
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	base := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path}

	link := func(p int, rel string) string {
		q := r.URL.Query()
		q.Set("_page", strconv.Itoa(p))
		u := base
		u.RawQuery = q.Encode()
		return fmt.Sprintf("<%s>; rel=%q", u.String(), rel)
	}

	rels := []string{link(1, "first")}
	if page > 1 {
		rels = append(rels, link(page-1, "prev"))
	}
	if page < last {
		rels = append(rels, link(page+1, "next"))
	}
	rels = append(rels, link(last, "last"))

	return strings.Join(rels, ", ")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
