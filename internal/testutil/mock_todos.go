// Package testutil provides testing utilities for the todo client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/todo-client/internal/jsonserver"
	"github.com/Sternrassler/todo-client/pkg/todo"
)

// MockResponse defines a canned response that replaces the collection's own.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockTodoServer is a json-server compatible test server with request
// tracking and failure injection.
type MockTodoServer struct {
	server  *httptest.Server
	backend *jsonserver.Server

	mu        sync.RWMutex
	overrides map[string]MockResponse // "METHOD" -> response
	dropTotal bool
	delay     time.Duration

	// Tracking
	requestCount      map[string]int
	lastRequestHeader http.Header
	lastRequestURL    string
}

// NewMockTodoServer creates a server seeded with items.
func NewMockTodoServer(seed []todo.Todo) *MockTodoServer {
	mock := &MockTodoServer{
		backend:      jsonserver.New(seed, zerolog.Nop()),
		overrides:    make(map[string]MockResponse),
		requestCount: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount[r.Method]++
		mock.lastRequestHeader = r.Header.Clone()
		mock.lastRequestURL = r.URL.String()
		override, hasOverride := mock.overrides[r.Method]
		dropTotal := mock.dropTotal
		delay := mock.delay
		mock.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if hasOverride {
			writeMockResponse(w, r, override)
			return
		}

		if dropTotal {
			mock.backend.ServeHTTP(dropHeaderWriter{ResponseWriter: w, header: "X-Total-Count"}, r)
			return
		}

		mock.backend.ServeHTTP(w, r)
	}))

	return mock
}

// SeedTodos returns n todos with ids 1..n owned by user 1.
func SeedTodos(n int) []todo.Todo {
	items := make([]todo.Todo, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, todo.Todo{
			ID:     i,
			UserID: 1,
			Title:  fmt.Sprintf("todo %d", i),
		})
	}
	return items
}

// URL returns the mock server URL.
func (m *MockTodoServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockTodoServer) Close() {
	m.server.Close()
}

// Backend exposes the in-memory collection.
func (m *MockTodoServer) Backend() *jsonserver.Server {
	return m.backend
}

// Reset clears tracking counters and failure injection.
func (m *MockTodoServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = make(map[string]int)
	m.overrides = make(map[string]MockResponse)
	m.lastRequestHeader = nil
	m.lastRequestURL = ""
	m.dropTotal = false
	m.delay = 0
}

// SetResponse replaces every response for method with resp.
func (m *MockTodoServer) SetResponse(method string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[method] = resp
}

// ClearResponse restores the collection's own responses for method.
func (m *MockTodoServer) ClearResponse(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, method)
}

// DropTotalCount removes X-Total-Count from list responses.
func (m *MockTodoServer) DropTotalCount(drop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropTotal = drop
}

// SetDelay delays every response.
func (m *MockTodoServer) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// GetRequestCount returns the number of requests made with method.
func (m *MockTodoServer) GetRequestCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount[method]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockTodoServer) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// LastRequestURL returns the path and query of the most recent request.
func (m *MockTodoServer) LastRequestURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestURL
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 response with json-server's empty body.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

func writeMockResponse(w http.ResponseWriter, r *http.Request, resp MockResponse) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// dropHeaderWriter deletes one header right before the status line is sent.
type dropHeaderWriter struct {
	http.ResponseWriter
	header string
}

func (d dropHeaderWriter) WriteHeader(status int) {
	d.ResponseWriter.Header().Del(d.header)
	d.ResponseWriter.WriteHeader(status)
}
