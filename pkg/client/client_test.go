package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/todo-client/internal/testutil"
	"github.com/Sternrassler/todo-client/pkg/cache"
	"github.com/Sternrassler/todo-client/pkg/todo"
	"github.com/rs/zerolog"
)

// newTestClient creates a client against a mock server seeded with n todos.
func newTestClient(t *testing.T, n int) (*Client, *testutil.MockTodoServer) {
	t.Helper()

	mock := testutil.NewMockTodoServer(testutil.SeedTodos(n))
	t.Cleanup(mock.Close)

	logger := zerolog.Nop()
	cfg := DefaultConfig(mock.URL())
	cfg.Logger = &logger

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, mock
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("http://localhost:3500"),
		},
		{
			name:        "empty base url",
			config:      Config{},
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name:        "unsupported scheme",
			config:      Config{BaseURL: "ftp://localhost:3500"},
			expectError: true,
			errorMsg:    `base url must be http or https (got "ftp://localhost:3500")`,
		},
		{
			name:        "missing host",
			config:      Config{BaseURL: "http://"},
			expectError: true,
			errorMsg:    `base url must include a host (got "http://")`,
		},
		{
			name:        "negative timeout",
			config:      Config{BaseURL: "http://localhost", Timeout: -time.Second},
			expectError: true,
			errorMsg:    "timeout must be >= 0 (got -1s)",
		},
		{
			name:        "negative cache ttl",
			config:      Config{BaseURL: "http://localhost", CacheTTL: -time.Second},
			expectError: true,
			errorMsg:    "cache ttl must be >= 0 (got -1s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(DefaultBaseURL)

	if cfg.BaseURL != "http://localhost:3500" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		t.Error("UserAgent should be set")
	}
	if cfg.CacheTTL != cache.DefaultTTL {
		t.Errorf("CacheTTL = %v, want %v", cfg.CacheTTL, cache.DefaultTTL)
	}
	if cfg.Timeout <= 0 {
		t.Errorf("Timeout = %v, should be > 0", cfg.Timeout)
	}
}

func TestListTodos_FirstPage(t *testing.T) {
	c, mock := newTestClient(t, 10)

	result, err := c.ListTodos(context.Background(), 1, 4)
	if err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}

	if len(result.Data) != 4 {
		t.Fatalf("len(Data) = %d, want 4", len(result.Data))
	}
	if result.TotalCount != 10 {
		t.Errorf("TotalCount = %d, want 10", result.TotalCount)
	}
	if result.Data[0].ID != 10 || result.Data[3].ID != 7 {
		t.Errorf("Data ids = %d..%d, want 10..7 (id desc)", result.Data[0].ID, result.Data[3].ID)
	}
	if !strings.Contains(result.HeaderLink, `rel="next"`) {
		t.Errorf("HeaderLink = %q, want next relation", result.HeaderLink)
	}

	requestURL := mock.LastRequestURL()
	for _, want := range []string{"_page=1", "_limit=4", "_sort=id", "_order=desc"} {
		if !strings.Contains(requestURL, want) {
			t.Errorf("request %q missing %s", requestURL, want)
		}
	}
}

func TestListTodos_EmptyCollection(t *testing.T) {
	c, _ := newTestClient(t, 0)

	result, err := c.ListTodos(context.Background(), 1, 4)
	if err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}
	if result.TotalCount != 0 || len(result.Data) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
	if result.Data == nil {
		t.Error("Data should be an empty slice, not nil")
	}
}

func TestListTodos_InvalidArguments(t *testing.T) {
	c, mock := newTestClient(t, 3)

	for _, args := range [][2]int{{0, 4}, {-1, 4}, {1, 0}, {1, -2}} {
		_, err := c.ListTodos(context.Background(), args[0], args[1])
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("ListTodos(%d, %d) error = %v, want ErrInvalidArgument", args[0], args[1], err)
		}
	}
	if got := mock.GetRequestCount(http.MethodGet); got != 0 {
		t.Errorf("GET requests = %d, want 0", got)
	}
}

func TestListTodos_ServedFromCache(t *testing.T) {
	c, mock := newTestClient(t, 10)
	ctx := context.Background()

	first, err := c.ListTodos(ctx, 1, 4)
	if err != nil {
		t.Fatalf("first ListTodos() error = %v", err)
	}
	second, err := c.ListTodos(ctx, 1, 4)
	if err != nil {
		t.Fatalf("second ListTodos() error = %v", err)
	}

	if got := mock.GetRequestCount(http.MethodGet); got != 1 {
		t.Errorf("GET requests = %d, want 1", got)
	}
	if second.TotalCount != first.TotalCount || len(second.Data) != len(first.Data) {
		t.Errorf("cached result %+v differs from %+v", second, first)
	}

	// Other parameters are a different query
	if _, err := c.ListTodos(ctx, 2, 4); err != nil {
		t.Fatalf("ListTodos(2, 4) error = %v", err)
	}
	if got := mock.GetRequestCount(http.MethodGet); got != 2 {
		t.Errorf("GET requests = %d, want 2", got)
	}
}

func TestListTodos_ResultsAreIndependent(t *testing.T) {
	c, _ := newTestClient(t, 4)
	ctx := context.Background()

	first, _ := c.ListTodos(ctx, 1, 4)
	first.Data[0].Title = "mutated by caller"

	second, err := c.ListTodos(ctx, 1, 4)
	if err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}
	if second.Data[0].Title == "mutated by caller" {
		t.Error("caller mutation leaked into the cache")
	}
}

func TestAddTodo_InvalidatesCache(t *testing.T) {
	c, mock := newTestClient(t, 10)
	ctx := context.Background()

	if _, err := c.ListTodos(ctx, 1, 4); err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}

	err := c.AddTodo(ctx, todo.NewTodo{UserID: 1, Title: "buy milk", Completed: false})
	if err != nil {
		t.Fatalf("AddTodo() error = %v", err)
	}

	result, err := c.ListTodos(ctx, 1, 4)
	if err != nil {
		t.Fatalf("ListTodos() after add error = %v", err)
	}

	if got := mock.GetRequestCount(http.MethodGet); got != 2 {
		t.Errorf("GET requests = %d, want 2 (cache must be invalidated)", got)
	}
	if result.TotalCount != 11 {
		t.Errorf("TotalCount = %d, want 11", result.TotalCount)
	}
	if result.Data[0].Title != "buy milk" {
		t.Errorf("newest item = %q, want %q", result.Data[0].Title, "buy milk")
	}
	if got := mock.GetRequestCount(http.MethodPost); got != 1 {
		t.Errorf("POST requests = %d, want 1", got)
	}
}

func TestUpdateTodo_PartialPatch(t *testing.T) {
	c, mock := newTestClient(t, 4)
	ctx := context.Background()

	if _, err := c.ListTodos(ctx, 1, 4); err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}

	done := true
	if err := c.UpdateTodo(ctx, todo.Patch{ID: 2, Completed: &done}); err != nil {
		t.Fatalf("UpdateTodo() error = %v", err)
	}

	result, err := c.ListTodos(ctx, 1, 4)
	if err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}

	var found bool
	for _, item := range result.Data {
		if item.ID == 2 {
			found = true
			if !item.Completed {
				t.Error("item 2 not completed after update")
			}
			if item.Title != "todo 2" {
				t.Errorf("title = %q, partial update must keep it", item.Title)
			}
		}
	}
	if !found {
		t.Error("item 2 missing")
	}
	if got := mock.GetRequestCount(http.MethodPatch); got != 1 {
		t.Errorf("PATCH requests = %d, want 1", got)
	}
}

func TestUpdateTodo_MissingID(t *testing.T) {
	c, mock := newTestClient(t, 4)

	title := "x"
	err := c.UpdateTodo(context.Background(), todo.Patch{Title: &title})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
	if !errors.Is(err, todo.ErrMissingID) {
		t.Errorf("error = %v, want ErrMissingID", err)
	}
	if got := mock.GetRequestCount(http.MethodPatch); got != 0 {
		t.Errorf("PATCH requests = %d, want 0", got)
	}
}

func TestDeleteTodo_RemovedFromNextList(t *testing.T) {
	c, _ := newTestClient(t, 10)
	ctx := context.Background()

	before, err := c.ListTodos(ctx, 2, 4)
	if err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}
	if !before.Contains(5) {
		t.Fatalf("page 2 should hold item 5: %+v", before.Data)
	}

	if err := c.DeleteTodo(ctx, 5); err != nil {
		t.Fatalf("DeleteTodo() error = %v", err)
	}

	after, err := c.ListTodos(ctx, 2, 4)
	if err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}
	if after.Contains(5) {
		t.Errorf("deleted item 5 still listed: %+v", after.Data)
	}
	if after.TotalCount != 9 {
		t.Errorf("TotalCount = %d, want 9", after.TotalCount)
	}
}

func TestDeleteTodo_InvalidID(t *testing.T) {
	c, _ := newTestClient(t, 1)

	if err := c.DeleteTodo(context.Background(), 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
}

func TestDeleteTodo_NotFound(t *testing.T) {
	c, _ := newTestClient(t, 1)

	err := c.DeleteTodo(context.Background(), 99)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want *RequestError", err)
	}
	if reqErr.StatusCode != http.StatusNotFound || reqErr.Class != ErrorClassServer {
		t.Errorf("RequestError = %+v, want 404 server", reqErr)
	}
}

func TestListTodos_MissingTotalCount(t *testing.T) {
	c, mock := newTestClient(t, 4)
	mock.DropTotalCount(true)

	result, err := c.ListTodos(context.Background(), 1, 4)
	if err == nil {
		t.Fatalf("expected parse error, got result %+v", result)
	}
	if !errors.Is(err, ErrParse) {
		t.Errorf("error = %v, want ErrParse", err)
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusOK {
		t.Errorf("RequestError = %+v, want status 200 parse error", reqErr)
	}

	// Nothing was cached: the next call goes to the server again
	mock.DropTotalCount(false)
	if _, err := c.ListTodos(context.Background(), 1, 4); err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}
	if got := mock.GetRequestCount(http.MethodGet); got != 2 {
		t.Errorf("GET requests = %d, want 2", got)
	}
}

func TestListTodos_NonNumericTotalCount(t *testing.T) {
	c, mock := newTestClient(t, 4)
	mock.SetResponse(http.MethodGet, testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `[]`,
		Headers:    map[string]string{"X-Total-Count": "NaN"},
	})

	_, err := c.ListTodos(context.Background(), 1, 4)
	if !errors.Is(err, ErrParse) {
		t.Errorf("error = %v, want ErrParse", err)
	}
}

func TestListTodos_InvalidBody(t *testing.T) {
	c, mock := newTestClient(t, 4)
	mock.SetResponse(http.MethodGet, testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"not": "an array"}`,
		Headers:    map[string]string{"X-Total-Count": "4"},
	})

	_, err := c.ListTodos(context.Background(), 1, 4)
	if !errors.Is(err, ErrParse) {
		t.Errorf("error = %v, want ErrParse", err)
	}
}

func TestListTodos_ServerError(t *testing.T) {
	c, mock := newTestClient(t, 4)
	mock.SetResponse(http.MethodGet, testutil.NewServerErrorResponse())

	_, err := c.ListTodos(context.Background(), 1, 4)
	if !errors.Is(err, ErrServer) {
		t.Fatalf("error = %v, want ErrServer", err)
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want *RequestError", err)
	}
	if reqErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", reqErr.StatusCode)
	}
	if reqErr.Message != "Internal server error" {
		t.Errorf("Message = %q", reqErr.Message)
	}
}

func TestListTodos_NetworkError(t *testing.T) {
	c, mock := newTestClient(t, 4)
	mock.Close()

	_, err := c.ListTodos(context.Background(), 1, 4)
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
}

func TestAddTodo_FailureKeepsCache(t *testing.T) {
	c, mock := newTestClient(t, 4)
	ctx := context.Background()

	if _, err := c.ListTodos(ctx, 1, 4); err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}

	mock.SetResponse(http.MethodPost, testutil.NewServerErrorResponse())
	if err := c.AddTodo(ctx, todo.NewTodo{Title: "fails"}); !errors.Is(err, ErrServer) {
		t.Fatalf("AddTodo() error = %v, want ErrServer", err)
	}

	if _, err := c.ListTodos(ctx, 1, 4); err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}
	if got := mock.GetRequestCount(http.MethodGet); got != 1 {
		t.Errorf("GET requests = %d, want 1 (failed mutation must not invalidate)", got)
	}
}

func TestDo_RequestHeaders(t *testing.T) {
	c, mock := newTestClient(t, 1)

	if _, err := c.ListTodos(context.Background(), 1, 4); err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}

	header := mock.LastRequestHeader()
	if got := header.Get("User-Agent"); got != "todo-client/0.1.0" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
	if got := header.Get(HeaderRequestID); len(got) != 26 {
		t.Errorf("X-Request-ID = %q, want a ULID", got)
	}
}

func TestListTodos_ConcurrentCallsShareRequest(t *testing.T) {
	c, mock := newTestClient(t, 8)
	mock.SetDelay(100 * time.Millisecond)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ListTodos(context.Background(), 1, 4)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("ListTodos() error = %v", err)
		}
	}
	if got := mock.GetRequestCount(http.MethodGet); got != 1 {
		t.Errorf("GET requests = %d, want 1", got)
	}
}

func TestListTodos_InvalidatedWhileInFlight(t *testing.T) {
	c, mock := newTestClient(t, 8)
	ctx := context.Background()
	mock.SetDelay(100 * time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := c.ListTodos(ctx, 1, 4)
		done <- err
	}()

	time.Sleep(30 * time.Millisecond)
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}

	// The stale response must not have been cached
	if _, err := c.ListTodos(ctx, 1, 4); err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}
	if got := mock.GetRequestCount(http.MethodGet); got != 2 {
		t.Errorf("GET requests = %d, want 2", got)
	}
}

// gatedStore blocks the first Set until release is closed.
type gatedStore struct {
	*cache.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedStore) Set(ctx context.Context, key string, entry *cache.CacheEntry) error {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.MemoryStore.Set(ctx, key, entry)
}

func TestListTodos_InvalidateDuringCacheWrite(t *testing.T) {
	c, _ := newTestClient(t, 8)
	ctx := context.Background()

	store := &gatedStore{
		MemoryStore: cache.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	c.cache = cache.NewManager(store, zerolog.Nop())

	listed := make(chan error, 1)
	go func() {
		_, err := c.ListTodos(ctx, 1, 4)
		listed <- err
	}()
	<-store.entered

	invalidated := make(chan error, 1)
	go func() {
		invalidated <- c.Invalidate(ctx)
	}()

	select {
	case err := <-invalidated:
		t.Fatalf("Invalidate() returned while a cache write was pending (err = %v)", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	if err := <-listed; err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}
	if err := <-invalidated; err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	if _, err := c.cache.Get(ctx, ListKey(1, 4)); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("cache Get() error = %v, want ErrCacheMiss after invalidation", err)
	}
}

func TestListTodos_JoinerSurvivesLeaderDeadline(t *testing.T) {
	c, mock := newTestClient(t, 8)
	mock.SetDelay(100 * time.Millisecond)

	leaderCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	leader := make(chan error, 1)
	go func() {
		_, err := c.ListTodos(leaderCtx, 1, 4)
		leader <- err
	}()
	time.Sleep(5 * time.Millisecond)

	result, err := c.ListTodos(context.Background(), 1, 4)
	if err != nil {
		t.Fatalf("ListTodos() joiner error = %v", err)
	}
	if len(result.Data) != 4 {
		t.Errorf("len(Data) = %d, want 4", len(result.Data))
	}

	if err := <-leader; !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("leader error = %v, want context.DeadlineExceeded", err)
	}
}

func TestListTodos_ContextCancelled(t *testing.T) {
	c, mock := newTestClient(t, 4)
	mock.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.ListTodos(ctx, 1, 4)
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want to wrap context.DeadlineExceeded", err)
	}
}

func TestCache_SubscriptionSeesInvalidation(t *testing.T) {
	c, _ := newTestClient(t, 4)
	ctx := context.Background()

	invalidated := make(chan cache.Event, 4)
	unsubscribe := c.Cache().SubscribeTag(TagTodos, func(ev cache.Event) {
		if ev.Type == cache.EventInvalidated {
			invalidated <- ev
		}
	})
	defer unsubscribe()

	if err := c.AddTodo(ctx, todo.NewTodo{Title: "watch me"}); err != nil {
		t.Fatalf("AddTodo() error = %v", err)
	}

	select {
	case ev := <-invalidated:
		if ev.Tag != TagTodos {
			t.Errorf("Tag = %q, want %q", ev.Tag, TagTodos)
		}
	case <-time.After(time.Second):
		t.Fatal("no invalidation event")
	}
}

func TestParseTotalCount(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int
		wantErr bool
	}{
		{name: "valid", value: "10", want: 10},
		{name: "zero", value: "0", want: 0},
		{name: "whitespace", value: " 7 ", want: 7},
		{name: "missing", value: "", wantErr: true},
		{name: "non-numeric", value: "ten", wantErr: true},
		{name: "negative", value: "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.value != "" {
				header.Set(HeaderTotalCount, tt.value)
			}
			got, err := ParseTotalCount(header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTotalCount() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTotalCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestListKey(t *testing.T) {
	got := ListKey(2, 4).String()
	want := "todo:todos:_limit=4:_order=desc:_page=2:_sort=id"
	if got != want {
		t.Errorf("ListKey(2, 4) = %q, want %q", got, want)
	}
}
