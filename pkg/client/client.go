// Package client provides the REST client for the todos collection with a
// tag-invalidated query cache.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/todo-client/pkg/cache"
	"github.com/Sternrassler/todo-client/pkg/logging"
	"github.com/Sternrassler/todo-client/pkg/todo"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for client operations.
var (
	todoRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "todo_requests_total",
		Help: "Total todo API requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	todoRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "todo_request_duration_seconds",
		Help:    "Todo API request duration in seconds by endpoint",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"endpoint", "method"})

	todoErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "todo_errors_total",
		Help: "Total todo API errors by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is where json-server listens in development.
	DefaultBaseURL = "http://localhost:3500"

	// TagTodos is the resource tag every cached list result carries.
	TagTodos = "Todos"

	// HeaderTotalCount carries the collection size across all pages.
	HeaderTotalCount = "X-Total-Count"

	// HeaderLink carries the server's pagination links.
	HeaderLink = "Link"

	// HeaderRequestID identifies a request in client and server logs.
	HeaderRequestID = "X-Request-ID"

	todosEndpoint = "/todos"
	itemEndpoint  = "/todos/:id"
)

// Client is the todos collection client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger

	// inflight de-duplicates identical list requests.
	inflight singleflight.Group

	// generation is bumped on every invalidation; list responses that started
	// under an older generation are returned but not cached.
	generation atomic.Uint64

	// storeMu orders cache writes against invalidations: fetchPage holds the
	// read lock from the generation check through Set, Invalidate holds the
	// write lock from the bump through the tag drop.
	storeMu sync.RWMutex
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the REST server (REQUIRED)
	BaseURL string

	// UserAgent header sent with every request
	UserAgent string

	// Timeout per HTTP request
	Timeout time.Duration

	// CacheTTL bounds how long an unused list result stays cached.
	// 0 keeps results until invalidated.
	CacheTTL time.Duration

	// Redis shares the cache between processes. nil keeps it in memory.
	Redis *redis.Client

	// Logger overrides the global zerolog logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "todo-client/0.1.0",
		Timeout:   10 * time.Second,
		CacheTTL:  cache.DefaultTTL,
	}
}

// New creates a new todos client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	if cfg.CacheTTL < 0 {
		return nil, fmt.Errorf("cache ttl must be >= 0 (got %s)", cfg.CacheTTL)
	}

	logger := logging.NewLogger(logging.ComponentClient)
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", logging.ComponentClient).Logger()
	}

	var store cache.Store = cache.NewMemoryStore()
	if cfg.Redis != nil {
		store = cache.NewRedisStore(cfg.Redis)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		cache:   cache.NewManager(store, logger),
		config:  cfg,
		logger:  logger,
	}, nil
}

// ListTodos returns one page of todos, newest first. Results are served from
// the cache until a mutation invalidates them or they expire.
func (c *Client) ListTodos(ctx context.Context, page, limit int) (*todo.PageResult, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1 (got %d)", ErrInvalidArgument, page)
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be > 0 (got %d)", ErrInvalidArgument, limit)
	}

	key := ListKey(page, limit)

	cachedEntry, err := c.cache.Get(ctx, key)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
	}
	if cachedEntry != nil {
		result, err := decodePage(cachedEntry.Data, cachedEntry.Headers)
		if err == nil {
			c.logger.Debug().
				Int("page", page).
				Int("limit", limit).
				Bool("cache_hit", true).
				Msg("List served from cache")
			return result, nil
		}
		// A corrupt entry is dropped and refetched
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Discarding unreadable cache entry")
		_ = c.cache.Delete(ctx, key)
	}

	gen := c.generation.Load()
	flightKey := fmt.Sprintf("%s#%d", key.String(), gen)

	v, err, shared := c.inflight.Do(flightKey, func() (interface{}, error) {
		return c.fetchPage(ctx, key, gen)
	})
	if err != nil && shared && ctx.Err() == nil && isContextError(err) {
		// The caller that started the shared request went away or ran out of time; fetch on our own context
		c.logger.Debug().Str("key", key.String()).Msg("Shared list request cancelled, retrying")
		v, err, shared = c.inflight.Do(flightKey, func() (interface{}, error) {
			return c.fetchPage(ctx, key, gen)
		})
	}
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug().Str("key", key.String()).Msg("Joined in-flight list request")
	}

	return clonePage(v.(*todo.PageResult)), nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// fetchPage performs the list request and caches a well-formed response.
func (c *Client) fetchPage(ctx context.Context, key cache.CacheKey, gen uint64) (*todo.PageResult, error) {
	u := c.endpointURL(todosEndpoint)
	u.RawQuery = key.QueryParams.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.do(req, todosEndpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	entry, err := cache.ResponseToEntry(resp, c.config.CacheTTL, TagTodos)
	if err != nil {
		return nil, c.failure(http.MethodGet, todosEndpoint, resp.StatusCode, ErrorClassNetwork, "read body", err)
	}

	result, err := decodePage(entry.Data, entry.Headers)
	if err != nil {
		return nil, c.failure(http.MethodGet, todosEndpoint, resp.StatusCode, ErrorClassParse, "", err)
	}

	c.storeMu.RLock()
	defer c.storeMu.RUnlock()

	if c.generation.Load() != gen {
		c.logger.Debug().
			Str("key", key.String()).
			Msg("Invalidated while in flight - not caching")
		return result, nil
	}

	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache response")
	}

	return result, nil
}

// AddTodo creates a todo. On success all cached list results are invalidated.
func (c *Client) AddTodo(ctx context.Context, item todo.NewTodo) error {
	return c.mutate(ctx, http.MethodPost, todosEndpoint, c.endpointURL(todosEndpoint), item)
}

// UpdateTodo sends a partial update. patch.ID is mandatory.
func (c *Client) UpdateTodo(ctx context.Context, patch todo.Patch) error {
	if err := patch.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return c.mutate(ctx, http.MethodPatch, itemEndpoint, c.itemURL(patch.ID), patch)
}

// DeleteTodo permanently removes a todo.
func (c *Client) DeleteTodo(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: %w (got %d)", ErrInvalidArgument, todo.ErrMissingID, id)
	}
	body := struct {
		ID int `json:"id"`
	}{ID: id}
	return c.mutate(ctx, http.MethodDelete, itemEndpoint, c.itemURL(id), body)
}

// Invalidate drops every cached list result so the next ListTodos refetches.
func (c *Client) Invalidate(ctx context.Context) error {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	c.generation.Add(1)
	if _, err := c.cache.Invalidate(ctx, TagTodos); err != nil {
		return fmt.Errorf("invalidate %s: %w", TagTodos, err)
	}
	return nil
}

// mutate sends a JSON body and invalidates the list cache on success only.
func (c *Client) mutate(ctx context.Context, method, endpoint string, u *url.URL, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req, endpoint)
	if err != nil {
		return err
	}
	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return c.Invalidate(ctx)
}

// do executes a request and turns transport failures and non-2xx statuses into
// RequestErrors. The caller owns the body of a successful response.
func (c *Client) do(req *http.Request, endpoint string) (*http.Response, error) {
	startTime := time.Now()
	defer func() {
		todoRequestDuration.WithLabelValues(endpoint, req.Method).Observe(time.Since(startTime).Seconds())
	}()

	requestID := ulid.Make().String()
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	logger := c.logger.With().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Str("request_id", requestID).
		Logger()

	logger.Debug().Str("url", req.URL.String()).Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		todoRequestsTotal.WithLabelValues(endpoint, req.Method, "network_error").Inc()
		if errors.Is(err, context.Canceled) {
			logger.Debug().Err(err).Msg("HTTP request cancelled")
		} else {
			logger.Error().Err(err).Msg("HTTP request failed")
		}
		return nil, c.failure(req.Method, endpoint, 0, ErrorClassNetwork, "", err)
	}

	status := strconv.Itoa(resp.StatusCode)
	todoRequestsTotal.WithLabelValues(endpoint, req.Method, status).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := readErrorMessage(resp)
		resp.Body.Close()

		logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(ErrorClassServer)).
			Msg("Request error")

		return nil, c.failure(req.Method, endpoint, resp.StatusCode, ErrorClassServer, msg, nil)
	}

	logger.Debug().Int("status", resp.StatusCode).Dur("duration", time.Since(startTime)).Msg("Request complete")
	return resp, nil
}

func (c *Client) failure(method, endpoint string, status int, class ErrorClass, msg string, err error) *RequestError {
	todoErrorsTotal.WithLabelValues(string(class)).Inc()
	return &RequestError{
		StatusCode: status,
		Class:      class,
		Method:     method,
		Endpoint:   endpoint,
		Message:    msg,
		Err:        err,
	}
}

func (c *Client) endpointURL(path string) *url.URL {
	return c.baseURL.JoinPath(path)
}

func (c *Client) itemURL(id int) *url.URL {
	return c.baseURL.JoinPath(todosEndpoint, strconv.Itoa(id))
}

// Cache returns the cache manager so consumers can subscribe to it.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// ListKey is the cache key of a list request. It matches the query string the
// client sends.
func ListKey(page, limit int) cache.CacheKey {
	return cache.CacheKey{
		Endpoint: todosEndpoint,
		QueryParams: url.Values{
			"_page":  []string{strconv.Itoa(page)},
			"_limit": []string{strconv.Itoa(limit)},
			"_sort":  []string{"id"},
			"_order": []string{"desc"},
		},
	}
}

// decodePage builds a PageResult from a list response body and headers.
func decodePage(body []byte, header http.Header) (*todo.PageResult, error) {
	total, err := ParseTotalCount(header)
	if err != nil {
		return nil, err
	}

	var items []todo.Todo
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode todos: %w", err)
	}
	if items == nil {
		items = []todo.Todo{}
	}

	return &todo.PageResult{
		Data:       items,
		TotalCount: total,
		HeaderLink: header.Get(HeaderLink),
	}, nil
}

// ParseTotalCount reads X-Total-Count. A missing, non-numeric or negative
// value is an error, never a silent zero.
func ParseTotalCount(header http.Header) (int, error) {
	raw := strings.TrimSpace(header.Get(HeaderTotalCount))
	if raw == "" {
		return 0, fmt.Errorf("%s header missing", HeaderTotalCount)
	}
	total, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s header %q: %w", HeaderTotalCount, raw, err)
	}
	if total < 0 {
		return 0, fmt.Errorf("%s header is negative (%d)", HeaderTotalCount, total)
	}
	return total, nil
}

// readErrorMessage extracts a short message from an error response.
func readErrorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		return resp.Status
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(body))
}

func clonePage(r *todo.PageResult) *todo.PageResult {
	cp := *r
	cp.Data = make([]todo.Todo, len(r.Data))
	copy(cp.Data, r.Data)
	return &cp
}
