// Command todo-server serves a json-server compatible todos API for
// development and tests.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/todo-client/internal/jsonserver"
	"github.com/Sternrassler/todo-client/pkg/logging"
	"github.com/Sternrassler/todo-client/pkg/metrics"
	"github.com/Sternrassler/todo-client/pkg/todo"
)

var serverRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "todo_server_requests_total",
		Help: "Total requests served by the mock todos API by method and status",
	},
	[]string{"method", "status"},
)

func main() {
	// Configuration from environment
	port := getEnv("PORT", "3500")
	seedFile := getEnv("SEED_FILE", "")
	seedCount, err := strconv.Atoi(getEnv("SEED", "20"))
	if err != nil || seedCount < 0 {
		fmt.Fprintf(os.Stderr, "invalid SEED %q\n", os.Getenv("SEED"))
		os.Exit(1)
	}
	level, err := logging.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.Pretty = getEnv("LOG_PRETTY", "") != "" || logging.IsTerminal(os.Stderr)
	logging.Setup(logCfg)
	logger := logging.NewLogger(logging.ComponentServer)

	seed := generateSeed(seedCount)
	if seedFile != "" {
		seed, err = loadSeed(seedFile)
		if err != nil {
			logger.Fatal().Err(err).Str("file", seedFile).Msg("Failed to load seed")
		}
	}

	backend := jsonserver.New(seed, logger)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newMux(backend, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Int("todos", backend.Len()).
			Msg("Starting todo server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}
}

func newMux(backend *jsonserver.Server, logger zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())

	api := instrument(backend, logger)
	mux.Handle("/todos", api)
	mux.Handle("/todos/", api)
	return mux
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument logs and counts every API request.
func instrument(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		serverRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.RequestURI()).
			Int("status", rec.status).
			Str("request_id", r.Header.Get("X-Request-ID")).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

// generateSeed returns n todos with ids 1..n, every third completed.
func generateSeed(n int) []todo.Todo {
	items := make([]todo.Todo, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, todo.Todo{
			ID:        i,
			UserID:    1 + (i-1)/10,
			Title:     fmt.Sprintf("Todo item %d", i),
			Completed: i%3 == 0,
		})
	}
	return items
}

// loadSeed reads a json-server db file ({"todos": [...]}) or a bare array.
func loadSeed(path string) ([]todo.Todo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}

	var db struct {
		Todos []todo.Todo `json:"todos"`
	}
	if err := json.Unmarshal(data, &db); err == nil {
		return db.Todos, nil
	}

	var items []todo.Todo
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return items, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
