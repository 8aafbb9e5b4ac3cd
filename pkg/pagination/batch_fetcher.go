package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/todo-client/pkg/todo"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// Buffer size for channels (default: estimated total pages)
	BufferSize int
}

// DefaultConfig returns a configuration sized for a local json-server.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        10 * time.Second,
		BufferSize:     100,
	}
}

// PageFetcher fetches a single page of the todo collection.
// *client.Client implements it.
type PageFetcher interface {
	ListTodos(ctx context.Context, page, limit int) (*todo.PageResult, error)
}

// PageFetch represents the result of fetching a single page
type PageFetch struct {
	PageNumber int
	Items      []todo.Todo
	Error      error
}

// BatchFetcher handles parallel fetching of multiple pages
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll fetches every page of the collection with limit items per page.
// Items are returned in page order. On a worker failure the pages fetched so
// far are returned together with the error.
func (bf *BatchFetcher) FetchAll(ctx context.Context, limit int) ([]todo.Todo, error) {
	pages, totalPages, err := bf.FetchPages(ctx, limit)
	if pages == nil {
		return nil, err
	}
	return flatten(pages, totalPages), err
}

// FetchPages fetches every page in parallel using a worker pool.
// Returns map of pageNumber -> items for successful pages and the page count
// reported by the first page.
func (bf *BatchFetcher) FetchPages(ctx context.Context, limit int) (map[int][]todo.Todo, int, error) {
	start := time.Now()

	// Fetch first page to get total count
	first, err := bf.fetcher.ListTodos(ctx, 1, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch first page: %w", err)
	}
	totalPages := PageCount(first.TotalCount, limit)

	log.Info().
		Int("limit", limit).
		Int("total_items", first.TotalCount).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	results := map[int][]todo.Todo{1: first.Data}

	// Single page optimization
	if totalPages <= 1 {
		log.Info().
			Int("pages", 1).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return results, totalPages, nil
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pageQueue := make(chan int, bf.config.BufferSize)
	pageResults := make(chan PageFetch, bf.config.BufferSize)
	errs := make(chan error, bf.config.MaxConcurrency)

	// Fill page queue (skip page 1, already fetched)
	go func() {
		defer close(pageQueue)
		for page := 2; page <= totalPages; page++ {
			select {
			case pageQueue <- page:
			case <-workCtx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < bf.config.MaxConcurrency; i++ {
		wg.Add(1)
		go bf.worker(workCtx, cancel, limit, pageQueue, pageResults, errs, &wg, i)
	}

	go func() {
		wg.Wait()
		close(pageResults)
		close(errs)
	}()

	fetchedPages := 1
	for result := range pageResults {
		results[result.PageNumber] = result.Items
		fetchedPages++

		// Progress logging every 25 pages
		if fetchedPages%25 == 0 {
			log.Info().
				Int("fetched", fetchedPages).
				Int("total", totalPages).
				Float64("progress_pct", float64(fetchedPages)/float64(totalPages)*100).
				Msg("Fetch progress")
		}
	}

	if err := <-errs; err != nil {
		log.Warn().
			Err(err).
			Int("fetched_pages", fetchedPages).
			Int("total_pages", totalPages).
			Msg("Worker error - returning partial results")
		return results, totalPages, fmt.Errorf("worker error (partial data: %d/%d pages): %w", fetchedPages, totalPages, err)
	}
	if err := ctx.Err(); err != nil {
		return results, totalPages, fmt.Errorf("fetch cancelled (partial data: %d/%d pages): %w", fetchedPages, totalPages, err)
	}

	log.Info().
		Int("pages", fetchedPages).
		Int("total", totalPages).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return results, totalPages, nil
}

// worker processes pages from the queue. The first failure cancels the
// remaining work.
func (bf *BatchFetcher) worker(ctx context.Context, cancel context.CancelFunc, limit int, pageQueue <-chan int, results chan<- PageFetch, errs chan<- error, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		if ctx.Err() != nil {
			log.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		}

		pageCtx, pageCancel := context.WithTimeout(ctx, bf.config.Timeout)
		page, err := bf.fetcher.ListTodos(pageCtx, pageNum, limit)
		pageCancel()

		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", pageNum).
				Msg("Page fetch failed")

			select {
			case errs <- fmt.Errorf("page %d: %w", pageNum, err):
			default:
			}
			cancel()
			return
		}

		select {
		case results <- PageFetch{PageNumber: pageNum, Items: page.Data}:
		case <-ctx.Done():
			return
		}

		pagesProcessed++
	}

	if pagesProcessed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}

func flatten(pages map[int][]todo.Todo, totalPages int) []todo.Todo {
	items := []todo.Todo{}
	for page := 1; page <= max(totalPages, 1); page++ {
		items = append(items, pages[page]...)
	}
	return items
}
