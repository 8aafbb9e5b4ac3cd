// Package pagination derives page state for the paginated todo list.
//
// The server reports the collection size in X-Total-Count; everything else is
// derived here:
//
//	ctrl := pagination.NewController() // page 1, limit 4
//	result, err := client.ListTodos(ctx, ctrl.Page(), ctrl.Limit())
//	meta := ctrl.Meta(result.TotalCount)
//	// meta.Pages == [1 2 3] for 10 items
//	// meta.FirstDisabled == true on page 1
//
// The controller never moves the page on its own when the page count shrinks;
// callers that want that call Clamp.
//
// BatchFetcher reads every page through a bounded worker pool:
//
//	fetcher := pagination.NewBatchFetcher(client, pagination.DefaultConfig())
//	all, err := fetcher.FetchAll(ctx, 50)
//
// The batch fetcher:
//   - Fetches the first page to learn the total count
//   - Spawns a worker pool (default 4 workers)
//   - Distributes remaining pages across workers
//   - Returns items in page order, or partial data with an error
package pagination
