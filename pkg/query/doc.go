// Package query keeps one page of the todo list in sync with the server.
//
// A ListQuery combines a pagination controller with the client's tag
// invalidated cache. It fetches the current page, publishes state changes to
// subscribers and refetches after any mutation invalidates the Todos tag:
//
//	q := query.New(c, pagination.NewController())
//	defer q.Close()
//	q.Subscribe(func(s query.State) { render(s) })
//	q.Refetch()
//
// Changing the page or the limit cancels the request in flight; a response
// from a superseded request is dropped.
package query
