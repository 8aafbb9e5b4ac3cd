package pagination

import (
	"errors"
	"fmt"
	"sync"
)

// Defaults for the todo list view.
const (
	DefaultPage  = 1
	DefaultLimit = 4
	MinPage      = 1
	MinLimit     = 1
)

// Validation errors.
var (
	ErrInvalidPage  = errors.New("page must be >= 1")
	ErrInvalidLimit = errors.New("limit must be > 0")
)

// PageCount returns ceil(totalCount / limit). It is 0 for an empty collection
// and for non-positive inputs.
func PageCount(totalCount, limit int) int {
	if totalCount <= 0 || limit <= 0 {
		return 0
	}
	pages := totalCount / limit
	if totalCount%limit > 0 {
		pages++
	}
	return pages
}

// PageList returns the navigable pages 1..pageCount, empty when pageCount <= 0.
func PageList(pageCount int) []int {
	if pageCount <= 0 {
		return []int{}
	}
	pages := make([]int, pageCount)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}

// Controller holds the current page and page size. Safe for concurrent use.
type Controller struct {
	mu    sync.RWMutex
	page  int
	limit int
}

// NewController returns a controller on page 1 with 4 items per page.
func NewController() *Controller {
	return &Controller{page: DefaultPage, limit: DefaultLimit}
}

// NewControllerWith returns a controller with explicit state.
func NewControllerWith(page, limit int) (*Controller, error) {
	c := NewController()
	if err := c.SetLimit(limit); err != nil {
		return nil, err
	}
	if err := c.SetPage(page); err != nil {
		return nil, err
	}
	return c, nil
}

// Page returns the current page.
func (c *Controller) Page() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.page
}

// Limit returns the page size.
func (c *Controller) Limit() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limit
}

// Params returns page and limit read together.
//
//nolint:nonamedreturns // Named returns document the order.
func (c *Controller) Params() (page, limit int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.page, c.limit
}

// SetPage moves to page. It does not check the upper bound; the page count is
// only known after a fetch.
func (c *Controller) SetPage(page int) error {
	if page < MinPage {
		return fmt.Errorf("%w (got %d)", ErrInvalidPage, page)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = page
	return nil
}

// SetLimit changes the page size. The current page is kept.
func (c *Controller) SetLimit(limit int) error {
	if limit < MinLimit {
		return fmt.Errorf("%w (got %d)", ErrInvalidLimit, limit)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = limit
	return nil
}

// GoToFirst moves to page 1.
func (c *Controller) GoToFirst() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = MinPage
}

// GoToLast moves to pageCount, or to page 1 when there are no pages.
func (c *Controller) GoToLast(pageCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pageCount < MinPage {
		c.page = MinPage
		return
	}
	c.page = pageCount
}

// FirstDisabled reports whether the "first" control is disabled.
func (c *Controller) FirstDisabled() bool {
	return c.Page() == MinPage
}

// LastDisabled reports whether the "last" control is disabled.
func (c *Controller) LastDisabled(pageCount int) bool {
	return c.Page() == pageCount
}

// Clamp moves the page down to pageCount when it lies beyond the last page.
// It returns true when the page changed. An empty collection leaves the page
// untouched.
func (c *Controller) Clamp(pageCount int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pageCount < MinPage || c.page <= pageCount {
		return false
	}
	c.page = pageCount
	return true
}

// Meta derives navigation state for totalCount items.
func (c *Controller) Meta(totalCount int) Meta {
	page, limit := c.Params()
	return NewMeta(page, limit, totalCount)
}
