// Package todo defines the todo item resource as served by the REST endpoint.
package todo

import (
	"errors"
	"fmt"
)

// ErrMissingID is returned when an operation needs a server-assigned id.
var ErrMissingID = errors.New("todo id is required")

// Todo is a todo item as stored by the server.
// The client only ever holds a transient copy.
type Todo struct {
	ID        int    `json:"id"        yaml:"id"`
	UserID    int    `json:"userId"    yaml:"userId"`
	Title     string `json:"title"     yaml:"title"`
	Completed bool   `json:"completed" yaml:"completed"`
}

// NewTodo is the body of a create request. The server assigns the id.
type NewTodo struct {
	UserID    int    `json:"userId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Patch is a partial update. ID is mandatory; nil fields are left untouched
// by the server.
type Patch struct {
	ID        int     `json:"id"`
	UserID    *int    `json:"userId,omitempty"`
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// Validate checks that the patch addresses an item.
func (p Patch) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("%w (got %d)", ErrMissingID, p.ID)
	}
	return nil
}

// Toggle returns a patch flipping the completed flag of t.
func (t Todo) Toggle() Patch {
	completed := !t.Completed
	return Patch{ID: t.ID, Completed: &completed}
}

// Rename returns a patch replacing the title of t.
func (t Todo) Rename(title string) Patch {
	return Patch{ID: t.ID, Title: &title}
}

// Apply returns a copy of t with the patch fields applied.
func (t Todo) Apply(p Patch) Todo {
	if p.UserID != nil {
		t.UserID = *p.UserID
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

// PageResult is one page of the collection plus the server's pagination
// metadata. It is replaced wholesale on every fetch.
type PageResult struct {
	// Data holds the items of the requested page in server order.
	Data []Todo `json:"data"`

	// TotalCount is the collection size across all pages (X-Total-Count).
	TotalCount int `json:"totalCount"`

	// HeaderLink is the raw Link header. It is not parsed.
	HeaderLink string `json:"headerLink"`
}

// Contains reports whether the page holds an item with the given id.
func (r *PageResult) Contains(id int) bool {
	if r == nil {
		return false
	}
	for _, t := range r.Data {
		if t.ID == id {
			return true
		}
	}
	return false
}
