package pagination

// Meta is the navigation state of one rendered page.
type Meta struct {
	CurrentPage   int   `json:"current_page"   yaml:"current_page"`
	PageSize      int   `json:"page_size"      yaml:"page_size"`
	TotalPages    int   `json:"total_pages"    yaml:"total_pages"`
	TotalItems    int   `json:"total_items"    yaml:"total_items"`
	Pages         []int `json:"pages"          yaml:"pages"`
	HasPrevious   bool  `json:"has_previous"   yaml:"has_previous"`
	HasNext       bool  `json:"has_next"       yaml:"has_next"`
	FirstDisabled bool  `json:"first_disabled" yaml:"first_disabled"`
	LastDisabled  bool  `json:"last_disabled"  yaml:"last_disabled"`
}

// NewMeta creates navigation metadata from page state and total count.
func NewMeta(page, limit, totalCount int) Meta {
	totalPages := PageCount(totalCount, limit)
	return Meta{
		CurrentPage:   page,
		PageSize:      limit,
		TotalPages:    totalPages,
		TotalItems:    totalCount,
		Pages:         PageList(totalPages),
		HasPrevious:   page > MinPage,
		HasNext:       page < totalPages,
		FirstDisabled: page == MinPage,
		LastDisabled:  page == totalPages,
	}
}

// OutOfRange reports whether the current page lies past the last page of a
// non-empty collection.
func (m Meta) OutOfRange() bool {
	return m.TotalPages > 0 && m.CurrentPage > m.TotalPages
}
