package models

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination is the list metadata sent next to paged results.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination clamps page inputs the same way repositories do.
func NewPagination(page, size, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return &Pagination{Page: page, PageSize: size, TotalCount: total, TotalPages: (total + size - 1) / size}
}
