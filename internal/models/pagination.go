package models

// DefaultPageSize is applied to list endpoints when per_page is absent.
const DefaultPageSize = 10

// MaxPageSize caps per_page on list endpoints.
const MaxPageSize = 100

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page     int `json:"page"`
	PerPage  int `json:"per_page"`
	Total    int `json:"total"`
	LastPage int `json:"last_page"`
}

// NormalizePage clamps page and size to sane values.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// NewPagination builds pagination metadata for the given window.
func NewPagination(page, size, total int) *Pagination {
	page, size = NormalizePage(page, size)
	last := 1
	if total > 0 {
		last = (total + size - 1) / size
	}
	return &Pagination{Page: page, PerPage: size, Total: total, LastPage: last}
}
