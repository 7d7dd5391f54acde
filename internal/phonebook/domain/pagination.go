package domain

import (
	"strconv"
	"strings"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 2
)

// PageRequest is a validated 1-based page number and page size. Page may be
// out of range; Paginate clamps it.
type PageRequest struct {
	Page int
	Size int
}

// ParsePageRequest parses raw page and page size inputs.
// An empty size defaults to DefaultPageSize; a size that is not an integer or
// is not positive is a validation error. An empty or non-integer page falls
// back to DefaultPage.
func ParsePageRequest(page, size string) (PageRequest, error) {
	req := PageRequest{Page: DefaultPage, Size: DefaultPageSize}

	if s := strings.TrimSpace(size); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return PageRequest{}, Validation("result_size", "'result_size' must be a valid integer.")
		}
		req.Size = n
	}
	if err := req.Validate(); err != nil {
		return PageRequest{}, err
	}

	if p := strings.TrimSpace(page); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			req.Page = n
		}
	}
	return req, nil
}

// Validate checks the page size.
func (r PageRequest) Validate() error {
	if r.Size <= 0 {
		return Validation("result_size", "'result_size' must be greater than 0.")
	}
	return nil
}

// TotalPages returns the number of pages needed for total items, never less than one.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// Paginate slices items into the requested page. A page number below 1 or
// beyond the last page resolves to the last page; an empty input yields an
// empty first page. ResultsPerPage always echoes the requested size.
func Paginate[T any](items []T, req PageRequest) Page[T] {
	pages := TotalPages(len(items), req.Size)
	current := req.Page
	if current < 1 || current > pages {
		current = pages
	}

	start := (current - 1) * req.Size
	end := start + req.Size
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}

	results := make([]T, end-start)
	copy(results, items[start:end])

	return Page[T]{
		Results:        results,
		CurrentPage:    current,
		TotalPages:     pages,
		TotalResults:   len(items),
		ResultsPerPage: req.Size,
	}
}
