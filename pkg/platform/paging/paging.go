// Package paging parses page/per_page query parameters and carries one page
// of a listing back to the client.
package paging

import (
	"net/url"
	"strconv"

	dErrors "emissions/pkg/domain-errors"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params selects one page. Page is 1-based.
type Params struct {
	Page    int
	PerPage int
}

// Default is the first page at the default size.
func Default() Params {
	return Params{Page: 1, PerPage: DefaultPerPage}
}

// Parse reads page and per_page from q. Missing values take the defaults;
// per_page is capped at MaxPerPage.
func Parse(q url.Values) (Params, error) {
	p := Default()
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Params{}, dErrors.New(dErrors.CodeValidation, "page must be a positive integer")
		}
		p.Page = n
	}
	if raw := q.Get("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Params{}, dErrors.New(dErrors.CodeValidation, "per_page must be a positive integer")
		}
		p.PerPage = min(n, MaxPerPage)
	}
	return p, nil
}

// Normalize fills zero values with the defaults.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Window returns the [start, end) bounds of the page within n items.
func (p Params) Window(n int) (int, int) {
	start := min(p.Offset(), n)
	end := min(start+p.PerPage, n)
	return start, end
}

// Result is one page of a listing plus the total match count.
type Result[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

// NewResult builds a Result, never returning a nil Items slice.
func NewResult[T any](items []T, total int, p Params) Result[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.PerPage > 0 {
		pages = (total + p.PerPage - 1) / p.PerPage
	}
	return Result[T]{Items: items, Total: total, Page: p.Page, PerPage: p.PerPage, TotalPages: pages}
}
