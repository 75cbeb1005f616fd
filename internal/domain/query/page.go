// Package query holds the pagination and filter composition shared by the
// catalog and order listings.
package query

import "github.com/xenking/tienda/internal/domain/apperr"

// Pagination defaults. Out-of-range values are clamped, never rejected.
const (
	DefaultPage = 1
	DefaultSize = 10
	MaxSize     = 100
)

// Page is a normalized page request.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps the requested page number and size: a number below 1 becomes
// 1 and a size outside [1, MaxSize] becomes DefaultSize.
func NewPage(number, size int) Page {
	if number < 1 {
		number = DefaultPage
	}
	if size < 1 || size > MaxSize {
		size = DefaultSize
	}
	return Page{Number: number, Size: size}
}

// Offset returns the number of records preceding this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Pages returns the page count for total records, zero when there are none.
func (p Page) Pages(total int64) int {
	if total <= 0 {
		return 0
	}
	size := int64(p.Size)
	return int((total + size - 1) / size)
}

// Check reports NotFound when the page lies beyond the last page. An empty
// result set has no last page, so any page number is accepted.
func (p Page) Check(total int64) error {
	pages := p.Pages(total)
	if pages != 0 && p.Number > pages {
		return apperr.NotFound("Página no encontrada")
	}
	return nil
}

// Result is the paginated envelope returned by list operations.
type Result[T any] struct {
	Items   []T
	Page    int
	Size    int
	Total   int64
	Pages   int
	HasNext bool
	HasPrev bool
}

// NewResult wraps one page of items with its position in the full result set.
func NewResult[T any](items []T, p Page, total int64) *Result[T] {
	pages := p.Pages(total)
	return &Result[T]{
		Items:   items,
		Page:    p.Number,
		Size:    p.Size,
		Total:   total,
		Pages:   pages,
		HasNext: p.Number < pages,
		HasPrev: p.Number > 1,
	}
}
