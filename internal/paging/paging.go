package paging

import (
	"errors"
	"fmt"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ErrInvalidPage indicates a page request with an out-of-range number or size.
var ErrInvalidPage = errors.New("paging: invalid requested page")

// RequestedPage is a validated zero-based page request.
type RequestedPage struct {
	Number int
	Size   int
}

// NewRequestedPage validates the raw values and returns a RequestedPage.
// A non-positive size falls back to the default page size.
func NewRequestedPage(number, size int) (RequestedPage, error) {
	if number < 0 {
		return RequestedPage{}, fmt.Errorf("%w: negative page number %d", ErrInvalidPage, number)
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		return RequestedPage{}, fmt.Errorf("%w: size %d exceeds %d", ErrInvalidPage, size, maxPageSize)
	}
	return RequestedPage{Number: number, Size: size}, nil
}

// Offset returns the row offset corresponding to the page.
func (p RequestedPage) Offset() int {
	return p.Number * p.Size
}

// View is one page of results together with the request that produced it.
type View[T any] struct {
	Content []T
	Number  int
	Size    int
}

// NewView pairs page content with the page request it answers.
func NewView[T any](content []T, page RequestedPage) View[T] {
	if content == nil {
		content = []T{}
	}
	return View[T]{Content: content, Number: page.Number, Size: page.Size}
}
