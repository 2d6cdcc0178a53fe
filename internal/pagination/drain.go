// Package pagination drains paginated collaborator endpoints into a single deduplicated list.
package pagination

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// DefaultPageSize is the page size requested from collaborators.
const DefaultPageSize = 100

// defaultMaxPages bounds the number of pages fetched in a single drain.
const defaultMaxPages = 10_000

var (
	// ErrFetchFailed is matched by every *FetchError.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrPartialPagination signals that the server-reported counts never converged.
	ErrPartialPagination = errors.New("partial pagination")
)

// FetchError is returned when fetching a page failed.
type FetchError struct {
	Offset int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page at offset %d: %v", e.Offset, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}

// Page is one page of results with the server's view of the pagination state.
type Page[T any] struct {
	Items []T
	// TotalCount is the total number of results across all pages.
	TotalCount int
	// PageSize is the page size the server actually used.
	PageSize int
	// CurrentOffset is the offset of the first item of this page.
	CurrentOffset int
}

// FetchFunc fetches the page starting at offset.
type FetchFunc[T any] func(ctx context.Context, offset, limit int) (Page[T], error)

type options struct {
	pageSize int
	maxPages int
	name     string
}

// Option configures a drain.
type Option func(*options)

// WithPageSize sets the page size requested from the server.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithMaxPages bounds the number of pages fetched.
func WithMaxPages(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPages = n
		}
	}
}

// WithName sets the name used in log messages.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Drain fetches every page from fetch and returns the unique items keyed by key.
//
// The offset advances by the page size the server reports, not the requested one.
// On a fetch error the items collected so far are returned with a *FetchError.
// If the server stops advancing, the collected items are returned with ErrPartialPagination.
func Drain[T any, K comparable](ctx context.Context, fetch FetchFunc[T], key func(T) K, opts ...Option) ([]T, error) {
	o := options{
		pageSize: DefaultPageSize,
		maxPages: defaultMaxPages,
		name:     "pagination",
	}
	for _, opt := range opts {
		opt(&o)
	}

	page, err := fetch(ctx, 0, o.pageSize)
	if err != nil {
		return []T{}, &FetchError{Offset: 0, Err: err}
	}
	if page.TotalCount == 0 {
		return []T{}, nil
	}

	seen := make(map[K]struct{}, page.TotalCount)
	result := make([]T, 0, page.TotalCount)
	merge := func(items []T) {
		for _, item := range items {
			k := key(item)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			result = append(result, item)
		}
	}
	merge(page.Items)

	total := page.TotalCount
	lastOffset := page.CurrentOffset
	for pages := 1; len(result) < total; pages++ {
		if pages >= o.maxPages {
			log.Warn("Pagination page limit reached", "source", o.name, "pages", pages, "collected", len(result), "total", total)
			return result, ErrPartialPagination
		}
		if page.PageSize <= 0 {
			log.Warn("Server reported an empty page size", "source", o.name, "offset", lastOffset, "collected", len(result), "total", total)
			return result, ErrPartialPagination
		}

		offset := lastOffset + page.PageSize
		if offset >= total {
			log.Warn("Pagination ran past the reported total", "source", o.name, "offset", offset, "collected", len(result), "total", total)
			return result, ErrPartialPagination
		}

		if err := ctx.Err(); err != nil {
			return result, &FetchError{Offset: offset, Err: err}
		}

		page, err = fetch(ctx, offset, o.pageSize)
		if err != nil {
			return result, &FetchError{Offset: offset, Err: err}
		}
		if page.CurrentOffset <= lastOffset {
			log.Warn("Server did not advance the page offset", "source", o.name, "requested", offset, "reported", page.CurrentOffset)
			return result, ErrPartialPagination
		}

		merge(page.Items)
		lastOffset = page.CurrentOffset
	}

	return result, nil
}
