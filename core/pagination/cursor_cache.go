// Package pagination provides numbered-page navigation over ordered listings that can only be read forward,
// one batch after an opaque position marker (keyset/cursor pagination: no OFFSET, no random access).
package pagination

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// ErrInvalidPage is returned for page numbers below 1.
var ErrInvalidPage = errors.New("invalid page number")

type (
	// Source is the ordered listing a CursorCache reads from.
	Source[C any, T any] interface {
		// QueryPage returns at most limit records strictly after the position `after`,
		// or from the start of the listing when `after` is nil.
		QueryPage(ctx context.Context, after *C, limit int) ([]T, error)
		// Cursor returns the position of item within the listing.
		Cursor(item T) C
	}

	Page[T any] struct {
		Number int
		Items  []T
	}

	// FetchError is returned whenever the Source fails. The cursor table is left as it was before the failing query.
	FetchError struct {
		Page int
		Err  error
	}
)

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching listing page %d: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CursorCache maps page numbers to the cursor of the last record of that page.
// table[0] is the nil sentinel (start of the listing) and table[i] exists only once page i has been read.
// Calls are serialized: a cache belongs to a single listing session.
type CursorCache[C any, T any] struct {
	src      Source[C, T]
	pageSize int

	mu    sync.Mutex
	table []*C
}

// NewCursorCache returns an empty cache reading pageSize records at a time from src.
func NewCursorCache[C any, T any](src Source[C, T], pageSize int) *CursorCache[C, T] {
	if pageSize < 1 {
		pageSize = 1
	}
	return &CursorCache[C, T]{
		src:      src,
		pageSize: pageSize,
		table:    []*C{nil},
	}
}

func (cc *CursorCache[C, T]) PageSize() int { return cc.pageSize }

// Len returns the number of entries in the cursor table, sentinel included.
func (cc *CursorCache[C, T]) Len() int {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return len(cc.table)
}

// ResolvedPages returns the highest page number whose cursor is known.
func (cc *CursorCache[C, T]) ResolvedPages() int {
	return cc.Len() - 1
}

// CursorAt returns the cursor cached for page, if any. Page 0 always resolves to the nil sentinel.
func (cc *CursorCache[C, T]) CursorAt(page int) (*C, bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if page < 0 || page >= len(cc.table) {
		return nil, false
	}
	return cc.table[page], true
}

// Reset discards every cached cursor, starting a new session.
func (cc *CursorCache[C, T]) Reset() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.reset()
}

func (cc *CursorCache[C, T]) reset() {
	cc.table = []*C{nil}
}

// EnsureCursorUpTo makes sure the cursors of pages 1..target are cached, scanning the missing ones in order.
// target must be at least 1.
// The scan stops early, without error, once the listing is exhausted.
// Every resolved page is committed right away, so a retry after a FetchError resumes where the scan failed.
func (cc *CursorCache[C, T]) EnsureCursorUpTo(ctx context.Context, target int) error {
	if target < 1 {
		return ErrInvalidPage
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.ensureCursorUpTo(ctx, target)
}

func (cc *CursorCache[C, T]) ensureCursorUpTo(ctx context.Context, target int) error {
	for i := len(cc.table); i <= target; i++ {
		items, err := cc.src.QueryPage(ctx, cc.table[i-1], cc.pageSize)
		if err != nil {
			return &FetchError{Page: i, Err: err}
		}
		if len(items) == 0 {
			break
		}
		cc.table = append(cc.table, cc.lastCursor(items))
	}
	return nil
}

// FetchPage returns the records of page (1-based). reset starts a new session first.
// Pages past the end of the listing come back empty.
func (cc *CursorCache[C, T]) FetchPage(ctx context.Context, page int, reset bool) (Page[T], error) {
	if page < 1 {
		return Page[T]{}, ErrInvalidPage
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if reset {
		cc.reset()
	}
	if page-1 >= len(cc.table) {
		if err := cc.ensureCursorUpTo(ctx, page-1); err != nil {
			return Page[T]{}, err
		}
		if page-1 >= len(cc.table) {
			// exhausted before reaching the previous page
			return Page[T]{Number: page}, nil
		}
	}

	items, err := cc.src.QueryPage(ctx, cc.table[page-1], cc.pageSize)
	if err != nil {
		return Page[T]{}, &FetchError{Page: page, Err: err}
	}
	if len(items) > 0 && page == len(cc.table) {
		cc.table = append(cc.table, cc.lastCursor(items))
	}
	return Page[T]{Number: page, Items: items}, nil
}

func (cc *CursorCache[C, T]) lastCursor(items []T) *C {
	c := cc.src.Cursor(items[len(items)-1])
	return &c
}

// TotalPages returns the number of pages needed to show total records, never less than 1.
func TotalPages(total, pageSize int) int {
	if pageSize < 1 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
