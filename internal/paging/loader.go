package paging

import (
	"context"
	"slices"
	"sync"
)

// Loader accumulates pages for infinite scrolling. LoadMore is a no-op while
// a load is in flight or once the last page has been seen.
type Loader[T any] struct {
	mu       sync.Mutex
	load     func(ctx context.Context, page int) (Page[T], error)
	items    []T
	next     int
	hasMore  bool
	inFlight bool
	gen      uint64
}

func NewLoader[T any](load func(ctx context.Context, page int) (Page[T], error)) *Loader[T] {
	return &Loader[T]{load: load, next: 1, hasMore: true}
}

// LoadMore fetches the next page. loaded is false when the call was
// suppressed or superseded by Reset.
func (l *Loader[T]) LoadMore(ctx context.Context) (loaded bool, err error) {
	l.mu.Lock()
	if l.inFlight || !l.hasMore {
		l.mu.Unlock()
		return false, nil
	}
	l.inFlight = true
	page, gen := l.next, l.gen
	l.mu.Unlock()

	p, err := l.load(ctx, page)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return false, nil
	}
	l.inFlight = false
	if err != nil {
		return false, err
	}
	l.items = append(l.items, p.Data...)
	l.next = page + 1
	l.hasMore = p.HasMore
	return true, nil
}

// Items returns everything loaded so far.
func (l *Loader[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}

func (l *Loader[T]) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

func (l *Loader[T]) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// Reset starts over from page 1. A load in flight is discarded.
func (l *Loader[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.items = nil
	l.next = 1
	l.hasMore = true
	l.inFlight = false
}
