// Package query coordinates one asynchronous fetch per logical query.
//
// Reads go through the session cache first. Every new request takes a fresh
// epoch, and a completing fetch commits only while its epoch is still the
// current one, so a slow superseded response can never overwrite a newer one.
package query

import (
	"context"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/matheus3301/inboxsync/internal/api"
	"github.com/matheus3301/inboxsync/internal/cache"
	"go.uber.org/zap"
)

// Fetcher loads the data for one set of dependencies.
type Fetcher[D, T any] func(ctx context.Context, deps D) (T, error)

// Options controls a Query. Every field is optional.
type Options[D, T any] struct {
	// Enabled gates fetching for given deps. nil means always enabled.
	Enabled func(D) bool
	// Key derives the cache key for deps. nil disables caching.
	Key func(D) (string, error)
	// StaleTime bounds the age of a cached value this query accepts, on top
	// of the store TTL.
	StaleTime       time.Duration
	RefetchInterval time.Duration
	OnSuccess       func(T)
	OnError         func(*api.Error)
}

// State is a snapshot of a query.
type State[T any] struct {
	Data         T
	HasData      bool
	IsLoading    bool
	IsRefetching bool
	Err          *api.Error
	Epoch        uint64
	// Key is the cache key of the deps Data was loaded for, when caching is on.
	Key string
}

// Query runs a Fetcher whenever its dependencies change.
type Query[D, T any] struct {
	mu      sync.Mutex
	store   *cache.Store
	fetch   Fetcher[D, T]
	opts    Options[D, T]
	logger  *zap.Logger
	state   State[T]
	deps    D
	hasDeps bool
	cancel  context.CancelFunc
	closed  bool

	changes chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates an idle query. Nothing is fetched until SetDeps.
func New[D, T any](store *cache.Store, fetch Fetcher[D, T], opts Options[D, T], logger *zap.Logger) *Query[D, T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Query[D, T]{
		store:   store,
		fetch:   fetch,
		opts:    opts,
		logger:  logger,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if opts.RefetchInterval > 0 {
		go q.interval(opts.RefetchInterval)
	}
	return q
}

// Changes signals after every state change. At most one signal is buffered.
func (q *Query[D, T]) Changes() <-chan struct{} {
	return q.changes
}

func (q *Query[D, T]) signal() {
	select {
	case q.changes <- struct{}{}:
	default:
	}
}

// State returns the current snapshot.
func (q *Query[D, T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// SetDeps reruns the query when deps differ structurally from the previous ones.
func (q *Query[D, T]) SetDeps(deps D) {
	q.mu.Lock()
	if q.hasDeps && cmp.Equal(q.deps, deps, cmpopts.EquateEmpty()) {
		q.mu.Unlock()
		return
	}
	q.deps = deps
	q.hasDeps = true
	q.mu.Unlock()
	q.run(deps, false)
}

// Refetch reruns the query for the current deps, bypassing the cache.
func (q *Query[D, T]) Refetch() {
	q.mu.Lock()
	if !q.hasDeps {
		q.mu.Unlock()
		return
	}
	deps := q.deps
	q.mu.Unlock()
	q.run(deps, true)
}

// Invalidate drops the cached value for the current deps, then refetches.
func (q *Query[D, T]) Invalidate() {
	q.mu.Lock()
	if !q.hasDeps {
		q.mu.Unlock()
		return
	}
	deps := q.deps
	q.mu.Unlock()
	if key := q.key(deps); key != "" {
		q.store.Delete(key)
	}
	q.run(deps, true)
}

// Close tears the query down. In-flight results are discarded.
func (q *Query[D, T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	close(q.done)
	q.mu.Unlock()
}

func (q *Query[D, T]) key(deps D) string {
	if q.opts.Key == nil || q.store == nil {
		return ""
	}
	k, err := q.opts.Key(deps)
	if err != nil {
		q.logger.Warn("cache key failed, skipping cache", zap.Error(err))
		return ""
	}
	return k
}

func (q *Query[D, T]) run(deps D, refetch bool) {
	key := q.key(deps)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.state.Epoch++
	epoch := q.state.Epoch

	if q.opts.Enabled != nil && !q.opts.Enabled(deps) {
		q.state.IsLoading = false
		q.state.IsRefetching = false
		q.mu.Unlock()
		q.signal()
		return
	}

	if !refetch && key != "" {
		if v, ok := q.store.GetWithin(key, q.opts.StaleTime); ok {
			if data, ok := v.(T); ok {
				q.state.Data = data
				q.state.HasData = true
				q.state.Key = key
				q.state.IsLoading = false
				q.state.IsRefetching = false
				q.state.Err = nil
				q.mu.Unlock()
				q.signal()
				return
			}
		}
	}

	if refetch {
		q.state.IsRefetching = true
		q.state.IsLoading = false
	} else {
		q.state.IsLoading = true
		q.state.IsRefetching = false
	}
	q.state.Err = nil
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.wg.Add(1)
	q.mu.Unlock()
	q.signal()

	go func() {
		defer q.wg.Done()
		defer cancel()
		data, err := q.fetch(ctx, deps)
		q.commit(epoch, key, data, err)
	}()
}

func (q *Query[D, T]) commit(epoch uint64, key string, data T, err error) {
	q.mu.Lock()
	if q.closed || epoch != q.state.Epoch {
		q.mu.Unlock()
		q.logger.Debug("discarding superseded result", zap.Uint64("epoch", epoch))
		return
	}
	q.state.IsLoading = false
	q.state.IsRefetching = false
	var onSuccess func(T)
	var onError func(*api.Error)
	var apiErr *api.Error
	if err != nil {
		apiErr = api.AsError(err)
		q.state.Err = apiErr
		onError = q.opts.OnError
	} else {
		if key != "" {
			q.store.Set(key, data)
		}
		q.state.Data = data
		q.state.HasData = true
		q.state.Key = key
		q.state.Err = nil
		onSuccess = q.opts.OnSuccess
	}
	q.mu.Unlock()
	q.signal()

	if onSuccess != nil {
		onSuccess(data)
	}
	if onError != nil {
		onError(apiErr)
	}
}

func (q *Query[D, T]) interval(d time.Duration) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			q.Refetch()
		case <-q.done:
			return
		}
	}
}
