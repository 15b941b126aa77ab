// Package cache provides the session-scoped TTL cache shared by every query.
//
// Expiry is lazy: an entry is checked on read and removed there once it is
// stale. Nothing runs in the background.
package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultTTL applies when New is given a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// Entry is a cached value with the time it was written.
type Entry struct {
	Key       string
	Data      any
	Timestamp time.Time
}

// Store is a keyed, expiring value store. An entry is valid while
// now - Timestamp < TTL.
type Store struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
	metrics Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics reports hits, misses and expiries to m.
func WithMetrics(m Metrics) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates an empty store.
func New(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
		metrics: NoopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the store-wide time to live.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get returns the value under key if it is still fresh. A stale entry is
// deleted and reported as a miss.
func (s *Store) Get(key string) (any, bool) {
	return s.GetWithin(key, s.ttl)
}

// GetWithin is Get with an additional per-read age bound. An entry older than
// maxAge but still inside the TTL is a miss for this read only and is kept.
// A non-positive maxAge means the TTL alone applies.
func (s *Store) GetWithin(key string, maxAge time.Duration) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.metrics.Miss()
		return nil, false
	}
	age := s.now().Sub(e.Timestamp)
	if age >= s.ttl {
		delete(s.entries, key)
		s.metrics.Expire()
		s.metrics.Miss()
		return nil, false
	}
	if maxAge > 0 && age >= maxAge {
		s.metrics.Miss()
		return nil, false
	}
	s.metrics.Hit()
	return e.Data, true
}

// Set stores data under key, replacing any previous entry.
func (s *Store) Set(key string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{Key: key, Data: data, Timestamp: s.now()}
}

// Delete removes exactly one key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		delete(s.entries, key)
		s.metrics.Invalidate(1)
	}
}

// Invalidate deletes every key starting with prefix. An empty prefix clears
// the store. Returns the number of entries removed.
func (s *Store) Invalidate(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.entries {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			n++
		}
	}
	if n > 0 {
		s.metrics.Invalidate(n)
	}
	return n
}

// Clear empties the store. Called when the session ends.
func (s *Store) Clear() {
	s.Invalidate("")
}

// Len reports the number of stored entries, fresh or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
