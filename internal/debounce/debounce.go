// Package debounce delays propagation of a rapidly changing value until its
// input has been quiet for a fixed delay.
package debounce

import (
	"sync"
	"time"
)

// Debouncer delivers the last value passed to Set once no further Set has
// happened for the configured delay.
type Debouncer[T any] struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func(T)
	timer   *time.Timer
	gen     uint64
	value   T
	stopped bool
}

// New creates a debouncer that calls fn with the settled value. fn runs on
// the timer goroutine.
func New[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fn: fn}
}

// Set records v and restarts the quiet period. A zero delay delivers v
// synchronously.
func (d *Debouncer[T]) Set(v T) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	d.value = v
	if d.delay <= 0 {
		d.timer = nil
		d.mu.Unlock()
		d.fn(v)
		return
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
	d.mu.Unlock()
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	// A timer that fired just as Set replaced it carries an old generation.
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	v := d.value
	d.timer = nil
	d.mu.Unlock()
	d.fn(v)
}

// Flush delivers a pending value immediately. Reports whether one was pending.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if d.stopped || d.timer == nil {
		d.mu.Unlock()
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	v := d.value
	d.mu.Unlock()
	d.fn(v)
	return true
}

// Pending reports whether a delivery is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending delivery. Later Set calls are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
