package debounce

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu   sync.Mutex
	vals []string
	ch   chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 16)}
}

func (r *recorder) record(v string) {
	r.mu.Lock()
	r.vals = append(r.vals, v)
	r.mu.Unlock()
	r.ch <- v
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.vals)
}

func TestBurstPropagatesOnce(t *testing.T) {
	r := newRecorder()
	d := New(60*time.Millisecond, r.record)
	defer d.Stop()

	start := time.Now()
	d.Set("a")
	time.Sleep(20 * time.Millisecond)
	d.Set("ab")
	time.Sleep(10 * time.Millisecond)
	d.Set("abc")

	select {
	case v := <-r.ch:
		if v != "abc" {
			t.Errorf("propagated %q, want abc", v)
		}
		if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
			t.Errorf("propagated after %v, before the quiet period", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for propagation")
	}

	time.Sleep(120 * time.Millisecond)
	if n := r.count(); n != 1 {
		t.Errorf("propagations = %d, want 1", n)
	}
}

func TestSeparateWindowsPropagateEach(t *testing.T) {
	r := newRecorder()
	d := New(20*time.Millisecond, r.record)
	defer d.Stop()

	d.Set("first")
	if v := <-r.ch; v != "first" {
		t.Errorf("got %q, want first", v)
	}
	d.Set("second")
	if v := <-r.ch; v != "second" {
		t.Errorf("got %q, want second", v)
	}
}

func TestStopCancelsPending(t *testing.T) {
	r := newRecorder()
	d := New(20*time.Millisecond, r.record)
	d.Set("x")
	d.Stop()
	d.Set("y")

	select {
	case v := <-r.ch:
		t.Errorf("propagated %q after Stop", v)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestFlush(t *testing.T) {
	r := newRecorder()
	d := New(time.Hour, r.record)
	defer d.Stop()

	if d.Flush() {
		t.Error("Flush() with nothing pending should report false")
	}
	d.Set("now")
	if !d.Pending() {
		t.Error("Pending() = false after Set")
	}
	if !d.Flush() {
		t.Fatal("Flush() = false with a pending value")
	}
	if v := <-r.ch; v != "now" {
		t.Errorf("flushed %q, want now", v)
	}
	if d.Pending() {
		t.Error("Pending() = true after Flush")
	}
}

func TestZeroDelayIsSynchronous(t *testing.T) {
	r := newRecorder()
	d := New(0, r.record)
	d.Set("sync")
	if n := r.count(); n != 1 {
		t.Errorf("propagations = %d, want 1", n)
	}
}
