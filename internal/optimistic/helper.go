// Package optimistic applies local edits to a held collection before the
// server has confirmed them.
//
// There is no built-in undo. A caller that needs to revert keeps the value it
// replaced and writes it back itself.
package optimistic

import "slices"

// Helper edits the collection behind a getter/setter pair. The setter is
// called with a fresh slice; the previous one is never modified.
type Helper[T any] struct {
	get   func() []T
	set   func([]T)
	keyOf func(T) string
}

// New creates a helper. keyOf returns the identity used by Update and Remove.
func New[T any](get func() []T, set func([]T), keyOf func(T) string) *Helper[T] {
	return &Helper[T]{get: get, set: set, keyOf: keyOf}
}

// Add prepends item.
func (h *Helper[T]) Add(item T) {
	cur := h.get()
	next := make([]T, 0, len(cur)+1)
	next = append(next, item)
	next = append(next, cur...)
	h.set(next)
}

// Update applies patch to the item with id. Returns the item as it was before
// the patch, and false when no item matched.
func (h *Helper[T]) Update(id string, patch func(*T)) (prev T, ok bool) {
	next := slices.Clone(h.get())
	i := slices.IndexFunc(next, func(v T) bool { return h.keyOf(v) == id })
	if i < 0 {
		return prev, false
	}
	prev = next[i]
	patch(&next[i])
	h.set(next)
	return prev, true
}

// Remove drops the item with id. Returns false when no item matched.
func (h *Helper[T]) Remove(id string) bool {
	cur := h.get()
	next := slices.DeleteFunc(slices.Clone(cur), func(v T) bool { return h.keyOf(v) == id })
	if len(next) == len(cur) {
		return false
	}
	h.set(next)
	return true
}
