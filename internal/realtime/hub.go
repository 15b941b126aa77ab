package realtime

import (
	"slices"
	"sync"
)

// Handler receives envelopes in delivery order.
type Handler func(Envelope)

// Subscription is the handle returned by Hub.Subscribe.
type Subscription struct {
	hub  *Hub
	id   uint64
	once sync.Once
}

// Unsubscribe stops delivery. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		s.hub.subs = slices.DeleteFunc(s.hub.subs, func(e entry) bool { return e.id == s.id })
	})
}

type entry struct {
	id uint64
	h  Handler
}

// Hub fans envelopes out to subscribers. Dispatch calls handlers synchronously
// in subscription order, so handlers see envelopes in the order they arrived.
type Hub struct {
	mu   sync.RWMutex
	subs []entry
	next uint64
}

func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers h and returns the token that removes it.
func (h *Hub) Subscribe(handler Handler) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.subs = append(h.subs, entry{id: h.next, h: handler})
	return &Subscription{hub: h, id: h.next}
}

// Dispatch delivers env to every current subscriber.
func (h *Hub) Dispatch(env Envelope) {
	h.mu.RLock()
	subs := slices.Clone(h.subs)
	h.mu.RUnlock()
	for _, s := range subs {
		s.h(env)
	}
}

// Len reports the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
