// Package stream fans snapshots out to subscribers.
//
// A Hub remembers the latest published value. New subscribers receive it
// immediately. Each subscriber has a one-slot buffer: a slow subscriber
// never blocks the publisher, skips intermediate values and always ends up
// with the latest one.
package stream

import "sync"

// Hub broadcasts values of type T to any number of subscribers.
type Hub[T any] struct {
	mu      sync.Mutex
	current T
	clone   func(T) T
	subs    map[int]chan T
	next    int
	closed  bool
}

// NewHub creates a hub holding initial. clone, if not nil, is applied to
// every value handed out so receivers never share mutable state.
func NewHub[T any](initial T, clone func(T) T) *Hub[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Hub[T]{
		current: clone(initial),
		clone:   clone,
		subs:    make(map[int]chan T),
	}
}

// Current returns a copy of the latest value.
func (h *Hub[T]) Current() T {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clone(h.current)
}

// Subscribe registers a subscriber and delivers the current value first.
// The returned cancel func is idempotent and closes the channel.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan T, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- h.clone(h.current)

	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish stores v as the current value and delivers it to every
// subscriber, replacing any value a subscriber has not consumed yet.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.current = h.clone(v)
	for _, ch := range h.subs {
		select {
		case ch <- h.clone(v):
		default:
			select {
			case <-ch:
			default:
			}
			ch <- h.clone(v)
		}
	}
}

// Len returns the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later subscriptions receive a
// closed channel and later publishes are dropped.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
