// Package events is a small typed fan-out used by the engines to publish
// state changes to any number of listeners.
package events

import "sync"

// Stream delivers values of T to every registered listener, synchronously
// and in registration order. The zero value is ready to use.
type Stream[T any] struct {
	mu        sync.RWMutex
	next      uint64
	listeners []listener[T]
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// On registers fn and returns a function that removes it.
func (s *Stream[T]) On(fn func(T)) (cancel func()) {
	s.mu.Lock()
	s.next++
	id := s.next
	s.listeners = append(s.listeners, listener[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Stream[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Emit calls every listener with v. Listeners may register or cancel from
// inside a callback; such changes apply to the next Emit.
func (s *Stream[T]) Emit(v T) {
	s.mu.RLock()
	ls := s.listeners
	s.mu.RUnlock()

	for _, l := range ls {
		l.fn(v)
	}
}

// Len reports the number of listeners.
func (s *Stream[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}
