// Package sessions keeps one in-memory conversation session per chat.
// Sessions idle longer than the TTL read as absent and are dropped by Sweep.
package sessions

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value   T
	touched time.Time
}

type Store[T any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[int64]entry[T]
}

// New returns a store; ttl <= 0 disables expiry.
func New[T any](ttl time.Duration) *Store[T] {
	return &Store[T]{ttl: ttl, now: time.Now, items: make(map[int64]entry[T])}
}

// WithClock replaces the time source.
func (s *Store[T]) WithClock(now func() time.Time) *Store[T] {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *Store[T]) expired(e entry[T], now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.touched) > s.ttl
}

func (s *Store[T]) Get(chatID int64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[chatID]
	if !ok {
		var zero T
		return zero, false
	}
	if s.expired(e, s.now()) {
		delete(s.items, chatID)
		var zero T
		return zero, false
	}
	return e.value, true
}

// Put creates or replaces the session and refreshes its idle timer.
func (s *Store[T]) Put(chatID int64, value T) {
	s.mu.Lock()
	s.items[chatID] = entry[T]{value: value, touched: s.now()}
	s.mu.Unlock()
}

func (s *Store[T]) Delete(chatID int64) {
	s.mu.Lock()
	delete(s.items, chatID)
	s.mu.Unlock()
}

// Sweep drops expired sessions and returns how many it removed.
func (s *Store[T]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, e := range s.items {
		if s.expired(e, now) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
