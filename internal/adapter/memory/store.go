package memory

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value    T
	lastSeen time.Time
}

// Store keeps one value per chat in process memory. Nothing survives a
// restart.
type Store[T any] struct {
	mu    sync.Mutex
	chats map[int64]*entry[T]
	now   func() time.Time
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		chats: make(map[int64]*entry[T]),
		now:   time.Now,
	}
}

// GetOrCreate returns the chat's value, creating it on first use, and marks
// the chat as active.
func (s *Store[T]) GetOrCreate(chatID int64, create func() T) T {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.chats[chatID]
	if !ok {
		e = &entry[T]{value: create()}
		s.chats[chatID] = e
	}
	e.lastSeen = s.now()
	return e.value
}

func (s *Store[T]) Drop(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, chatID)
}

// Sweep forgets chats idle for longer than ttl and reports how many went.
func (s *Store[T]) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, e := range s.chats {
		if e.lastSeen.Before(cutoff) {
			delete(s.chats, id)
			removed++
		}
	}
	return removed
}

func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}
