package domain

import "time"

// SessionStore keeps one value per chat and forgets chats idle longer than ttl.
type SessionStore[T any] interface {
	GetOrCreate(chatID int64, create func() T) T
	Drop(chatID int64)
	Sweep(ttl time.Duration) int
}
