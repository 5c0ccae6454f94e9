package telegram

import (
	"sync"

	"portfolio-assistant/internal/client"
)

// session is one Telegram chat's conversation. answering is held for the
// whole of a reply so a second message cannot steal the observer.
type session struct {
	client    *client.Client
	answering sync.Mutex

	mu       sync.Mutex
	observer func(reply string)
}

func newSession(transport client.Transport) *session {
	s := &session{}
	s.client = client.New(transport, client.WithOnChange(s.changed))
	return s
}

func (s *session) setObserver(fn func(reply string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

func (s *session) changed() {
	s.mu.Lock()
	fn := s.observer
	s.mu.Unlock()
	if fn == nil {
		return
	}
	if reply, ok := s.client.LastReply(); ok && s.client.Busy() {
		fn(reply)
	}
}
