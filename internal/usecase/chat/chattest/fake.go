// Package chattest provides scripted providers and streams for tests.
package chattest

import (
	"context"
	"io"
	"sync"

	"portfolio-assistant/internal/usecase/chat"
)

// Stream replays Chunks and then ends with Err, or io.EOF when Err is nil.
// If Gate is set, every Recv waits for a value from it first.
type Stream struct {
	Chunks []string
	Err    error
	Gate   chan struct{}

	mu     sync.Mutex
	next   int
	closed bool
}

func NewStream(chunks ...string) *Stream {
	return &Stream{Chunks: chunks}
}

func (s *Stream) Recv() (string, error) {
	if s.Gate != nil {
		<-s.Gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", io.EOF
	}
	if s.next < len(s.Chunks) {
		c := s.Chunks[s.next]
		s.next++
		return c, nil
	}
	if s.Err != nil {
		return "", s.Err
	}
	return "", io.EOF
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Client records every request and answers with Reply or fails with Err.
type Client struct {
	Reply *Stream
	Err   error

	mu       sync.Mutex
	requests []chat.CompletionRequest
}

func (c *Client) Stream(_ context.Context, req chat.CompletionRequest) (chat.Stream, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Reply == nil {
		return NewStream(), nil
	}
	return c.Reply, nil
}

func (c *Client) Requests() []chat.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.CompletionRequest(nil), c.requests...)
}
