// Package client holds one conversation with the relay and streams replies
// into it.
package client

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/usecase/chat"
)

var (
	ErrEmptyInput = errors.New("empty input")
	ErrBusy       = errors.New("a reply is still streaming")
)

// Transport delivers a conversation to the relay and returns the reply
// stream.
type Transport interface {
	Send(ctx context.Context, conversation []domain.Message) (chat.Stream, error)
}

type Option func(*Client)

// WithOnChange registers fn to be called after every change to the
// conversation or busy state. fn runs on the submitting goroutine and must
// not call Submit.
func WithOnChange(fn func()) Option {
	return func(c *Client) {
		c.onChange = fn
	}
}

type Client struct {
	transport Transport
	onChange  func()

	mu           sync.Mutex
	conversation domain.Conversation
	busy         bool
}

func New(transport Transport, opts ...Option) *Client {
	c := &Client{transport: transport}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit appends input as a user turn and streams the reply into a new
// assistant turn. It blocks until the reply completes or fails. A failed
// reply leaves whatever was already received in place.
func (c *Client) Submit(ctx context.Context, input string) error {
	text := strings.TrimSpace(input)
	if text == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.conversation = append(c.conversation, domain.Message{Role: domain.RoleUser, Content: text})
	snapshot := c.conversation.Clone()
	c.mu.Unlock()
	c.notify()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
		c.notify()
	}()

	stream, err := c.transport.Send(ctx, snapshot)
	if err != nil {
		return err
	}
	defer stream.Close()

	opened := false
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if chunk == "" {
			continue
		}
		c.appendChunk(chunk, !opened)
		opened = true
		c.notify()
	}
}

func (c *Client) appendChunk(chunk string, open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if open {
		c.conversation = append(c.conversation, domain.Message{Role: domain.RoleAssistant, Content: chunk})
		return
	}
	c.conversation[len(c.conversation)-1].Content += chunk
}

func (c *Client) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}

func (c *Client) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Conversation returns a copy of the transcript so far.
func (c *Client) Conversation() domain.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversation.Clone()
}

// LastReply returns the content of the trailing assistant turn.
func (c *Client) LastReply() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.conversation.LastAssistant()
	return m.Content, ok
}
