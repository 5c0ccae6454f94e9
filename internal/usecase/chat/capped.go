package chat

import (
	"io"

	"portfolio-assistant/internal/tokens"
)

const (
	FinishStop   = "stop"
	FinishLength = "length"
)

// Finisher is implemented by streams that know why the reply ended.
type Finisher interface {
	FinishReason() string
}

// FinishReason returns why stream ended, defaulting to FinishStop.
func FinishReason(stream Stream) string {
	if f, ok := stream.(Finisher); ok {
		if reason := f.FinishReason(); reason != "" {
			return reason
		}
	}
	return FinishStop
}

// cappedStream stops the reply once limit tokens have been emitted. The chunk
// crossing the limit is cut to fit.
type cappedStream struct {
	inner     Stream
	counter   tokens.Counter
	remaining int
	truncated bool
}

func newCappedStream(inner Stream, counter tokens.Counter, limit int) Stream {
	if limit <= 0 {
		return inner
	}
	return &cappedStream{inner: inner, counter: counter, remaining: limit}
}

func (c *cappedStream) Recv() (string, error) {
	if c.truncated {
		return "", io.EOF
	}

	chunk, err := c.inner.Recv()
	if err != nil {
		return "", err
	}
	if c.remaining <= 0 && chunk != "" {
		// budget spent and the provider still has more to say
		c.truncated = true
		_ = c.inner.Close()
		return "", io.EOF
	}

	n := c.counter.Count(chunk)
	if n > c.remaining {
		chunk = c.counter.Truncate(chunk, c.remaining)
		c.remaining = 0
		c.truncated = true
		_ = c.inner.Close()
		if chunk == "" {
			return "", io.EOF
		}
		return chunk, nil
	}
	c.remaining -= n
	return chunk, nil
}

func (c *cappedStream) Close() error {
	return c.inner.Close()
}

func (c *cappedStream) FinishReason() string {
	if c.truncated {
		return FinishLength
	}
	if f, ok := c.inner.(Finisher); ok {
		return f.FinishReason()
	}
	return ""
}
