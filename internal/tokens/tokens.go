// Package tokens counts and truncates model output in tokens.
package tokens

import (
	"context"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/weaviate/tiktoken-go"
)

// Counter measures text in tokens and cuts text down to a token budget.
type Counter interface {
	Count(text string) int
	// Truncate returns the longest prefix of text that fits in n tokens.
	Truncate(text string, n int) string
}

type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads encoding. The BPE ranks are fetched once and cached in
// TIKTOKEN_CACHE_DIR, which also lets an offline host ship them in advance.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, errors.Wrapf(err, "load token encoding %s", encoding)
	}
	return FromEncoder(enc), nil
}

// FromEncoder wraps an encoder built by the caller.
func FromEncoder(enc *tiktoken.Tiktoken) *Tiktoken {
	return &Tiktoken{enc: enc}
}

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Truncate cuts on a token boundary. Byte-level tokens can end inside a
// multibyte character, so the cut moves back until it decodes to whole runes.
func (t *Tiktoken) Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	ids := t.enc.Encode(text, nil, nil)
	if len(ids) <= n {
		return text
	}
	for ; n > 0; n-- {
		if out := t.enc.Decode(ids[:n]); utf8.ValidString(out) {
			return out
		}
	}
	return ""
}

// Runes treats every rune as one token. It is the fallback when no encoding
// can be loaded and always over-counts relative to a BPE encoding.
type Runes struct{}

func (Runes) Count(text string) int {
	return len([]rune(text))
}

func (Runes) Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}

// New returns a tiktoken counter for encoding, falling back to Runes when
// the encoding cannot be loaded before ctx is done.
func New(ctx context.Context, encoding string) (Counter, error) {
	type result struct {
		t   *Tiktoken
		err error
	}
	ch := make(chan result, 1)
	go func() {
		t, err := NewTiktoken(encoding)
		ch <- result{t, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return Runes{}, r.err
		}
		return r.t, nil
	case <-ctx.Done():
		return Runes{}, errors.Wrapf(ctx.Err(), "load token encoding %s", encoding)
	}
}
