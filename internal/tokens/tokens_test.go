package tokens_test

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-assistant/internal/tokens"
	"portfolio-assistant/internal/tokens/tokenstest"
)

func byteEncoder(t *testing.T) *tokens.Tiktoken {
	t.Helper()
	c, err := tokenstest.ByteEncoder()
	require.NoError(t, err)
	return c
}

func TestRunes(t *testing.T) {
	var c tokens.Runes
	assert.Equal(t, 5, c.Count("héllo"))
	assert.Equal(t, "hé", c.Truncate("héllo", 2))
	assert.Equal(t, "héllo", c.Truncate("héllo", 10))
	assert.Equal(t, "", c.Truncate("héllo", 0))
}

func TestTiktokenTruncateFitsBudget(t *testing.T) {
	c := byteEncoder(t)

	text := strings.Repeat("portfolio assistant ", 50)
	total := c.Count(text)
	assert.Less(t, total, len(text))

	cut := c.Truncate(text, 10)
	assert.LessOrEqual(t, c.Count(cut), 10)
	assert.True(t, strings.HasPrefix(text, cut))
	assert.Equal(t, text, c.Truncate(text, total))
	assert.Equal(t, "", c.Truncate(text, 0))
}

func TestTiktokenTruncateKeepsWholeRunes(t *testing.T) {
	c := byteEncoder(t)

	cases := map[string]struct {
		text  string
		limit int
		want  string
	}{
		"emoji":        {"hi 🙂", 4, "hi "},
		"emoji inside": {"hi 🙂", 6, "hi "},
		"only emoji":   {"🙂", 1, ""},
		"cjk":          {"日本語", 4, "日"},
		"cjk boundary": {"日本語", 6, "日本"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cut := c.Truncate(tc.text, tc.limit)
			assert.True(t, utf8.ValidString(cut))
			assert.True(t, strings.HasPrefix(tc.text, cut))
			assert.Equal(t, tc.want, cut)
		})
	}
}

func TestNewFallsBackToRunes(t *testing.T) {
	c, err := tokens.New(context.Background(), "no-such-encoding")
	assert.Error(t, err)
	assert.IsType(t, tokens.Runes{}, c)
}

func TestNewGivesUpWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	c, err := tokens.New(ctx, "cl100k_base")
	if err == nil {
		// the encoding was already cached locally and won the race
		assert.IsType(t, &tokens.Tiktoken{}, c)
		return
	}
	assert.IsType(t, tokens.Runes{}, c)
	assert.Less(t, time.Since(start), time.Second)
}
