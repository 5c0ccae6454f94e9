package streamproto

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWireFormat(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Text("Hel"))
	require.NoError(t, enc.Text("lo \"world\"\n"))
	require.NoError(t, enc.Finish("stop"))

	assert.Equal(t, "0:\"Hel\"\n0:\"lo \\\"world\\\"\\n\"\nd:{\"finishReason\":\"stop\"}\n", buf.String())
}

func TestDecodeRoundTripsEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Text("multi\nline ✓"))
	require.NoError(t, enc.Error("quota exceeded"))
	require.NoError(t, enc.Finish("length"))

	dec := NewDecoder(&buf)
	p, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, Part{Type: PartText, Text: "multi\nline ✓"}, p)

	p, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, Part{Type: PartError, Text: "quota exceeded"}, p)

	p, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, Part{Type: PartFinish, FinishReason: "length"}, p)

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeSkipsUnknownParts(t *testing.T) {
	dec := NewDecoder(strings.NewReader("f:{\"messageId\":\"x\"}\n\ne:{\"finishReason\":\"stop\"}\n0:\"a\"\n"))
	p, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", p.Text)
}

func TestDecodeMalformed(t *testing.T) {
	for _, in := range []string{"garbage\n", "0:{not json\n", "0:42\n"} {
		_, err := NewDecoder(strings.NewReader(in)).Next()
		assert.ErrorIs(t, err, ErrMalformed, in)
	}
}
