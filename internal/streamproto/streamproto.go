// Package streamproto encodes and decodes the line-oriented data stream
// protocol spoken between the relay and chat clients. Every line is
// "<type>:<json>\n":
//
//	0:"text chunk"
//	3:"error message"
//	d:{"finishReason":"stop"}
package streamproto

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	HeaderName  = "X-Vercel-AI-Data-Stream"
	HeaderValue = "v1"
	ContentType = "text/plain; charset=utf-8"
)

type PartType byte

const (
	PartText   PartType = '0'
	PartError  PartType = '3'
	PartFinish PartType = 'd'
)

var ErrMalformed = errors.New("malformed stream part")

type Part struct {
	Type         PartType
	Text         string
	FinishReason string
}

// Encoder writes parts and flushes after each one when w supports it.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

func (e *Encoder) Text(chunk string) error {
	return e.write(PartText, chunk)
}

func (e *Encoder) Error(msg string) error {
	return e.write(PartError, msg)
}

func (e *Encoder) Finish(reason string) error {
	return e.write(PartFinish, struct {
		FinishReason string `json:"finishReason"`
	}{reason})
}

func (e *Encoder) write(t PartType, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode stream part")
	}
	line := make([]byte, 0, len(payload)+3)
	line = append(line, byte(t), ':')
	line = append(line, payload...)
	line = append(line, '\n')
	if _, err := e.w.Write(line); err != nil {
		return errors.Wrap(err, "write stream part")
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

type Decoder struct {
	scanner *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Decoder{scanner: scanner}
}

// Next returns the next known part. Unknown part types are skipped. io.EOF is
// returned when the input ends.
func (d *Decoder) Next() (Part, error) {
	for d.scanner.Scan() {
		line := strings.TrimRight(d.scanner.Text(), "\r")
		if line == "" {
			continue
		}
		kind, payload, ok := strings.Cut(line, ":")
		if !ok || len(kind) != 1 || !gjson.Valid(payload) {
			return Part{}, errors.Wrapf(ErrMalformed, "%q", truncate(line, 64))
		}
		value := gjson.Parse(payload)
		switch t := PartType(kind[0]); t {
		case PartText, PartError:
			if value.Type != gjson.String {
				return Part{}, errors.Wrapf(ErrMalformed, "part %c is not a string", t)
			}
			return Part{Type: t, Text: value.String()}, nil
		case PartFinish:
			return Part{Type: t, FinishReason: value.Get("finishReason").String()}, nil
		}
	}
	if err := d.scanner.Err(); err != nil {
		return Part{}, errors.Wrap(err, "read stream")
	}
	return Part{}, io.EOF
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
