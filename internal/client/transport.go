package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/profile"
	"portfolio-assistant/internal/streamproto"
	"portfolio-assistant/internal/usecase/chat"
)

// RelayError is a non-2xx answer from the relay.
type RelayError struct {
	StatusCode int
	Message    string
}

func (e *RelayError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.StatusCode)
	}
	return e.Message
}

// StreamError is an error part received after the reply had started.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "reply failed: " + e.Message
}

// HTTPTransport talks to a relay's /api/chat endpoint.
type HTTPTransport struct {
	baseURL string
	http    *http.Client
}

func NewHTTPTransport(baseURL string, httpClient *http.Client) *HTTPTransport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (t *HTTPTransport) Send(ctx context.Context, conversation []domain.Message) (chat.Stream, error) {
	body, err := json.Marshal(struct {
		Messages []domain.Message `json:"messages"`
	}{conversation})
	if err != nil {
		return nil, errors.Wrap(err, "encode conversation")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build relay request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "reach relay")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, relayError(resp)
	}
	return &partStream{body: resp.Body, dec: streamproto.NewDecoder(resp.Body)}, nil
}

// Profile fetches the public profile the relay serves.
func (t *HTTPTransport) Profile(ctx context.Context) (profile.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/api/profile", nil)
	if err != nil {
		return profile.Profile{}, errors.Wrap(err, "build profile request")
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return profile.Profile{}, errors.Wrap(err, "reach relay")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return profile.Profile{}, relayError(resp)
	}

	var p profile.Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return profile.Profile{}, errors.Wrap(err, "decode profile")
	}
	return p, nil
}

func relayError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := gjson.GetBytes(data, "error").String()
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	return &RelayError{StatusCode: resp.StatusCode, Message: msg}
}

type partStream struct {
	body   io.ReadCloser
	dec    *streamproto.Decoder
	finish string
	done   bool
}

func (s *partStream) Recv() (string, error) {
	for !s.done {
		part, err := s.dec.Next()
		if errors.Is(err, io.EOF) {
			// the relay always ends a good reply with a finish part
			return "", io.ErrUnexpectedEOF
		}
		if err != nil {
			return "", err
		}
		switch part.Type {
		case streamproto.PartText:
			return part.Text, nil
		case streamproto.PartError:
			return "", &StreamError{Message: part.Text}
		case streamproto.PartFinish:
			s.finish = part.FinishReason
			s.done = true
		}
	}
	return "", io.EOF
}

func (s *partStream) Close() error {
	return s.body.Close()
}

func (s *partStream) FinishReason() string {
	return s.finish
}

// Relayer is satisfied by *chat.Service.
type Relayer interface {
	Relay(ctx context.Context, conversation []domain.Message) (chat.Stream, error)
}

// LocalTransport relays in-process, without HTTP.
type LocalTransport struct {
	Relay Relayer
}

func (t LocalTransport) Send(ctx context.Context, conversation []domain.Message) (chat.Stream, error) {
	return t.Relay.Relay(ctx, conversation)
}
