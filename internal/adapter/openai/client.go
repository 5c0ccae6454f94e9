package openai

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	openaiapi "github.com/sashabaranov/go-openai"

	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/usecase/chat"
)

type Client struct {
	api *openaiapi.Client
}

type Option func(*openaiapi.ClientConfig)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(cfg *openaiapi.ClientConfig) {
		if strings.TrimSpace(url) != "" {
			cfg.BaseURL = strings.TrimRight(url, "/")
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(cfg *openaiapi.ClientConfig) {
		cfg.HTTPClient = c
	}
}

func NewClient(token string, opts ...Option) *Client {
	cfg := openaiapi.DefaultConfig(token)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		api: openaiapi.NewClientWithConfig(cfg),
	}
}

func (c *Client) Stream(ctx context.Context, req chat.CompletionRequest) (chat.Stream, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("at least one message must be provided")
	}

	apiReq := openaiapi.ChatCompletionRequest{
		Model:               req.Model,
		MaxCompletionTokens: req.MaxOutputTokens,
		Stream:              true,
		Messages:            toAPIMessages(req.Messages),
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, apiReq)
	if err != nil {
		return nil, errors.Wrap(err, "open chat completion stream")
	}
	return &completionStream{stream: stream}, nil
}

func toAPIMessages(msgs []domain.Message) []openaiapi.ChatCompletionMessage {
	res := make([]openaiapi.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		res = append(res, openaiapi.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return res
}

// completionStream adapts the SDK stream to chat.Stream, skipping role-only
// and empty deltas.
type completionStream struct {
	stream *openaiapi.ChatCompletionStream
	finish string
}

func (s *completionStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", errors.Wrap(err, "receive chat completion chunk")
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		if choice.FinishReason != "" {
			s.finish = string(choice.FinishReason)
		}
		if choice.Delta.Content == "" {
			continue
		}
		return choice.Delta.Content, nil
	}
}

func (s *completionStream) Close() error {
	return s.stream.Close()
}

func (s *completionStream) FinishReason() string {
	return s.finish
}
