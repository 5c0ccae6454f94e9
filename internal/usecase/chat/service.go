package chat

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/tokens"
)

var (
	ErrInvalidConversation = errors.New("invalid conversation")
	ErrProvider            = errors.New("provider request failed")
)

// ProviderError carries the provider's own failure and matches ErrProvider.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return ErrProvider.Error() + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

const instrumentationName = "portfolio-assistant/chat"

// Client opens a streamed completion at the provider.
type Client interface {
	Stream(ctx context.Context, req CompletionRequest) (Stream, error)
}

// Stream yields reply chunks in order. Recv returns io.EOF once the reply is
// complete; any other error ends the stream as failed. Close releases the
// upstream and may be called at any time.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type CompletionRequest struct {
	Model           string
	Messages        []domain.Message
	MaxOutputTokens int
}

type Options struct {
	Model           string
	MaxOutputTokens int
	Counter         tokens.Counter
}

type Service struct {
	client       Client
	systemPrompt string
	opts         Options

	tracer   trace.Tracer
	chunks   metric.Int64Counter
	duration metric.Float64Histogram
}

func NewService(client Client, systemPrompt string, opts Options) *Service {
	if opts.Counter == nil {
		opts.Counter = tokens.Runes{}
	}
	meter := otel.Meter(instrumentationName)
	chunks, _ := meter.Int64Counter("chat.relay.chunks",
		metric.WithDescription("Reply chunks relayed to callers"))
	duration, _ := meter.Float64Histogram("chat.relay.duration",
		metric.WithDescription("Relay stream duration in milliseconds"),
		metric.WithUnit("ms"))

	return &Service{
		client:       client,
		systemPrompt: systemPrompt,
		opts:         opts,
		tracer:       otel.Tracer(instrumentationName),
		chunks:       chunks,
		duration:     duration,
	}
}

func (s *Service) SystemPrompt() string {
	return s.systemPrompt
}

// Relay validates conversation, puts the system prompt in front of it and
// opens a capped reply stream at the provider.
func (s *Service) Relay(ctx context.Context, conversation []domain.Message) (Stream, error) {
	if err := Validate(conversation); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "chat.relay", trace.WithAttributes(
		attribute.String("llm.model", s.opts.Model),
		attribute.Int("chat.messages", len(conversation)),
	))

	stream, err := s.client.Stream(ctx, CompletionRequest{
		Model:           s.opts.Model,
		Messages:        s.buildMessages(conversation),
		MaxOutputTokens: s.opts.MaxOutputTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider stream")
		span.End()
		return nil, &ProviderError{Err: err}
	}

	capped := newCappedStream(stream, s.opts.Counter, s.opts.MaxOutputTokens)
	return &tracedStream{
		inner:   capped,
		ctx:     ctx,
		span:    span,
		service: s,
		started: time.Now(),
	}, nil
}

func (s *Service) buildMessages(conversation []domain.Message) []domain.Message {
	messages := make([]domain.Message, 0, len(conversation)+1)
	messages = append(messages, domain.Message{
		Role:    domain.RoleSystem,
		Content: s.systemPrompt,
	})
	return append(messages, conversation...)
}

// Validate reports why conversation cannot be relayed. System turns are
// refused: the system prompt is owned by the relay.
func Validate(conversation []domain.Message) error {
	if len(conversation) == 0 {
		return errors.Wrap(ErrInvalidConversation, "no messages")
	}
	for i, m := range conversation {
		switch m.Role {
		case domain.RoleUser, domain.RoleAssistant:
		default:
			return errors.Wrapf(ErrInvalidConversation, "message %d: unsupported role %q", i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return errors.Wrapf(ErrInvalidConversation, "message %d: empty content", i)
		}
	}
	return nil
}

// Collect drains stream into a single string.
func Collect(stream Stream) (string, error) {
	defer stream.Close()

	var b strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
}

type tracedStream struct {
	inner   Stream
	ctx     context.Context
	span    trace.Span
	service *Service
	started time.Time
	count   int64
	ended   bool
}

func (t *tracedStream) Recv() (string, error) {
	chunk, err := t.inner.Recv()
	if err == nil {
		t.count++
		return chunk, nil
	}
	if !errors.Is(err, io.EOF) {
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, "stream")
	}
	t.end()
	return "", err
}

func (t *tracedStream) Close() error {
	err := t.inner.Close()
	t.end()
	return err
}

func (t *tracedStream) FinishReason() string {
	return FinishReason(t.inner)
}

func (t *tracedStream) end() {
	if t.ended {
		return
	}
	t.ended = true
	t.service.chunks.Add(t.ctx, t.count)
	t.service.duration.Record(t.ctx, float64(time.Since(t.started).Milliseconds()))
	t.span.SetAttributes(attribute.Int64("chat.chunks", t.count))
	t.span.End()
}
