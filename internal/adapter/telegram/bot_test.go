package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-assistant/internal/adapter/memory"
	"portfolio-assistant/internal/config"
	"portfolio-assistant/internal/profile"
	"portfolio-assistant/internal/usecase/chat"
	"portfolio-assistant/internal/usecase/chat/chattest"
)

type fakeMessenger struct {
	mu     sync.Mutex
	nextID int
	sent   []tgbotapi.Chattable
}

func (f *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeMessenger) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, "send:"+m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, "edit:"+m.Text)
		}
	}
	return out
}

func newTestBot(t *testing.T, provider *chattest.Client, cfg config.Config) (*Bot, *fakeMessenger) {
	t.Helper()
	p, err := profile.Default()
	require.NoError(t, err)
	svc := chat.NewService(provider, p.SystemPrompt, chat.Options{MaxOutputTokens: 10000})
	out := &fakeMessenger{}
	b := newBot(out, cfg, svc, p, memory.NewStore[*session](), zerolog.Nop())
	return b, out
}

func message(chatID, userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 100,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: userID},
	}
}

func TestAnswerRevealsAndFinishes(t *testing.T) {
	provider := &chattest.Client{Reply: chattest.NewStream("Hel", "lo", " there")}
	b, out := newTestBot(t, provider, config.Config{})
	// frozen clock: only the first chunk is shown before the final edit
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return frozen }

	b.handleMessage(context.Background(), message(1, 7, "Tell me about your education"))

	assert.Equal(t, []string{"send:Hel", "edit:Hello there"}, out.texts())
}

func TestConversationPersistsPerChat(t *testing.T) {
	provider := &chattest.Client{Reply: chattest.NewStream("one")}
	b, _ := newTestBot(t, provider, config.Config{})

	b.handleMessage(context.Background(), message(1, 7, "first"))
	provider.Reply = chattest.NewStream("two")
	b.handleMessage(context.Background(), message(1, 7, "second"))
	provider.Reply = chattest.NewStream("other")
	b.handleMessage(context.Background(), message(2, 8, "hello"))

	reqs := provider.Requests()
	require.Len(t, reqs, 3)
	assert.Len(t, reqs[1].Messages, 4) // system, first, one, second
	assert.Len(t, reqs[2].Messages, 2)

	b.handleMessage(context.Background(), message(1, 7, "/reset"))
	provider.Reply = chattest.NewStream("fresh")
	b.handleMessage(context.Background(), message(1, 7, "again"))
	assert.Len(t, provider.Requests()[3].Messages, 2)
}

func TestProviderFailureReportsError(t *testing.T) {
	b, out := newTestBot(t, &chattest.Client{Err: errors.New("quota")}, config.Config{})
	b.handleMessage(context.Background(), message(1, 7, "hi"))
	assert.Equal(t, []string{"send:failed to reach the assistant, try again later"}, out.texts())
}

func TestInterruptedReplyIsMarked(t *testing.T) {
	provider := &chattest.Client{Reply: &chattest.Stream{Chunks: []string{"Hel"}, Err: errors.New("reset")}}
	b, out := newTestBot(t, provider, config.Config{})
	b.handleMessage(context.Background(), message(1, 7, "hi"))

	texts := out.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "send:Hel", texts[0])
	assert.Equal(t, "edit:Hel\n\n(reply interrupted)", texts[1])
}

func TestEmptyMessageIsRejected(t *testing.T) {
	provider := &chattest.Client{}
	b, out := newTestBot(t, provider, config.Config{})
	b.handleMessage(context.Background(), message(1, 7, "   "))
	assert.Equal(t, []string{"send:i need some content to work with"}, out.texts())
	assert.Empty(t, provider.Requests())
}

func TestStartShowsSuggestedQuestions(t *testing.T) {
	b, out := newTestBot(t, &chattest.Client{}, config.Config{})
	b.handleMessage(context.Background(), message(1, 7, "/start@portfolio_bot"))

	require.Len(t, out.sent, 1)
	msg, ok := out.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, b.profile.Name)
	keyboard, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.Len(t, keyboard.Keyboard, len(b.profile.SuggestedQuestions))
	assert.Equal(t, b.profile.SuggestedQuestions[0], keyboard.Keyboard[0][0].Text)
}

func TestAccessDenied(t *testing.T) {
	provider := &chattest.Client{}
	b, out := newTestBot(t, provider, config.Config{AllowedUserIDs: []int64{1}, AdminUserIDs: []int64{2}})

	b.handleMessage(context.Background(), message(1, 3, "hi"))
	assert.Equal(t, []string{"send:access denied"}, out.texts())
	assert.Empty(t, provider.Requests())

	assert.True(t, isAllowedUser(2, b.cfg))
	assert.True(t, isAllowedUser(1, b.cfg))
	assert.True(t, isAllowedUser(99, config.Config{}))
}

func TestLongReplyContinuesInNewMessages(t *testing.T) {
	long := strings.Repeat("a", messageLimit+10)
	b, out := newTestBot(t, &chattest.Client{Reply: chattest.NewStream(long)}, config.Config{})
	b.handleMessage(context.Background(), message(1, 7, "hi"))

	texts := out.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "send:"+long[:messageLimit], texts[0])
	assert.Equal(t, "send:"+strings.Repeat("a", 10), texts[1])
}

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{"abc"}, splitText("abc", 0))
	assert.Equal(t, []string{"ab", "c"}, splitText("abc", 2))
	assert.Equal(t, []string{"жж", "ж"}, splitText("жжж", 2))
}

func TestCommand(t *testing.T) {
	assert.Equal(t, "/start", command("/START now"))
	assert.Equal(t, "/reset", command("/reset@bot"))
	assert.Equal(t, "", command("hello /start"))
}
