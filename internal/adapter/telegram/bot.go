package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"portfolio-assistant/internal/adapter/memory"
	"portfolio-assistant/internal/client"
	"portfolio-assistant/internal/config"
	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/profile"
)

const (
	messageLimit = 4096
	editInterval = time.Second
	placeholder  = "…"
)

// messenger is the part of *tgbotapi.BotAPI the bot talks through.
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	api      *tgbotapi.BotAPI
	out      messenger
	cfg      config.Config
	relay    client.Relayer
	profile  profile.Profile
	sessions domain.SessionStore[*session]
	logger   zerolog.Logger
	now      func() time.Time
}

func NewBot(cfg config.Config, relay client.Relayer, p profile.Profile, logger zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, errors.Wrap(err, "connect telegram bot")
	}
	b := newBot(api, cfg, relay, p, memory.NewStore[*session](), logger)
	b.api = api
	return b, nil
}

func newBot(out messenger, cfg config.Config, relay client.Relayer, p profile.Profile, sessions domain.SessionStore[*session], logger zerolog.Logger) *Bot {
	return &Bot{
		out:      out,
		cfg:      cfg,
		relay:    relay,
		profile:  p,
		sessions: sessions,
		logger:   logger.With().Str("component", "telegram").Logger(),
		now:      time.Now,
	}
}

// Run polls for updates until ctx is cancelled. Each message is handled on
// its own goroutine; idle chats are swept every minute.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	b.logger.Info().Str("bot", b.api.Self.UserName).Msg("polling for updates")
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sweep.C:
			if n := b.sessions.Sweep(b.cfg.SessionTTL); n > 0 {
				b.logger.Debug().Int("chats", n).Msg("dropped idle conversations")
			}
		case update := <-updates:
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer wg.Done()
				b.handleMessage(ctx, msg)
			}(update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !isAllowedUser(msg.From.ID, b.cfg) {
		b.sendText(msg.Chat.ID, msg.MessageID, "access denied")
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch command(text) {
	case "/start", "/help":
		b.sendWelcome(msg.Chat.ID)
		return
	case "/reset":
		b.sessions.Drop(msg.Chat.ID)
		b.sendText(msg.Chat.ID, msg.MessageID, "conversation cleared")
		return
	}

	s := b.sessions.GetOrCreate(msg.Chat.ID, func() *session {
		return newSession(client.LocalTransport{Relay: b.relay})
	})
	if !s.answering.TryLock() {
		b.sendText(msg.Chat.ID, msg.MessageID, "still answering your previous question")
		return
	}
	defer s.answering.Unlock()

	b.answer(ctx, s, msg, text)
}

func (b *Bot) answer(ctx context.Context, s *session, msg *tgbotapi.Message, text string) {
	if _, err := b.out.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug().Err(err).Msg("failed to send chat action")
	}

	r := &reveal{bot: b, chatID: msg.Chat.ID, replyTo: msg.MessageID}
	s.setObserver(r.update)
	defer s.setObserver(nil)

	err := s.client.Submit(ctx, text)
	switch {
	case errors.Is(err, client.ErrEmptyInput):
		b.sendText(msg.Chat.ID, msg.MessageID, "i need some content to work with")
		return
	case errors.Is(err, client.ErrBusy):
		b.sendText(msg.Chat.ID, msg.MessageID, "still answering your previous question")
		return
	}

	reply, _ := s.client.LastReply()
	if err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("reply failed")
		if !r.started() {
			b.sendText(msg.Chat.ID, msg.MessageID, "failed to reach the assistant, try again later")
			return
		}
		reply += "\n\n(reply interrupted)"
	}
	r.finish(reply)
}

func (b *Bot) sendWelcome(chatID int64) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hi! I'm the assistant of %s", b.profile.Name)
	if b.profile.Title != "" {
		fmt.Fprintf(&sb, ", %s", b.profile.Title)
	}
	sb.WriteString(". Ask me anything about their background or work, or pick a question below. Send /reset to start over.")

	msg := tgbotapi.NewMessage(chatID, sb.String())
	if len(b.profile.SuggestedQuestions) > 0 {
		rows := make([][]tgbotapi.KeyboardButton, 0, len(b.profile.SuggestedQuestions))
		for _, q := range b.profile.SuggestedQuestions {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(q)))
		}
		keyboard := tgbotapi.NewReplyKeyboard(rows...)
		keyboard.ResizeKeyboard = true
		msg.ReplyMarkup = keyboard
	}
	if _, err := b.out.Send(msg); err != nil {
		b.logger.Warn().Err(err).Msg("failed to send welcome")
	}
}

func (b *Bot) sendText(chatID int64, replyTo int, text string) {
	for idx, chunk := range splitText(text, messageLimit) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if idx == 0 {
			msg.ReplyToMessageID = replyTo
		}
		if _, err := b.out.Send(msg); err != nil {
			b.logger.Warn().Err(err).Msg("failed to send reply")
		}
	}
}

func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(text, " ")
	// "/start@portfolio_bot" in group chats
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd)
}

func isAllowedUser(userID int64, cfg config.Config) bool {
	for _, id := range cfg.AdminUserIDs {
		if id == userID {
			return true
		}
	}

	if len(cfg.AllowedUserIDs) == 0 {
		return true
	}

	for _, id := range cfg.AllowedUserIDs {
		if id == userID {
			return true
		}
	}

	return false
}

func splitText(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		return []string{text}
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	chunks := make([]string, 0, len(runes)/chunkSize+1)
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks
}
