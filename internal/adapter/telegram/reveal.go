package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// reveal shows a streaming reply in one Telegram message, editing it as
// chunks arrive but no more often than editInterval.
type reveal struct {
	bot     *Bot
	chatID  int64
	replyTo int

	messageID int
	shown     string
	lastEdit  int64
}

func (r *reveal) started() bool {
	return r.messageID != 0
}

func (r *reveal) update(reply string) {
	preview := splitText(reply, messageLimit)[0]
	if preview == "" || preview == r.shown {
		return
	}

	now := r.bot.now().UnixNano()
	if !r.started() {
		msg := tgbotapi.NewMessage(r.chatID, preview)
		msg.ReplyToMessageID = r.replyTo
		sent, err := r.bot.out.Send(msg)
		if err != nil {
			r.bot.logger.Warn().Err(err).Msg("failed to start reply")
			return
		}
		r.messageID = sent.MessageID
		r.shown = preview
		r.lastEdit = now
		return
	}

	if now-r.lastEdit < int64(editInterval) {
		return
	}
	r.edit(preview)
	r.lastEdit = now
}

// finish writes the complete reply, continuing in new messages past the
// Telegram size limit.
func (r *reveal) finish(reply string) {
	if reply == "" {
		reply = placeholder
	}
	if !r.started() {
		r.bot.sendText(r.chatID, r.replyTo, reply)
		return
	}

	parts := splitText(reply, messageLimit)
	if parts[0] != r.shown {
		r.edit(parts[0])
	}
	for _, part := range parts[1:] {
		if _, err := r.bot.out.Send(tgbotapi.NewMessage(r.chatID, part)); err != nil {
			r.bot.logger.Warn().Err(err).Msg("failed to send reply continuation")
		}
	}
}

func (r *reveal) edit(text string) {
	if _, err := r.bot.out.Request(tgbotapi.NewEditMessageText(r.chatID, r.messageID, text)); err != nil {
		r.bot.logger.Debug().Err(err).Msg("failed to edit reply")
		return
	}
	r.shown = text
}
