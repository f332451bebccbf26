package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// telegramMaxText is the Bot API limit for a message body.
const telegramMaxText = 4096

// TelegramSender is the subset of the bot API used here.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts the plain-text version of a message to fixed chats.
type TelegramNotifier struct {
	bot     TelegramSender
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegramNotifier(bot TelegramSender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, logger: logger}
}

func (t *TelegramNotifier) Send(_ context.Context, msg Message) error {
	text := msg.Subject + "\n\n" + msg.Text
	if r := []rune(text); len(r) > telegramMaxText {
		text = string(r[:telegramMaxText-1]) + "…"
	}
	for _, chatID := range t.chatIDs {
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			return fmt.Errorf("telegram send to %d: %w", chatID, err)
		}
	}
	t.logger.Debug().Int("chats", len(t.chatIDs)).Str("subject", msg.Subject).Msg("telegram notification sent")
	return nil
}
