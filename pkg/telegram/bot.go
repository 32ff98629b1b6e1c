package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Bot sends plain text messages to a single operations chat.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewBot authorizes token with the Telegram API. Messages go to chatID.
func NewBot(token string, chatID int64) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logrus.WithField("bot", api.Self.UserName).Info("Telegram bot authorized")
	return &Bot{api: api, chatID: chatID}, nil
}

func (b *Bot) SendMessage(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.chatID == 0 {
		return fmt.Errorf("telegram chat id is not configured")
	}

	msg := tgbotapi.NewMessage(b.chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
