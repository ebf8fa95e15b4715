package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramSink sends Markdown messages through the Telegram Bot API.
type TelegramSink struct {
	bot *bot.Bot
}

func NewTelegramSink(token string) (*TelegramSink, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return &TelegramSink{bot: b}, nil
}

func (s *TelegramSink) Send(ctx context.Context, target Target, text string) error {
	params := &bot.SendMessageParams{
		ChatID:    target.ChatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
	}
	if target.ThreadID != 0 {
		params.MessageThreadID = target.ThreadID
	}

	if _, err := s.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("telegram send to chat %d: %w", target.ChatID, err)
	}
	return nil
}
