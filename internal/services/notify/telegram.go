package notify

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// TelegramConfig configures the optional Telegram mirror sink.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// TelegramSink mirrors fired notifications to a Telegram chat, for the times
// nobody is within earshot of the assistant.
type TelegramSink struct {
	bot  *tele.Bot
	chat tele.ChatID
}

func NewTelegramSink(cfg TelegramConfig) (*TelegramSink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	// Send-only: no poller, no handlers.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &TelegramSink{bot: b, chat: tele.ChatID(cfg.ChatID)}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, msg string) error {
	// telebot's API calls don't take a context; honor cancellation before
	// the call and keep the call itself bounded by the bot's HTTP timeout.
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(s.chat, msg, &tele.SendOptions{DisableWebPagePreview: true})
	return err
}
