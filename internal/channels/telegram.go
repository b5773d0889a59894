package channels

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/batterybuildsog1/Project-manager/internal/models"
)

// TelegramConfig configures the Telegram delivery adapter.
type TelegramConfig struct {
	Token     string
	ChatID    int64
	ParseMode string

	// Silent suppresses the client-side notification sound for this
	// adapter's messages (used for the weekly report instance).
	Silent bool
}

// Telegram delivers messages to a single chat through the Bot API.
type Telegram struct {
	bot    *tele.Bot
	chat   tele.Recipient
	opts   *tele.SendOptions
	silent bool
}

// NewTelegram connects the bot and returns the adapter.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram: token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram: chat id is empty")
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: nil,
	})
	if err != nil {
		return nil, err
	}

	parseMode := cfg.ParseMode
	if parseMode == "" {
		parseMode = tele.ModeMarkdown
	}

	return &Telegram{
		bot:  bot,
		chat: tele.ChatID(cfg.ChatID),
		opts: &tele.SendOptions{
			ParseMode:           parseMode,
			DisableNotification: cfg.Silent,
		},
	}, nil
}

func (t *Telegram) Name() string { return models.ChannelTelegram }

func (t *Telegram) Send(ctx context.Context, text string) error {
	// telebot manages its own HTTP timeout; only cancellation is honored here.
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := t.bot.Send(t.chat, text, t.opts)
	return err
}
