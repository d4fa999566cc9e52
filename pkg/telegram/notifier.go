package telegram

import (
	"context"
	"fmt"
	"strconv"

	"options-analytics/config"
	"options-analytics/pkg/logger"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// Notifier pushes alert messages to a single configured Telegram chat.
type Notifier struct {
	cfg     *config.TelegramConfig
	log     *logger.Logger
	bot     *telebot.Bot
	chat    *telebot.Chat
	limiter *rate.Limiter
}

func NewNotifier(cfg *config.TelegramConfig, log *logger.Logger, bot *telebot.Bot) (*Notifier, error) {
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}

	return &Notifier{
		cfg:     cfg,
		log:     log,
		bot:     bot,
		chat:    &telebot.Chat{ID: chatID},
		limiter: rate.NewLimiter(rate.Limit(1), 5), // Telegram allows ~1 msg/sec per chat
	}, nil
}

func (n *Notifier) Send(ctx context.Context, message string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := n.bot.Send(n.chat, message, telebot.ModeMarkdown)
	if err != nil {
		n.log.ErrorContext(ctx, "Failed to send telegram notification", logger.ErrorField(err))
		return err
	}
	return nil
}
