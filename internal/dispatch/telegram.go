package dispatch

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/praxislegal/sentinel/internal/config"
)

// TelegramBot is the subset of tgbotapi.BotAPI the notifier needs
// (allows mocking in tests).
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetSelf() tgbotapi.User
}

type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token string) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token string) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// TelegramNotifier delivers alert payloads to a fixed Telegram chat.
type TelegramNotifier struct {
	bot    TelegramBot
	chatID int64
}

func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithFactory(cfg, defaultBotFactory)
}

// NewTelegramNotifierWithFactory creates a TelegramNotifier with a custom
// bot factory (for testing).
func NewTelegramNotifierWithFactory(cfg config.TelegramConfig, factory BotFactory) (*TelegramNotifier, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}

	bot, err := factory(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	log.Printf("[telegram] authorized as @%s", bot.GetSelf().UserName)

	return &TelegramNotifier{bot: bot, chatID: cfg.ChatID}, nil
}

func (t *TelegramNotifier) Deliver(ctx context.Context, p Payload) error {
	msg := tgbotapi.NewMessage(t.chatID, formatPayload(p))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatPayload(p Payload) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s\n", strings.ToUpper(p.Severity), p.Title)
	if p.Message != "" {
		sb.WriteString(p.Message)
		sb.WriteString("\n")
	}
	if p.URL != "" {
		sb.WriteString(p.URL)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "at %s", p.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	return sb.String()
}

// LogNotifier is the fallback channel when no transport is configured:
// deliveries are written to the process log and always succeed.
type LogNotifier struct{}

func (LogNotifier) Deliver(ctx context.Context, p Payload) error {
	log.Printf("[dispatch] alert %s [%s] %s: %s", p.AlertID, p.Severity, p.Title, p.Message)
	return nil
}
