package notifier

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/AlexandroFSD/price-tracker/internal/domain"
	"github.com/AlexandroFSD/price-tracker/logger"
	trkerr "github.com/AlexandroFSD/price-tracker/pkg/errors"
)

// telegramMessageLimit is the hard cap Telegram puts on one message.
const telegramMessageLimit = 4096

// TelegramNotifier sends alerts to a Telegram chat through a bot.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *logger.Logger
}

// NewTelegramNotifier creates the telegram channel. With an empty token or
// zero chat id it returns an unconfigured notifier instead of an error, so
// the channel can simply be absent from a deployment.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	n := &TelegramNotifier{
		chatID: chatID,
		log:    logger.ForComponent("notifier.telegram"),
	}
	if token == "" || chatID == 0 {
		return n, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, trkerr.NewConfiguration("invalid telegram bot token", err)
	}
	bot.Debug = false
	n.bot = bot
	n.log.Info().Str("bot", bot.Self.UserName).Msg("Telegram bot authorized")
	return n, nil
}

func (t *TelegramNotifier) ChannelName() string {
	return "telegram"
}

func (t *TelegramNotifier) IsConfigured() bool {
	return t.bot != nil && t.chatID != 0
}

// Send delivers the alert batch as one message, truncated to Telegram's
// limit.
func (t *TelegramNotifier) Send(ctx context.Context, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if !t.IsConfigured() {
		return trkerr.NewNotification("", "telegram channel is not configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return trkerr.NewNotification("", "canceled before telegram send", err)
	}

	msg := tgbotapi.NewMessage(t.chatID, truncateMessage(composeBody(alerts), telegramMessageLimit))
	if _, err := t.bot.Send(msg); err != nil {
		return trkerr.NewNotification("", "failed to send telegram message", err)
	}

	t.log.Info().Int("alerts", len(alerts)).Msg("Telegram alert sent")
	return nil
}

// truncateMessage caps text at limit characters. It prefers cutting at the
// last line break before limit-50 so the message does not end mid-alert, and
// marks the cut with an ellipsis line.
func truncateMessage(text string, limit int) string {
	if len(text) <= limit {
		return text
	}

	cut := limit - 50
	if idx := strings.LastIndex(text[:cut], "\n"); idx > 0 {
		cut = idx
	}
	return text[:cut] + "\n..."
}
