package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"EasyPriceMonitor/internal/domain"
	"EasyPriceMonitor/internal/ports"
)

const channelName = "telegram"

// Notifier sends the consolidated alerts to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	endpoint string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		endpoint: tgbotapi.APIEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Channel names the notifier in logs.
func (n *Notifier) Channel() string {
	return channelName
}

// Notify posts a single message listing every alert. Empty input is a no-op.
func (n *Notifier) Notify(ctx context.Context, alerts []domain.ConsolidatedAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return n.sendError(err)
	}
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return n.sendError(fmt.Errorf("telegram notifier misconfigured"))
	}

	chatID, err := strconv.ParseInt(n.chatID, 10, 64)
	if err != nil {
		return n.sendError(fmt.Errorf("chat id %q: %w", n.chatID, err))
	}

	bot, err := tgbotapi.NewBotAPIWithClient(n.botToken, n.endpoint, n.client)
	if err != nil {
		return n.sendError(fmt.Errorf("connect bot: %w", err))
	}

	msg := tgbotapi.NewMessage(chatID, FormatAlerts(alerts))
	msg.DisableWebPagePreview = true
	if _, err := bot.Send(msg); err != nil {
		return n.sendError(fmt.Errorf("send message: %w", err))
	}
	return nil
}

// FormatAlerts renders alerts as plain text, one block per product.
func FormatAlerts(alerts []domain.ConsolidatedAlert) string {
	var b strings.Builder
	b.WriteString("Price Change Detected\n")
	for _, a := range alerts {
		fmt.Fprintf(&b, "\n%s at %s: %s %s (-%s%%)\nnow %s %s, was %s\n",
			a.ProductName, a.ShopName,
			a.Difference().StringFixed(2), domain.DefaultCurrency, a.PercentChange.StringFixed(2),
			a.NewPrice.StringFixed(2), domain.DefaultCurrency, a.OldPrice.StringFixed(2))
		if a.URL != "" {
			b.WriteString(a.URL)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (n *Notifier) sendError(err error) error {
	return &domain.SendError{Channel: channelName, Recipients: []string{n.chatID}, Err: err}
}
