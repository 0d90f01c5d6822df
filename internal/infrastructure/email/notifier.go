package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/wneessen/go-mail"

	"EasyPriceMonitor/internal/config"
	"EasyPriceMonitor/internal/domain"
	"EasyPriceMonitor/internal/ports"
)

const (
	channelName = "email"
	// Subject is used for every alert message.
	Subject = "[Easy Price Monitor] Alert: Price Change Detected"
)

//go:embed templates
var templatesFs embed.FS

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// Notifier renders consolidated alerts into one multipart message.
type Notifier struct {
	from   string
	to     []string
	sender Sender
	logger *slog.Logger
	now    func() time.Time

	html *htmltemplate.Template
	text *texttemplate.Template
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier parses the embedded templates and binds sender and recipients.
func NewNotifier(cfg config.EmailConfig, sender Sender, log *slog.Logger) (*Notifier, error) {
	html, err := htmltemplate.ParseFS(templatesFs, "templates/alert.html.tpl")
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}
	text, err := texttemplate.ParseFS(templatesFs, "templates/alert.txt.tpl")
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Notifier{
		from:   cfg.From,
		to:     append([]string(nil), cfg.To...),
		sender: sender,
		logger: log,
		now:    time.Now,
		html:   html,
		text:   text,
	}, nil
}

// Channel names the notifier in logs.
func (n *Notifier) Channel() string {
	return channelName
}

// Notify sends exactly one message to every recipient. Nothing is sent when
// alerts is empty. Failures are not retried.
func (n *Notifier) Notify(ctx context.Context, alerts []domain.ConsolidatedAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	msg, err := n.compose(alerts)
	if err != nil {
		return n.sendError(err)
	}

	n.logger.Info("sending alert email", "alerts", len(alerts), "recipients", len(n.to))
	if err := n.sender.Send(ctx, msg); err != nil {
		return n.sendError(err)
	}
	n.logger.Info("alert email sent", "to", n.to)
	return nil
}

type itemView struct {
	Product    string
	Shop       string
	URL        string
	Previous   string
	Current    string
	Difference string
	Percent    string
	Currency   string
	Handlers   string
}

type messageView struct {
	Items     []itemView
	Generated string
}

func (n *Notifier) compose(alerts []domain.ConsolidatedAlert) (*mail.Msg, error) {
	view := messageView{Generated: n.now().Format(time.DateTime)}
	for _, a := range alerts {
		view.Items = append(view.Items, itemView{
			Product:    a.ProductName,
			Shop:       a.ShopName,
			URL:        a.URL,
			Previous:   a.OldPrice.StringFixed(2),
			Current:    a.NewPrice.StringFixed(2),
			Difference: a.Difference().StringFixed(2),
			Percent:    a.PercentChange.Neg().StringFixed(2),
			Currency:   domain.DefaultCurrency,
			Handlers:   strings.Join(a.Handlers, ", "),
		})
	}

	var htmlBody, textBody bytes.Buffer
	if err := n.html.Execute(&htmlBody, view); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	if err := n.text.Execute(&textBody, view); err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, fmt.Errorf("sender %q: %w", n.from, err)
	}
	if err := msg.To(n.to...); err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	msg.Subject(Subject)
	msg.SetBodyString(mail.TypeTextPlain, textBody.String())
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody.String())
	return msg, nil
}

func (n *Notifier) sendError(err error) error {
	return &domain.SendError{Channel: channelName, Recipients: n.to, Err: err}
}
