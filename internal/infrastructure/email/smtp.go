package email

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"EasyPriceMonitor/internal/config"
)

const implicitTLSPort = 465

// SMTPSender dials the configured server for every message. Port 465 uses
// implicit TLS, any other port requires STARTTLS.
type SMTPSender struct {
	cfg     config.EmailConfig
	timeout time.Duration
}

// NewSMTPSender captures the SMTP settings.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, timeout: 30 * time.Second}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(s.cfg.SMTPServer, s.options()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp %s:%d: %w", s.cfg.SMTPServer, s.cfg.SMTPPort, err)
	}
	return nil
}

func (s *SMTPSender) options() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.SMTPPort),
		mail.WithTimeout(s.timeout),
	}
	if s.cfg.SMTPPort == implicitTLSPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if s.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.User),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}
