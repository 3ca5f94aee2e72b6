package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/AlexandroFSD/price-tracker/internal/domain"
	"github.com/AlexandroFSD/price-tracker/logger"
	trkerr "github.com/AlexandroFSD/price-tracker/pkg/errors"
)

// EmailSettings holds the SMTP configuration for the email channel.
type EmailSettings struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// EmailNotifier sends alerts as a plain-text email over SMTP. Only implicit
// TLS (465) and STARTTLS (587) are supported; anything else would mean
// credentials on the wire in the clear.
type EmailNotifier struct {
	settings EmailSettings
	log      *logger.Logger
}

// NewEmailNotifier creates the email channel from its settings.
func NewEmailNotifier(settings EmailSettings) *EmailNotifier {
	return &EmailNotifier{
		settings: settings,
		log:      logger.ForComponent("notifier.email"),
	}
}

func (e *EmailNotifier) ChannelName() string {
	return "email"
}

func (e *EmailNotifier) IsConfigured() bool {
	s := e.settings
	return s.Host != "" && s.Port != 0 && s.Username != "" && s.Password != "" &&
		s.From != "" && len(s.Recipients) > 0
}

// Send delivers one email carrying the whole alert batch.
func (e *EmailNotifier) Send(ctx context.Context, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if !e.IsConfigured() {
		return trkerr.NewNotification("", "email channel is not configured", nil)
	}

	subject := fmt.Sprintf("Price alert: %d item(s) reached their target", len(alerts))
	message := composeMessage(e.settings.From, e.settings.Recipients, subject, composeBody(alerts))

	if err := e.deliver(ctx, message); err != nil {
		return trkerr.NewNotification("", "failed to send alert email", err)
	}

	e.log.Info().Int("alerts", len(alerts)).Int("recipients", len(e.settings.Recipients)).Msg("Alert email sent")
	return nil
}

func composeMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// deliver connects, authenticates and submits the message. The connection
// style depends on the port: 465 expects TLS from the first byte, 587
// upgrades with STARTTLS.
func (e *EmailNotifier) deliver(ctx context.Context, message []byte) error {
	s := e.settings
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

	var client *smtp.Client
	switch s.Port {
	case 465:
		conn, err := (&tls.Dialer{
			NetDialer: &net.Dialer{},
			Config:    &tls.Config{ServerName: s.Host},
		}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("TLS dial failed: %w", err)
		}
		client, err = smtp.NewClient(conn, s.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("SMTP handshake failed: %w", err)
		}
	case 587:
		conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("dial failed: %w", err)
		}
		client, err = smtp.NewClient(conn, s.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("SMTP handshake failed: %w", err)
		}
		if err := client.StartTLS(&tls.Config{ServerName: s.Host}); err != nil {
			client.Close()
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	default:
		return fmt.Errorf("unsupported SMTP port %d (use 465 or 587)", s.Port)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth failed: %w", err)
	}

	if err := client.Mail(s.From); err != nil {
		return fmt.Errorf("MAIL FROM rejected: %w", err)
	}
	for _, rcpt := range s.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s rejected: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA rejected: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	return client.Quit()
}
