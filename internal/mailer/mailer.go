package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/espartina/boletin/internal/config"
	"github.com/espartina/boletin/internal/metrics"
)

const plainFallback = "Este email requiere un cliente que soporte HTML."

// Mailer submits digest emails over STARTTLS, authenticating as the
// from-address.
type Mailer struct {
	host     string
	port     int
	from     string
	password string
}

func New(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTP.Host,
		port:     cfg.SMTP.Port,
		from:     cfg.EmailFrom,
		password: cfg.EmailPassword,
	}
}

// Recipients resolves where the digest goes: in test mode everything is
// routed back to the from-address.
func Recipients(cfg *config.Config) []string {
	if cfg.TestMode {
		slog.Info("TEST MODE: routing mail to sender", "recipient", cfg.EmailFrom)
		return []string{cfg.EmailFrom}
	}
	return cfg.RecipientsTo()
}

// Subject returns the digest subject line for the given day.
func Subject(now time.Time) string {
	return fmt.Sprintf("Principales resoluciones del Boletín Oficial - %s", now.Format("02/01/2006"))
}

// Send delivers an HTML body (with a plain-text fallback part) to the given
// recipients.
func (m *Mailer) Send(ctx context.Context, recipients []string, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(recipients...); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, plainFallback)
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(m.host,
		mail.WithPort(m.port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(m.from),
		mail.WithPassword(m.password),
	)
	if err != nil {
		return fmt.Errorf("building smtp client: %w", err)
	}

	slog.Info("sending email", "recipients", len(recipients), "host", m.host)
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	metrics.EmailsSentTotal.Add(1)
	slog.Info("email sent")
	return nil
}
