package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/sendbulk-reconciler/internal/config"
)

type sendFunc func(addr string, auth smtp.Auth, e *email.Email) error

// EmailSender forwards notifications to the operations mailbox over SMTP.
// The original target is kept in the subject so operators can follow up.
type EmailSender struct {
	addr string
	auth smtp.Auth
	from string
	to   string
	send sendFunc
}

func NewEmailSender(cfg *config.NotificationConfig) *EmailSender {
	return &EmailSender{
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		auth: smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost),
		from: cfg.EmailFrom,
		to:   cfg.OpsEmail,
		send: func(addr string, auth smtp.Auth, e *email.Email) error {
			return e.Send(addr, auth)
		},
	}
}

func (s *EmailSender) Name() string { return "email" }

func (s *EmailSender) Send(ctx context.Context, target, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(s.addr, s.auth, s.message(target, text)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (s *EmailSender) message(target, text string) *email.Email {
	e := email.NewEmail()
	e.From = s.from
	e.To = []string{s.to}
	e.Subject = fmt.Sprintf("Bulk SMS outcome for %s", target)
	e.Text = []byte(text)
	return e
}
