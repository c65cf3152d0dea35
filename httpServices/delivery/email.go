package delivery

import (
	"context"
	"crypto/tls"
	"fmt"

	"thaliya-gateway/config"
	"thaliya-gateway/logger"

	mail "github.com/go-mail/mail"
)

// EmailSender delivers OTP codes over SMTP.
type EmailSender struct {
	host string
	port int
	user string
	pass string
	from string
}

func NewEmailSender(cfg *config.Config) *EmailSender {
	return &EmailSender{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		from: cfg.SMTPFrom,
	}
}

// SendOTP sends the verification code as a plain-text email.
func (s *EmailSender) SendOTP(ctx context.Context, identifier, channel, code string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", identifier)
	m.SetHeader("Subject", "Your verification code")
	m.SetBody("text/plain", fmt.Sprintf(
		"Your verification code is: %s\n\nThis code expires in a few minutes. If you did not request it, you can ignore this email.",
		code,
	))

	d := mail.NewDialer(s.host, s.port, s.user, s.pass)
	d.TLSConfig = &tls.Config{ServerName: s.host}

	done := make(chan error, 1)
	go func() {
		done <- d.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to send OTP email to %s", identifier), err)
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
