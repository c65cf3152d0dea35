package delivery

import (
	"context"
	"fmt"

	"thaliya-gateway/config"
	"thaliya-gateway/logger"
)

// Sender delivers a one-time passcode to a contact identifier over a
// channel ("email" or "sms"). Implementations must not persist the code.
type Sender interface {
	SendOTP(ctx context.Context, identifier, channel, code string) error
}

// Router dispatches to the channel-specific sender.
type Router struct {
	Email Sender
	SMS   Sender
}

// NewRouter builds the delivery stack from config. Channels without
// provider settings fall back to a log-only sender so development
// environments work without SMTP or an SMS account.
func NewRouter(cfg *config.Config) *Router {
	r := &Router{}

	if cfg.SMTPHost != "" {
		r.Email = NewEmailSender(cfg)
	} else {
		logger.Warning("SMTP not configured, email OTPs will be logged only")
		r.Email = consoleSender{channel: "email"}
	}

	if cfg.SMSAPIURL != "" {
		r.SMS = NewSMSSender(cfg.SMSAPIURL, cfg.SMSAPIKey)
	} else {
		logger.Warning("SMS API not configured, SMS OTPs will be logged only")
		r.SMS = consoleSender{channel: "sms"}
	}

	return r
}

// SendOTP routes the code to the email or SMS sender.
func (r *Router) SendOTP(ctx context.Context, identifier, channel, code string) error {
	switch channel {
	case "email":
		return r.Email.SendOTP(ctx, identifier, channel, code)
	case "sms":
		return r.SMS.SendOTP(ctx, identifier, channel, code)
	default:
		return fmt.Errorf("unknown delivery channel: %s", channel)
	}
}

// consoleSender logs instead of delivering. The code itself is not
// logged in full.
type consoleSender struct {
	channel string
}

func (c consoleSender) SendOTP(ctx context.Context, identifier, channel, code string) error {
	logger.Debug(fmt.Sprintf("OTP delivery skipped (%s not configured) for %s, code ending %s", c.channel, identifier, code[len(code)-2:]))
	return nil
}
