// Package email delivers transactional messages through a configurable provider.
package email

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	ProviderLog      = "log"
	ProviderResend   = "resend"
	ProviderSES      = "ses"
	ProviderSendGrid = "sendgrid"
)

// Message is a single outgoing email. Text is always set; HTML is optional.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	ReplyTo string
	// Tag names the message kind in logs ("verify", "welcome", ...).
	Tag string
}

// Sender delivers one message. Implementations must honor ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// From is the envelope sender shared by all providers.
type From struct {
	Email string
	Name  string
}

func (f From) String() string {
	if f.Name == "" {
		return f.Email
	}
	return fmt.Sprintf("%s <%s>", f.Name, f.Email)
}

// Options carries provider credentials, usually copied from config.
type Options struct {
	Provider       string
	From           From
	ResendAPIKey   string
	SendGridAPIKey string
	SESRegion      string
	SESAccessKey   string
	SESSecretKey   string
}

// NewSender creates the sender named by opts.Provider
func NewSender(ctx context.Context, opts Options) (Sender, error) {
	slog.Info("initializing email provider", "provider", opts.Provider)

	switch opts.Provider {
	case ProviderLog, "":
		return NewLogSender(), nil

	case ProviderResend:
		if opts.ResendAPIKey == "" {
			return nil, fmt.Errorf("RESEND_API_KEY is required when using Resend provider")
		}
		return NewResendSender(opts.ResendAPIKey, opts.From), nil

	case ProviderSES:
		if opts.SESAccessKey == "" || opts.SESSecretKey == "" {
			return nil, fmt.Errorf("SES_ACCESS_KEY and SES_SECRET_KEY are required when using SES provider")
		}
		return NewSESSender(ctx, opts.SESRegion, opts.SESAccessKey, opts.SESSecretKey, opts.From)

	case ProviderSendGrid:
		if opts.SendGridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required when using SendGrid provider")
		}
		return NewSendGridSender(opts.SendGridAPIKey, opts.From), nil

	default:
		return nil, fmt.Errorf("unknown email provider: %s (supported: log, resend, ses, sendgrid)", opts.Provider)
	}
}
