package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"github.com/daghondi/ghondiclaude.tech/internal/logger"
)

type ResendSender struct {
	client *resend.Client
	from   From
}

func NewResendSender(apiKey string, from From) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *ResendSender) Name() string { return ProviderResend }

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from.String(),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}

	slog.Info("email sent", "provider", ProviderResend, "type", msg.Tag, "to", logger.RedactEmail(msg.To))
	return nil
}
