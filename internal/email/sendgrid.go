package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/daghondi/ghondiclaude.tech/internal/logger"
)

// sendGridAPI is the subset of the SendGrid client used here.
type sendGridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridSender struct {
	client sendGridAPI
	from   From
}

func NewSendGridSender(apiKey string, from From) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
	}
}

func (s *SendGridSender) Name() string { return ProviderSendGrid }

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(s.from.Name, s.from.Email)
	to := mail.NewEmail("", msg.To)
	htmlContent := msg.HTML
	if htmlContent == "" {
		// SendGrid rejects empty content blocks
		htmlContent = "<pre>" + html.EscapeString(msg.Text) + "</pre>"
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, htmlContent)
	if msg.ReplyTo != "" {
		message.SetReplyTo(mail.NewEmail("", msg.ReplyTo))
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: unexpected status %d", response.StatusCode)
	}

	slog.Info("email sent", "provider", ProviderSendGrid, "type", msg.Tag, "to", logger.RedactEmail(msg.To))
	return nil
}
