package email

import (
	"context"
	"log/slog"

	"github.com/daghondi/ghondiclaude.tech/internal/logger"
)

// LogSender prints messages instead of delivering them. Used in development.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Name() string { return ProviderLog }

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.Info("email sent (dev mode)",
		"type", msg.Tag,
		"to", logger.RedactEmail(msg.To),
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
