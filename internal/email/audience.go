package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"github.com/daghondi/ghondiclaude.tech/internal/logger"
)

// Audience mirrors verified subscribers into the provider's contact list,
// so broadcasts can be sent from the provider dashboard.
type Audience interface {
	Add(ctx context.Context, email, name string) error
}

// NoopAudience is used when no provider audience is configured.
type NoopAudience struct{}

func (NoopAudience) Add(ctx context.Context, email, name string) error { return nil }

type ResendAudience struct {
	client     *resend.Client
	audienceID string
}

// NewAudience returns a Resend audience when both key and audience ID are set.
func NewAudience(apiKey, audienceID string) Audience {
	if apiKey == "" || audienceID == "" {
		return NoopAudience{}
	}
	return &ResendAudience{
		client:     resend.NewClient(apiKey),
		audienceID: audienceID,
	}
}

func (a *ResendAudience) Add(ctx context.Context, email, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &resend.CreateContactRequest{
		Email:      email,
		AudienceId: a.audienceID,
		FirstName:  name,
	}

	_, err := a.client.Contacts.Create(params)
	if err != nil {
		return fmt.Errorf("resend audience: %w", err)
	}

	slog.Info("audience contact added", "to", logger.RedactEmail(email))
	return nil
}
