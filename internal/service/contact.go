package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/daghondi/ghondiclaude.tech/internal/events"
	"github.com/daghondi/ghondiclaude.tech/internal/logger"
	"github.com/daghondi/ghondiclaude.tech/internal/model"
	"github.com/daghondi/ghondiclaude.tech/internal/repository"
	"github.com/daghondi/ghondiclaude.tech/internal/token"
	"github.com/daghondi/ghondiclaude.tech/internal/validation"
)

const MessageContactReceived = "Thanks for reaching out! I'll get back to you soon."

type ContactInput struct {
	Name    string
	Email   string
	Subject string
	Message string
	Source  string
}

type ContactService struct {
	store         repository.ContactStore
	email         *EmailService
	events        events.Publisher
	notifyTimeout time.Duration
}

func NewContactService(store repository.ContactStore, emailService *EmailService, publisher events.Publisher, notifyTimeout time.Duration) *ContactService {
	return &ContactService{
		store:         store,
		email:         emailService,
		events:        publisher,
		notifyTimeout: positiveOr(notifyTimeout, DefaultNotifyTimeout),
	}
}

// Submit validates and stores a contact message, then notifies the owner.
// The owner email is best-effort once the message is stored.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (*model.ContactMessage, error) {
	name := validation.NormalizeName(in.Name)
	if err := validation.ValidateName(name); err != nil {
		return nil, invalid("name", err)
	}

	address := validation.NormalizeEmail(in.Email)
	if err := validation.ValidateEmail(address); err != nil {
		return nil, invalid("email", err)
	}

	subject := strings.TrimSpace(in.Subject)
	if err := validation.ValidateSubject(subject); err != nil {
		return nil, invalid("subject", err)
	}

	if err := validation.ValidateMessage(in.Message); err != nil {
		return nil, invalid("message", err)
	}

	source := validation.NormalizeSource(in.Source)
	if err := validation.ValidateSource(source); err != nil {
		return nil, invalid("source", err)
	}

	msg := &model.ContactMessage{
		Name:    name,
		Email:   address,
		Message: strings.TrimSpace(in.Message),
		Source:  source,
	}
	if subject != "" {
		msg.Subject = &subject
	}

	if err := s.store.Save(ctx, msg); err != nil {
		return nil, storeErr("save contact message", err)
	}

	slog.Info("contact message received", "id", msg.ID, "email", logger.RedactEmail(address), "source", source)
	publish(ctx, s.events, events.New(events.ContactReceived, token.Digest(address), map[string]string{
		"id":     msg.ID,
		"source": source,
	}))

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.email.SendContactNotification(nctx, msg); err != nil {
		nerr := &NotificationError{Template: "contact", Err: err}
		slog.Error("notification failed", "error", nerr, "id", msg.ID)
		publish(ctx, s.events, events.New(events.NotificationFailed, token.Digest(address), map[string]string{
			"template": "contact",
			"id":       msg.ID,
		}))
	}

	return msg, nil
}
