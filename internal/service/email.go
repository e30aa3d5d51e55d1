package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/daghondi/ghondiclaude.tech/internal/email"
	"github.com/daghondi/ghondiclaude.tech/internal/model"
	"github.com/daghondi/ghondiclaude.tech/internal/token"
)

// EmailService renders and sends the transactional emails of the site.
type EmailService struct {
	sender      email.Sender
	templates   *email.Templates
	audience    email.Audience
	signer      *token.Signer
	appURL      string
	appName     string
	ownerEmail  string
	tokenExpiry time.Duration
}

func NewEmailService(
	sender email.Sender,
	templates *email.Templates,
	audience email.Audience,
	signer *token.Signer,
	appURL, appName, ownerEmail string,
	tokenExpiry time.Duration,
) *EmailService {
	return &EmailService{
		sender:      sender,
		templates:   templates,
		audience:    audience,
		signer:      signer,
		appURL:      strings.TrimSuffix(appURL, "/"),
		appName:     appName,
		ownerEmail:  ownerEmail,
		tokenExpiry: tokenExpiry,
	}
}

func (s *EmailService) VerifyURL(rawToken string) string {
	return fmt.Sprintf("%s/verify?token=%s", s.appURL, url.QueryEscape(rawToken))
}

func (s *EmailService) UnsubscribeURL(address string) (string, error) {
	signed, err := s.signer.Sign(address)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/unsubscribe?token=%s", s.appURL, url.QueryEscape(signed)), nil
}

func (s *EmailService) SendVerification(ctx context.Context, sub *model.Subscriber, rawToken string) error {
	return s.send(ctx, sub.Email, email.TemplateVerify, map[string]any{
		"app_name":     s.appName,
		"name":         sub.DisplayName(),
		"verify_url":   s.VerifyURL(rawToken),
		"expiry_hours": int(s.tokenExpiry.Hours()),
	}, "")
}

func (s *EmailService) SendWelcome(ctx context.Context, sub *model.Subscriber) error {
	unsubscribeURL, err := s.UnsubscribeURL(sub.Email)
	if err != nil {
		return err
	}
	return s.send(ctx, sub.Email, email.TemplateWelcome, map[string]any{
		"app_name":        s.appName,
		"app_url":         s.appURL,
		"name":            sub.DisplayName(),
		"unsubscribe_url": unsubscribeURL,
	}, "")
}

// SendContactNotification forwards a contact message to the site owner.
// Replies go straight to the sender.
func (s *EmailService) SendContactNotification(ctx context.Context, msg *model.ContactMessage) error {
	subject := ""
	if msg.Subject != nil {
		subject = *msg.Subject
	}
	if subject == "" {
		subject = "(no subject)"
	}
	return s.send(ctx, s.ownerEmail, email.TemplateContact, map[string]any{
		"sender_name":  msg.Name,
		"sender_email": msg.Email,
		"subject":      subject,
		"source":       msg.Source,
		"message":      msg.Message,
	}, msg.Email)
}

// AddToAudience mirrors a verified subscriber into the provider contact list.
func (s *EmailService) AddToAudience(ctx context.Context, sub *model.Subscriber) error {
	name := ""
	if sub.Name != nil {
		name = *sub.Name
	}
	return s.audience.Add(ctx, sub.Email, name)
}

func (s *EmailService) send(ctx context.Context, to, template string, data map[string]any, replyTo string) error {
	msg, err := s.templates.Render(template, data)
	if err != nil {
		return err
	}
	msg.To = to
	msg.ReplyTo = replyTo
	return s.sender.Send(ctx, msg)
}
