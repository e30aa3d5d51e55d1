package service

import (
	"context"
	"errors"
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

const (
	MessageCheckInbox        = "Check your inbox to confirm your subscription."
	MessageAlreadySubscribed = "You're already subscribed. Thanks for following along!"
	MessageUnsubscribed      = "If this address was on our list, it has been removed."

	// maxWriteAttempts bounds the read/conditional-write loop under contention.
	maxWriteAttempts = 3
	// DefaultNotifyTimeout applies when no positive notification timeout is configured.
	DefaultNotifyTimeout = 10 * time.Second
	maxTokenLength   = 512
)

type SubscribeInput struct {
	Email  string
	Name   string
	Source string
}

type SubscribeResult struct {
	Status            string
	AlreadySubscribed bool
	Message           string
}

type UnsubscribeResult struct {
	// Changed is false when the address was unknown or already unsubscribed.
	// It is never exposed to callers.
	Changed bool
	Message string
}

type SubscriberService struct {
	repo          repository.SubscriberRepository
	email         *EmailService
	signer        *token.Signer
	events        events.Publisher
	tokenExpiry   time.Duration
	notifyTimeout time.Duration
	now           func() time.Time
}

func NewSubscriberService(
	repo repository.SubscriberRepository,
	emailService *EmailService,
	signer *token.Signer,
	publisher events.Publisher,
	tokenExpiry, notifyTimeout time.Duration,
) *SubscriberService {
	return &SubscriberService{
		repo:          repo,
		email:         emailService,
		signer:        signer,
		events:        publisher,
		tokenExpiry:   tokenExpiry,
		notifyTimeout: positiveOr(notifyTimeout, DefaultNotifyTimeout),
		now:           time.Now,
	}
}

// Subscribe registers an address or restarts its confirmation. New, pending
// and previously unsubscribed addresses get a fresh token and a verification
// email; verified addresses are left untouched.
func (s *SubscriberService) Subscribe(ctx context.Context, in SubscribeInput) (*SubscribeResult, error) {
	address := validation.NormalizeEmail(in.Email)
	if err := validation.ValidateEmail(address); err != nil {
		return nil, invalid("email", err)
	}

	name := validation.NormalizeName(in.Name)
	if err := validation.ValidateOptionalName(name); err != nil {
		return nil, invalid("name", err)
	}

	source := validation.NormalizeSource(in.Source)
	if err := validation.ValidateSource(source); err != nil {
		return nil, invalid("source", err)
	}

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		sub, err := s.repo.ByEmail(ctx, address)
		if errors.Is(err, repository.ErrSubscriberNotFound) {
			result, retry, err := s.create(ctx, address, name, source)
			if retry {
				continue
			}
			return result, err
		}
		if err != nil {
			return nil, storeErr("find subscriber", err)
		}

		if sub.IsVerified() {
			return &SubscribeResult{
				Status:            model.SubscriberStatusVerified,
				AlreadySubscribed: true,
				Message:           MessageAlreadySubscribed,
			}, nil
		}

		result, retry, err := s.restart(ctx, sub, name, source)
		if retry {
			continue
		}
		return result, err
	}

	slog.Warn("subscribe gave up after concurrent updates", "email", logger.RedactEmail(address))
	return nil, storeErr("subscribe", errWriteConflict)
}

func (s *SubscriberService) create(ctx context.Context, address, name, source string) (*SubscribeResult, bool, error) {
	now := s.now()
	sub := &model.Subscriber{
		Email:        address,
		Source:       source,
		Status:       model.SubscriberStatusPending,
		SubscribedAt: now,
	}
	if name != "" {
		sub.Name = &name
	}

	raw, err := s.issueToken(sub, now)
	if err != nil {
		return nil, false, err
	}

	err = s.repo.Create(ctx, sub)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		// Lost a race with a concurrent subscribe; re-read and follow its state.
		return nil, true, nil
	}
	if err != nil {
		return nil, false, storeErr("create subscriber", err)
	}

	slog.Info("subscriber created", "email", logger.RedactEmail(address), "source", source)
	s.publish(ctx, events.SubscriberCreated, sub, map[string]string{"source": source})
	s.notify(ctx, sub, "verify", func(ctx context.Context) error {
		return s.email.SendVerification(ctx, sub, raw)
	})

	return &SubscribeResult{Status: model.SubscriberStatusPending, Message: MessageCheckInbox}, false, nil
}

// restart rotates the token of a pending subscriber, or re-enters an
// unsubscribed one at pending with a new subscription cycle.
func (s *SubscriberService) restart(ctx context.Context, sub *model.Subscriber, name, source string) (*SubscribeResult, bool, error) {
	now := s.now()
	expected := sub.Status
	resubscribe := sub.IsUnsubscribed()

	if resubscribe {
		sub.Source = source
		sub.SubscribedAt = now
		sub.VerifiedAt = nil
		sub.UnsubscribedAt = nil
	}
	// A resend for a pending address keeps the name it was registered with.
	if name != "" && (resubscribe || sub.Name == nil) {
		sub.Name = &name
	}
	sub.Status = model.SubscriberStatusPending

	raw, err := s.issueToken(sub, now)
	if err != nil {
		return nil, false, err
	}

	applied, err := s.repo.UpdateIfStatus(ctx, sub, expected)
	if err != nil {
		return nil, false, storeErr("update subscriber", err)
	}
	if !applied {
		return nil, true, nil
	}

	if resubscribe {
		slog.Info("subscriber resubscribed", "email", logger.RedactEmail(sub.Email), "source", source)
		s.publish(ctx, events.SubscriberCreated, sub, map[string]string{"source": source, "resubscribed": "true"})
	} else {
		slog.Info("verification token rotated", "email", logger.RedactEmail(sub.Email))
	}
	s.notify(ctx, sub, "verify", func(ctx context.Context) error {
		return s.email.SendVerification(ctx, sub, raw)
	})

	return &SubscribeResult{Status: model.SubscriberStatusPending, Message: MessageCheckInbox}, false, nil
}

// issueToken stores a new token digest on sub and returns the raw token for the email link.
func (s *SubscriberService) issueToken(sub *model.Subscriber, now time.Time) (string, error) {
	raw, err := token.Generate()
	if err != nil {
		return "", err
	}
	digest := token.Digest(raw)
	sub.VerificationToken = &digest
	sub.TokenExpiresAt = nil
	if s.tokenExpiry > 0 {
		expires := now.Add(s.tokenExpiry)
		sub.TokenExpiresAt = &expires
	}
	return raw, nil
}

// Verify consumes a verification token. Unknown, already used and expired
// tokens are indistinguishable and all return ErrInvalidToken.
func (s *SubscriberService) Verify(ctx context.Context, rawToken string) (*model.Subscriber, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" || len(rawToken) > maxTokenLength {
		return nil, ErrInvalidToken
	}

	sub, err := s.repo.ConsumeToken(ctx, token.Digest(rawToken), s.now())
	if errors.Is(err, repository.ErrSubscriberNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, storeErr("verify subscriber", err)
	}

	slog.Info("subscriber verified", "email", logger.RedactEmail(sub.Email))
	s.publish(ctx, events.SubscriberVerified, sub, map[string]string{"source": sub.Source})
	s.notify(ctx, sub, "welcome", func(ctx context.Context) error {
		return s.email.SendWelcome(ctx, sub)
	})
	s.notify(ctx, sub, "audience", func(ctx context.Context) error {
		return s.email.AddToAudience(ctx, sub)
	})

	return sub, nil
}

// Unsubscribe removes an address from the list. The result is the same
// whether or not the address was subscribed.
func (s *SubscriberService) Unsubscribe(ctx context.Context, address string) (*UnsubscribeResult, error) {
	address = validation.NormalizeEmail(address)
	if err := validation.ValidateEmail(address); err != nil {
		return nil, invalid("email", err)
	}
	return s.unsubscribe(ctx, address, "request")
}

// UnsubscribeWithToken handles one-click links carrying a signed token.
func (s *SubscriberService) UnsubscribeWithToken(ctx context.Context, signed string) (*UnsubscribeResult, error) {
	address, err := s.signer.Parse(strings.TrimSpace(signed))
	if err != nil {
		return nil, ErrInvalidToken
	}
	address = validation.NormalizeEmail(address)
	if err := validation.ValidateEmail(address); err != nil {
		return nil, ErrInvalidToken
	}
	return s.unsubscribe(ctx, address, "link")
}

// Suppress unsubscribes addresses reported by the email provider, such as
// hard bounces and spam complaints. It returns how many rows changed.
func (s *SubscriberService) Suppress(ctx context.Context, addresses []string, reason string) (int, error) {
	changed := 0
	for _, address := range addresses {
		address = validation.NormalizeEmail(address)
		if validation.ValidateEmail(address) != nil {
			continue
		}
		result, err := s.unsubscribe(ctx, address, reason)
		if err != nil {
			return changed, err
		}
		if result.Changed {
			changed++
		}
	}
	return changed, nil
}

func (s *SubscriberService) unsubscribe(ctx context.Context, address, reason string) (*UnsubscribeResult, error) {
	changed, err := s.repo.Unsubscribe(ctx, address, s.now())
	if err != nil {
		return nil, storeErr("unsubscribe", err)
	}

	if changed {
		slog.Info("subscriber unsubscribed", "email", logger.RedactEmail(address), "reason", reason)
		s.publish(ctx, events.SubscriberUnsubscribed, &model.Subscriber{Email: address}, map[string]string{"reason": reason})
	}

	return &UnsubscribeResult{Changed: changed, Message: MessageUnsubscribed}, nil
}

// Stats returns subscriber counts per status.
func (s *SubscriberService) Stats(ctx context.Context) (map[string]int, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, storeErr("count subscribers", err)
	}
	return counts, nil
}

// positiveOr returns d, or def when d is zero or negative.
func positiveOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// notify runs a best-effort delivery after the store write has committed.
// Failures are logged and published for out-of-band retry.
func (s *SubscriberService) notify(ctx context.Context, sub *model.Subscriber, template string, send func(context.Context) error) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	err := send(nctx)
	if err == nil {
		return
	}

	nerr := &NotificationError{Template: template, Err: err}
	slog.Error("notification failed", "error", nerr, "email", logger.RedactEmail(sub.Email))
	s.publish(ctx, events.NotificationFailed, sub, map[string]string{"template": template})
}

func (s *SubscriberService) publish(ctx context.Context, eventType string, sub *model.Subscriber, data map[string]string) {
	publish(ctx, s.events, events.New(eventType, token.Digest(sub.Email), data))
}

// publish sends an event under its own timeout so a slow broker cannot stall a request for long.
func publish(ctx context.Context, publisher events.Publisher, ev events.Event) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := publisher.Publish(pctx, ev); err != nil {
		slog.Warn("event publish failed", "type", ev.Type, "error", err)
	}
}
