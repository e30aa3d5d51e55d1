package model

import (
	"time"
)

type Subscriber struct {
	ID     string  `db:"id" json:"id"`
	Email  string  `db:"email" json:"email"`
	Name   *string `db:"name" json:"name,omitempty"`
	Source string  `db:"source" json:"source"`
	Status string  `db:"status" json:"status"`
	// Digest of the verification token; the raw token only ever exists in the email link.
	VerificationToken *string    `db:"verification_token" json:"-"`
	TokenExpiresAt    *time.Time `db:"token_expires_at" json:"-"`
	SubscribedAt      time.Time  `db:"subscribed_at" json:"subscribed_at"`
	VerifiedAt        *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	UnsubscribedAt    *time.Time `db:"unsubscribed_at" json:"unsubscribed_at,omitempty"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	SubscriberStatusPending      = "pending"
	SubscriberStatusVerified     = "verified"
	SubscriberStatusUnsubscribed = "unsubscribed"
)

const (
	SourceFooter  = "footer"
	SourceBlog    = "blog"
	SourceContact = "contact"
	SourceHome    = "home"
	SourceProject = "project"
	SourceOther   = "other"
)

// Sources lists the accepted origin tags.
var Sources = []string{SourceFooter, SourceBlog, SourceContact, SourceHome, SourceProject, SourceOther}

func (s *Subscriber) IsPending() bool {
	return s.Status == SubscriberStatusPending
}

func (s *Subscriber) IsVerified() bool {
	return s.Status == SubscriberStatusVerified
}

func (s *Subscriber) IsUnsubscribed() bool {
	return s.Status == SubscriberStatusUnsubscribed
}

// TokenExpired reports whether the pending token is past its expiry at now.
// Tokens without an expiry never expire.
func (s *Subscriber) TokenExpired(now time.Time) bool {
	return s.TokenExpiresAt != nil && !now.Before(*s.TokenExpiresAt)
}

// DisplayName returns the subscriber name or a fallback greeting.
func (s *Subscriber) DisplayName() string {
	if s.Name != nil && *s.Name != "" {
		return *s.Name
	}
	return "there"
}
