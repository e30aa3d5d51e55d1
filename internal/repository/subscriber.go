package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/daghondi/ghondiclaude.tech/internal/model"
)

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrDuplicateEmail     = errors.New("email already exists")
)

// SubscriberRepository persists subscribers. Every state transition is a
// single conditional statement; callers never lock.
type SubscriberRepository interface {
	ByEmail(ctx context.Context, email string) (*model.Subscriber, error)
	ByTokenDigest(ctx context.Context, digest string) (*model.Subscriber, error)
	Create(ctx context.Context, sub *model.Subscriber) error
	// UpdateIfStatus writes sub only while the stored status still equals
	// expected. It reports whether the write applied.
	UpdateIfStatus(ctx context.Context, sub *model.Subscriber, expected string) (bool, error)
	// ConsumeToken verifies the pending subscriber holding digest, clearing the
	// token in the same write. Unknown, used and expired tokens all return
	// ErrSubscriberNotFound.
	ConsumeToken(ctx context.Context, digest string, now time.Time) (*model.Subscriber, error)
	// Unsubscribe marks email unsubscribed unless it already is. It reports
	// whether a row changed.
	Unsubscribe(ctx context.Context, email string, now time.Time) (bool, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type subscriberRepository struct {
	db *sqlx.DB
}

func NewSubscriberRepository(db *sqlx.DB) SubscriberRepository {
	return &subscriberRepository{db: db}
}

func (r *subscriberRepository) ByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	var sub model.Subscriber
	err := r.db.GetContext(ctx, &sub, "SELECT * FROM subscribers WHERE email = $1", email)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriberRepository) ByTokenDigest(ctx context.Context, digest string) (*model.Subscriber, error) {
	var sub model.Subscriber
	err := r.db.GetContext(ctx, &sub, "SELECT * FROM subscribers WHERE verification_token = $1", digest)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriberRepository) Create(ctx context.Context, sub *model.Subscriber) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = now
	}
	sub.UpdatedAt = now
	normalizeTimes(sub)

	query := `
		INSERT INTO subscribers (id, email, name, source, status, verification_token, token_expires_at,
			subscribed_at, verified_at, unsubscribed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		sub.ID,
		sub.Email,
		sub.Name,
		sub.Source,
		sub.Status,
		sub.VerificationToken,
		sub.TokenExpiresAt,
		sub.SubscribedAt,
		sub.VerifiedAt,
		sub.UnsubscribedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		// Check for unique constraint violation (works for both SQLite and PostgreSQL)
		if isUniqueViolation(err) && strings.Contains(err.Error(), "email") {
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

func (r *subscriberRepository) UpdateIfStatus(ctx context.Context, sub *model.Subscriber, expected string) (bool, error) {
	sub.UpdatedAt = time.Now().UTC()
	normalizeTimes(sub)

	query := `
		UPDATE subscribers
		SET name = $1, source = $2, status = $3, verification_token = $4, token_expires_at = $5,
			subscribed_at = $6, verified_at = $7, unsubscribed_at = $8, updated_at = $9
		WHERE id = $10 AND status = $11
	`
	result, err := r.db.ExecContext(ctx, query,
		sub.Name,
		sub.Source,
		sub.Status,
		sub.VerificationToken,
		sub.TokenExpiresAt,
		sub.SubscribedAt,
		sub.VerifiedAt,
		sub.UnsubscribedAt,
		sub.UpdatedAt,
		sub.ID,
		expected,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ConsumeToken uses UPDATE ... RETURNING so that of two concurrent requests
// with the same token only one gets the row back.
func (r *subscriberRepository) ConsumeToken(ctx context.Context, digest string, now time.Time) (*model.Subscriber, error) {
	var sub model.Subscriber
	now = now.UTC()

	query := `
		UPDATE subscribers
		SET status = $1, verified_at = $2, verification_token = NULL, token_expires_at = NULL, updated_at = $2
		WHERE verification_token = $3
		AND status = $4
		AND (token_expires_at IS NULL OR token_expires_at > $2)
		RETURNING *
	`

	err := r.db.GetContext(ctx, &sub, query,
		model.SubscriberStatusVerified,
		now,
		digest,
		model.SubscriberStatusPending,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriberNotFound
	}
	if err != nil {
		return nil, err
	}

	return &sub, nil
}

func (r *subscriberRepository) Unsubscribe(ctx context.Context, email string, now time.Time) (bool, error) {
	now = now.UTC()

	query := `
		UPDATE subscribers
		SET status = $1, unsubscribed_at = $2, verification_token = NULL, token_expires_at = NULL, updated_at = $2
		WHERE email = $3 AND status <> $1
	`
	result, err := r.db.ExecContext(ctx, query, model.SubscriberStatusUnsubscribed, now, email)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *subscriberRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	err := r.db.SelectContext(ctx, &rows, "SELECT status, COUNT(*) AS count FROM subscribers GROUP BY status")
	if err != nil {
		return nil, err
	}

	counts := map[string]int{
		model.SubscriberStatusPending:      0,
		model.SubscriberStatusVerified:     0,
		model.SubscriberStatusUnsubscribed: 0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// normalizeTimes stores every timestamp in UTC. SQLite compares timestamps
// as text, so mixed zones would break the expiry check in ConsumeToken.
func normalizeTimes(sub *model.Subscriber) {
	sub.SubscribedAt = sub.SubscribedAt.UTC()
	for _, t := range []*time.Time{sub.TokenExpiresAt, sub.VerifiedAt, sub.UnsubscribedAt} {
		if t != nil {
			*t = t.UTC()
		}
	}
}

func isUniqueViolation(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value")
}
