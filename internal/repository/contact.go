package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/daghondi/ghondiclaude.tech/internal/model"
)

// ContactStore persists contact form submissions.
type ContactStore interface {
	Save(ctx context.Context, msg *model.ContactMessage) error
}

// PrepareContact fills the ID, status and timestamp of a new message.
func PrepareContact(msg *model.ContactMessage) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Status == "" {
		msg.Status = model.ContactStatusUnread
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
}

// NoopContactStore discards messages. The owner notification email is then
// the only record of a submission.
type NoopContactStore struct{}

func (NoopContactStore) Save(ctx context.Context, msg *model.ContactMessage) error {
	PrepareContact(msg)
	slog.Info("contact message not persisted (store disabled)", "id", msg.ID)
	return nil
}

type contactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) ContactStore {
	return &contactRepository{db: db}
}

func (r *contactRepository) Save(ctx context.Context, msg *model.ContactMessage) error {
	PrepareContact(msg)

	query := `
		INSERT INTO contact_messages (id, name, email, subject, message, source, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.Name,
		msg.Email,
		msg.Subject,
		msg.Message,
		msg.Source,
		msg.Status,
		msg.CreatedAt,
	)
	return err
}
