package model

import "time"

// ContactMessage is a message submitted through the contact form.
type ContactMessage struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Subject   *string   `db:"subject" json:"subject,omitempty"`
	Message   string    `db:"message" json:"message"`
	Source    string    `db:"source" json:"source"`
	Status    string    `db:"status" json:"status"` // "unread" | "read"
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	ContactStatusUnread = "unread"
	ContactStatusRead   = "read"
)

func (m *ContactMessage) SubjectOrDefault() string {
	if m.Subject != nil && *m.Subject != "" {
		return *m.Subject
	}
	return "New message from " + m.Name
}
