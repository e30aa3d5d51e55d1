package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daghondi/ghondiclaude.tech/internal/email"
	"github.com/daghondi/ghondiclaude.tech/internal/events"
	"github.com/daghondi/ghondiclaude.tech/internal/model"
)

type memoryContactStore struct {
	saved []*model.ContactMessage
	err   error
}

func (s *memoryContactStore) Save(ctx context.Context, msg *model.ContactMessage) error {
	if s.err != nil {
		return s.err
	}
	msg.ID = "contact-1"
	s.saved = append(s.saved, msg)
	return nil
}

func newContactService(t *testing.T) (*ContactService, *memoryContactStore, *testEnv) {
	env := newTestEnv(t, 0)
	store := &memoryContactStore{}
	return NewContactService(store, env.email, env.events, time.Second), store, env
}

func validContact() ContactInput {
	return ContactInput{
		Name:    "Jane Doe",
		Email:   "Jane@Example.com",
		Subject: "Mural commission",
		Message: "Would you paint a mural for our studio?",
	}
}

func TestContactSubmit(t *testing.T) {
	svc, store, env := newContactService(t)

	msg, err := svc.Submit(context.Background(), validContact())
	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	assert.Equal(t, "jane@example.com", msg.Email)
	assert.Equal(t, model.SourceOther, msg.Source)
	assert.Equal(t, "Mural commission", *msg.Subject)

	sent := env.sender.byTag(email.TemplateContact)
	require.Len(t, sent, 1)
	assert.Equal(t, "owner@example.com", sent[0].To)
	assert.Equal(t, "jane@example.com", sent[0].ReplyTo)
	assert.Contains(t, sent[0].Subject, "Mural commission")
	assert.Contains(t, env.events.types(), events.ContactReceived)
}

func TestContactSubmit_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ContactInput)
		field  string
	}{
		{"missing name", func(in *ContactInput) { in.Name = "  " }, "name"},
		{"bad email", func(in *ContactInput) { in.Email = "jane" }, "email"},
		{"long subject", func(in *ContactInput) { in.Subject = strings.Repeat("s", 201) }, "subject"},
		{"short message", func(in *ContactInput) { in.Message = "hi" }, "message"},
		{"long message", func(in *ContactInput) { in.Message = strings.Repeat("m", 5001) }, "message"},
		{"bad source", func(in *ContactInput) { in.Source = "billboard" }, "source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, env := newContactService(t)
			in := validContact()
			tt.mutate(&in)

			_, err := svc.Submit(context.Background(), in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Empty(t, store.saved)
			assert.Empty(t, env.sender.sent)
		})
	}
}

func TestContactSubmit_StoreFailure(t *testing.T) {
	svc, store, env := newContactService(t)
	store.err = errBoom

	_, err := svc.Submit(context.Background(), validContact())
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Empty(t, env.sender.sent, "owner is not notified about unsaved messages")
}

func TestContactSubmit_NotificationFailure(t *testing.T) {
	svc, store, env := newContactService(t)
	env.sender.err = errBoom

	_, err := svc.Submit(context.Background(), validContact())
	require.NoError(t, err)
	assert.Len(t, store.saved, 1)
	assert.Contains(t, env.events.types(), events.NotificationFailed)
}
