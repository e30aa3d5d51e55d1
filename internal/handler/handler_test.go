package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daghondi/ghondiclaude.tech/internal/db"
	"github.com/daghondi/ghondiclaude.tech/internal/email"
	"github.com/daghondi/ghondiclaude.tech/internal/events"
	"github.com/daghondi/ghondiclaude.tech/internal/model"
	"github.com/daghondi/ghondiclaude.tech/internal/repository"
	"github.com/daghondi/ghondiclaude.tech/internal/service"
	"github.com/daghondi/ghondiclaude.tech/internal/token"
)

type outbox struct {
	mu   sync.Mutex
	msgs []email.Message
}

func (o *outbox) Name() string { return "outbox" }

func (o *outbox) Send(ctx context.Context, msg email.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

var verifyTokenPattern = regexp.MustCompile(`/verify\?token=([0-9a-f]{64})`)

func (o *outbox) lastVerifyToken(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		m := verifyTokenPattern.FindStringSubmatch(o.msgs[i].Text)
		if m != nil {
			return m[1]
		}
	}
	t.Fatal("no verification email sent")
	return ""
}

type testServer struct {
	mux    *http.ServeMux
	outbox *outbox
	repo   repository.SubscriberRepository
	signer *token.Signer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	database, err := db.Init("sqlite", filepath.Join(t.TempDir(), "handler.db")+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(database) })
	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))

	templates, err := email.NewTemplates()
	require.NoError(t, err)

	box := &outbox{}
	signer := token.NewSigner("test-secret", 0)
	repo := repository.NewSubscriberRepository(database)
	publisher := events.NewLogPublisher()
	emailService := service.NewEmailService(box, templates, email.NoopAudience{}, signer,
		"https://example.com", "Studio", "owner@example.com", 72*time.Hour)
	subscribers := service.NewSubscriberService(repo, emailService, signer, publisher, 72*time.Hour, time.Second)
	contacts := service.NewContactService(repository.NewContactRepository(database), emailService, publisher, time.Second)

	contentDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(contentDir, "blog"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "blog", "hello-world.md"),
		[]byte("---\ntitle: Hello\ndate: 2024-01-01\n---\nHi there.\n"), 0o644))
	content := NewContentHandler(service.NewContentService(contentDir))

	newsletter := NewNewsletterHandler(subscribers)
	webhook, err := NewEmailWebhookHandler(subscribers, "")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /subscribe", newsletter.Subscribe)
	mux.HandleFunc("GET /verify", newsletter.Verify)
	mux.HandleFunc("POST /unsubscribe", newsletter.Unsubscribe)
	mux.HandleFunc("GET /unsubscribe", newsletter.UnsubscribeLink)
	mux.HandleFunc("POST /contact", NewContactHandler(contacts).Submit)
	mux.HandleFunc("GET /api/posts", content.List(model.CollectionBlog))
	mux.HandleFunc("GET /api/posts/{slug}", content.Get(model.CollectionBlog))
	mux.HandleFunc("POST /webhooks/email", webhook.Handle)
	mux.HandleFunc("GET /healthz", NewHealthHandler(database).Check)

	return &testServer{mux: mux, outbox: box, repo: repo, signer: signer}
}

func (s *testServer) do(t *testing.T, method, target, contentType, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func (s *testServer) postJSON(t *testing.T, target, body string) (int, map[string]any) {
	return s.do(t, http.MethodPost, target, "application/json", body)
}

func TestNewsletterLifecycle(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	code, body := s.postJSON(t, "/subscribe", `{"email":" Jane@Example.com ","name":"Jane","source":"blog"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, service.MessageCheckInbox, body["message"])

	raw := s.outbox.lastVerifyToken(t)

	code, body = s.do(t, http.MethodGet, "/verify?token="+raw, "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["verified"])

	sub, err := s.repo.ByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.True(t, sub.IsVerified())
	assert.Nil(t, sub.VerificationToken)

	code, body = s.do(t, http.MethodGet, "/verify?token="+raw, "", "")
	assert.Equal(t, http.StatusBadRequest, code, "tokens are single use")
	assert.Equal(t, msgInvalidToken, body["error"])

	code, body = s.postJSON(t, "/subscribe", `{"email":"jane@example.com"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, service.MessageAlreadySubscribed, body["message"])

	code, body = s.postJSON(t, "/unsubscribe", `{"email":"JANE@example.com"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, service.MessageUnsubscribed, body["message"])

	sub, err = s.repo.ByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.True(t, sub.IsUnsubscribed())

	code, body = s.postJSON(t, "/unsubscribe", `{"email":"jane@example.com"}`)
	assert.Equal(t, http.StatusOK, code, "repeat unsubscribe is a no-op")
	assert.Equal(t, service.MessageUnsubscribed, body["message"])
}

func TestSubscribe_FormPost(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{"email": {"form@example.com"}, "source": {"footer"}}
	code, body := s.do(t, http.MethodPost, "/subscribe", "application/x-www-form-urlencoded", form.Encode())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, service.MessageCheckInbox, body["message"])

	sub, err := s.repo.ByEmail(context.Background(), "form@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.SourceFooter, sub.Source)
}

func TestSubscribe_ValidationErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "missing email", body: `{"name":"Jane"}`, field: "email"},
		{name: "malformed email", body: `{"email":"not-an-email"}`, field: "email"},
		{name: "unknown source", body: `{"email":"a@example.com","source":"billboard"}`, field: "source"},
		{name: "long name", body: `{"email":"a@example.com","name":"` + strings.Repeat("x", 101) + `"}`, field: "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := s.postJSON(t, "/subscribe", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, false, body["success"])
			fields, ok := body["fields"].(map[string]any)
			require.True(t, ok, "fields present")
			assert.Contains(t, fields, tt.field)
		})
	}

	code, body := s.postJSON(t, "/subscribe", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, msgInvalidBody, body["error"])
}

func TestVerify_InvalidTokens(t *testing.T) {
	s := newTestServer(t)

	for _, target := range []string{"/verify", "/verify?token=", "/verify?token=" + strings.Repeat("a", 64)} {
		code, body := s.do(t, http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusBadRequest, code, target)
		assert.Equal(t, msgInvalidToken, body["error"], target)
		assert.Equal(t, false, body["success"], target)
	}
}

func TestUnsubscribe_UnknownAndMalformed(t *testing.T) {
	s := newTestServer(t)

	code, body := s.postJSON(t, "/unsubscribe", `{"email":"nobody@example.com"}`)
	assert.Equal(t, http.StatusOK, code, "unknown addresses are not revealed")
	assert.Equal(t, service.MessageUnsubscribed, body["message"])

	code, body = s.postJSON(t, "/unsubscribe", `{"email":"nobody"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
}

func TestUnsubscribeLink(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.postJSON(t, "/subscribe", `{"email":"link@example.com"}`)
	require.Equal(t, http.StatusOK, code)

	signed, err := s.signer.Sign("link@example.com")
	require.NoError(t, err)

	code, body := s.do(t, http.MethodGet, "/unsubscribe?token="+url.QueryEscape(signed), "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, service.MessageUnsubscribed, body["message"])

	sub, err := s.repo.ByEmail(context.Background(), "link@example.com")
	require.NoError(t, err)
	assert.True(t, sub.IsUnsubscribed())
	assert.Nil(t, sub.VerificationToken, "pending token is cleared")

	code, body = s.do(t, http.MethodGet, "/unsubscribe?token=forged", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, msgInvalidLink, body["error"])

	code, _ = s.postJSON(t, "/unsubscribe", `{"token":"forged"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestContactSubmit(t *testing.T) {
	s := newTestServer(t)

	code, body := s.postJSON(t, "/contact", `{"name":"Sam","email":"sam@example.com","subject":"Hi","message":"I love your murals!"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, service.MessageContactReceived, body["message"])

	s.outbox.mu.Lock()
	require.Len(t, s.outbox.msgs, 1)
	assert.Equal(t, "owner@example.com", s.outbox.msgs[0].To)
	assert.Equal(t, "sam@example.com", s.outbox.msgs[0].ReplyTo)
	s.outbox.mu.Unlock()

	code, body = s.postJSON(t, "/contact", `{"name":"Sam","email":"sam@example.com","message":"short"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["fields"], "message")
}

func TestContentEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/api/posts", "", "")
	assert.Equal(t, http.StatusOK, code)
	items, ok := body["items"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)

	code, body = s.do(t, http.MethodGet, "/api/posts/hello-world", "", "")
	assert.Equal(t, http.StatusOK, code)
	item, ok := body["item"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Hello", item["title"])
	assert.Contains(t, item["html"], "Hi there.")

	code, body = s.do(t, http.MethodGet, "/api/posts/missing", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, msgNotFound, body["error"])
}

func TestEmailWebhook_SuppressesBounces(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.postJSON(t, "/subscribe", `{"email":"bounce@example.com"}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.postJSON(t, "/webhooks/email", `{"type":"email.delivered","data":{"to":["bounce@example.com"]}}`)
	assert.Equal(t, http.StatusOK, code)
	sub, err := s.repo.ByEmail(context.Background(), "bounce@example.com")
	require.NoError(t, err)
	assert.True(t, sub.IsPending(), "delivery events are ignored")

	code, _ = s.postJSON(t, "/webhooks/email", `{"type":"email.bounced","data":{"to":["Bounce@Example.com"]}}`)
	assert.Equal(t, http.StatusOK, code)
	sub, err = s.repo.ByEmail(context.Background(), "bounce@example.com")
	require.NoError(t, err)
	assert.True(t, sub.IsUnsubscribed())

	code, _ = s.postJSON(t, "/webhooks/email", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestEmailWebhook_RejectsBadSignature(t *testing.T) {
	h, err := NewEmailWebhookHandler(nil, "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/email", strings.NewReader(`{"type":"email.bounced"}`))
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", "1700000000")
	req.Header.Set("svix-signature", "v1,invalid")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name string
		ping pingFunc
		code int
	}{
		{name: "ok", ping: func(context.Context) error { return nil }, code: http.StatusOK},
		{name: "database down", ping: func(context.Context) error { return errors.New("down") }, code: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.ping).Check(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestWriteServiceError_HidesStoreErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/subscribe", nil)
	writeServiceError(rec, req, &service.StoreError{Op: "create subscriber", Err: errors.New("UNIQUE constraint failed: subscribers.id")})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, `{"success":false,"error":"`+msgInternal+`"}`+"\n", rec.Body.String())
}
