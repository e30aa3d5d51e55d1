package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daghondi/ghondiclaude.tech/internal/email"
	"github.com/daghondi/ghondiclaude.tech/internal/events"
	"github.com/daghondi/ghondiclaude.tech/internal/model"
	"github.com/daghondi/ghondiclaude.tech/internal/repository"
	"github.com/daghondi/ghondiclaude.tech/internal/token"
)

// memoryRepo is an in-memory SubscriberRepository with the same conditional
// write semantics as the SQL store.
type memoryRepo struct {
	mu    sync.Mutex
	byID  map[string]*model.Subscriber
	calls int
	seq   int

	failWith     error
	neverApplies bool
	// raceOnCreate inserts a competing row before the first Create.
	raceOnCreate *model.Subscriber
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: map[string]*model.Subscriber{}}
}

func clone(s *model.Subscriber) *model.Subscriber {
	c := *s
	return &c
}

func (r *memoryRepo) find(match func(*model.Subscriber) bool) *model.Subscriber {
	for _, s := range r.byID {
		if match(s) {
			return s
		}
	}
	return nil
}

func (r *memoryRepo) ByEmail(ctx context.Context, address string) (*model.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failWith != nil {
		return nil, r.failWith
	}
	s := r.find(func(s *model.Subscriber) bool { return s.Email == address })
	if s == nil {
		return nil, repository.ErrSubscriberNotFound
	}
	return clone(s), nil
}

func (r *memoryRepo) ByTokenDigest(ctx context.Context, digest string) (*model.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	s := r.find(func(s *model.Subscriber) bool {
		return s.VerificationToken != nil && *s.VerificationToken == digest
	})
	if s == nil {
		return nil, repository.ErrSubscriberNotFound
	}
	return clone(s), nil
}

func (r *memoryRepo) Create(ctx context.Context, sub *model.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.raceOnCreate != nil {
		r.byID[r.raceOnCreate.ID] = r.raceOnCreate
		r.raceOnCreate = nil
	}
	if r.find(func(s *model.Subscriber) bool { return s.Email == sub.Email }) != nil {
		return repository.ErrDuplicateEmail
	}
	r.seq++
	sub.ID = fmt.Sprintf("sub-%d", r.seq)
	sub.UpdatedAt = time.Now()
	r.byID[sub.ID] = clone(sub)
	return nil
}

func (r *memoryRepo) UpdateIfStatus(ctx context.Context, sub *model.Subscriber, expected string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	cur, ok := r.byID[sub.ID]
	if r.neverApplies || !ok || cur.Status != expected {
		return false, nil
	}
	r.byID[sub.ID] = clone(sub)
	return true, nil
}

func (r *memoryRepo) ConsumeToken(ctx context.Context, digest string, now time.Time) (*model.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failWith != nil {
		return nil, r.failWith
	}
	s := r.find(func(s *model.Subscriber) bool {
		return s.VerificationToken != nil && *s.VerificationToken == digest && s.IsPending()
	})
	if s == nil || s.TokenExpired(now) {
		return nil, repository.ErrSubscriberNotFound
	}
	s.Status = model.SubscriberStatusVerified
	s.VerifiedAt = &now
	s.VerificationToken = nil
	s.TokenExpiresAt = nil
	return clone(s), nil
}

func (r *memoryRepo) Unsubscribe(ctx context.Context, address string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failWith != nil {
		return false, r.failWith
	}
	s := r.find(func(s *model.Subscriber) bool { return s.Email == address && !s.IsUnsubscribed() })
	if s == nil {
		return false, nil
	}
	s.Status = model.SubscriberStatusUnsubscribed
	s.UnsubscribedAt = &now
	s.VerificationToken = nil
	s.TokenExpiresAt = nil
	return true, nil
}

func (r *memoryRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, s := range r.byID {
		counts[s.Status]++
	}
	return counts, nil
}

func (r *memoryRepo) get(t *testing.T, address string) *model.Subscriber {
	t.Helper()
	s, err := r.ByEmail(context.Background(), address)
	require.NoError(t, err)
	return s
}

type captureSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (c *captureSender) Name() string { return "capture" }

func (c *captureSender) Send(ctx context.Context, msg email.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureSender) byTag(tag string) []email.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []email.Message
	for _, m := range c.sent {
		if m.Tag == tag {
			out = append(out, m)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingAudience struct {
	added []string
}

func (a *recordingAudience) Add(ctx context.Context, address, name string) error {
	a.added = append(a.added, address)
	return nil
}

var verifyLink = regexp.MustCompile(`/verify\?token=([0-9a-f]+)`)

// tokenFrom extracts the raw token from the latest verification email.
func tokenFrom(t *testing.T, sender *captureSender) string {
	t.Helper()
	msgs := sender.byTag(email.TemplateVerify)
	require.NotEmpty(t, msgs)
	m := verifyLink.FindStringSubmatch(msgs[len(msgs)-1].Text)
	require.Len(t, m, 2)
	raw, err := url.QueryUnescape(m[1])
	require.NoError(t, err)
	return raw
}

type testEnv struct {
	repo     *memoryRepo
	sender   *captureSender
	events   *recordingPublisher
	audience *recordingAudience
	signer   *token.Signer
	email    *EmailService
	svc      *SubscriberService
}

func newTestEnv(t *testing.T, expiry time.Duration) *testEnv {
	t.Helper()
	templates, err := email.NewTemplates()
	require.NoError(t, err)

	env := &testEnv{
		repo:     newMemoryRepo(),
		sender:   &captureSender{},
		events:   &recordingPublisher{},
		audience: &recordingAudience{},
		signer:   token.NewSigner("test-secret", 0),
	}
	env.email = NewEmailService(env.sender, templates, env.audience, env.signer,
		"https://example.com/", "Studio", "owner@example.com", expiry)
	env.svc = NewSubscriberService(env.repo, env.email, env.signer, env.events, expiry, time.Second)
	return env
}

var errBoom = errors.New("database is locked")
