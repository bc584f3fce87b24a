package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/otp-auth-api/internal/account"
	"github.com/redmonkez12/otp-auth-api/internal/lifecycle"
	"github.com/redmonkez12/otp-auth-api/internal/logging"
	"github.com/redmonkez12/otp-auth-api/internal/password"
	"github.com/redmonkez12/otp-auth-api/internal/token"
)

// memoryStore is an in-memory account.Store keyed by email.
type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]*account.Account
	failWith error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: make(map[string]*account.Account)}
}

func (m *memoryStore) FindByEmail(_ context.Context, email string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	if a, ok := m.accounts[email]; ok {
		return a.Clone(), nil
	}
	return nil, account.ErrNotFound
}

func (m *memoryStore) FindByVerificationCode(_ context.Context, code string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, a := range m.accounts {
		if a.VerificationCode != nil && *a.VerificationCode == code {
			return a.Clone(), nil
		}
	}
	return nil, account.ErrNotFound
}

func (m *memoryStore) FindByResetToken(_ context.Context, tok string, now time.Time) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, a := range m.accounts {
		if a.ResetPasswordToken != nil && *a.ResetPasswordToken == tok && a.HasOutstandingReset(now) {
			return a.Clone(), nil
		}
	}
	return nil, account.ErrNotFound
}

func (m *memoryStore) Insert(_ context.Context, a *account.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.accounts[a.Email]; ok {
		return account.ErrDuplicateEmail
	}
	m.accounts[a.Email] = a.Clone()
	return nil
}

func (m *memoryStore) Update(_ context.Context, a *account.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.accounts[a.Email]; !ok {
		return account.ErrNotFound
	}
	m.accounts[a.Email] = a.Clone()
	return nil
}

func (m *memoryStore) DeleteByEmail(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.accounts[email]; !ok {
		return account.ErrNotFound
	}
	delete(m.accounts, email)
	return nil
}

func (m *memoryStore) Close(context.Context) error { return nil }

func (m *memoryStore) get(email string) *account.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[email].Clone()
}

type mail struct {
	kind      lifecycle.EmailKind
	to        string
	firstname string
	value     string
}

// recordingMailer keeps every message instead of sending it.
type recordingMailer struct {
	mu       sync.Mutex
	sent     []mail
	failWith error
}

func (r *recordingMailer) record(m mail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.sent = append(r.sent, m)
	return nil
}

func (r *recordingMailer) SendVerificationCode(_ context.Context, to, firstname, code string) error {
	return r.record(mail{kind: lifecycle.EmailVerificationCode, to: to, firstname: firstname, value: code})
}

func (r *recordingMailer) SendPasswordResetLink(_ context.Context, to, firstname, tok string) error {
	return r.record(mail{kind: lifecycle.EmailPasswordResetLink, to: to, firstname: firstname, value: tok})
}

func (r *recordingMailer) SendPasswordResetConfirmation(_ context.Context, to, firstname string) error {
	return r.record(mail{kind: lifecycle.EmailPasswordResetConfirmation, to: to, firstname: firstname})
}

func (r *recordingMailer) last(t *testing.T) mail {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent, "no email was sent")
	return r.sent[len(r.sent)-1]
}

func (r *recordingMailer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	store   *memoryStore
	mailer  *recordingMailer
	clock   *clock
	tokens  token.Issuer
	service *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	tokens, err := token.New(token.FormatJWT, token.Config{
		Secret:          []byte("test-secret"),
		VerificationTTL: 15 * time.Minute,
		SessionTTL:      24 * time.Hour,
		Now:             c.now,
	})
	require.NoError(t, err)

	engine, err := lifecycle.New(lifecycle.DefaultPolicy(), password.NewFastHasher(), lifecycle.WithClock(c.now))
	require.NoError(t, err)

	store := newMemoryStore()
	mailer := &recordingMailer{}
	logger := logging.NewLogger(true)

	return &harness{
		store:   store,
		mailer:  mailer,
		clock:   c,
		tokens:  tokens,
		service: NewService(store, engine, tokens, mailer, logger),
	}
}

var errBackendDown = errors.New("connection refused")
