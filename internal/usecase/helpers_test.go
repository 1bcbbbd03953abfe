package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/infra/security"
	"github.com/Maarioo25/HiFybe/internal/repository/memory"
)

var baseTime = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: baseTime} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubHasher is a cheap reversible stand-in for argon2; "legacy:" digests
// report that they need a rehash.
type stubHasher struct {
	mu          sync.Mutex
	hashCalls   int
	verifyCalls int
}

func (h *stubHasher) Hash(password string) (string, error) {
	h.mu.Lock()
	h.hashCalls++
	h.mu.Unlock()
	if password == "" {
		return "", security.ErrInvalidInput
	}
	return "hashed:" + password, nil
}

func (h *stubHasher) Verify(password, encoded string) (bool, error) {
	h.mu.Lock()
	h.verifyCalls++
	h.mu.Unlock()
	switch {
	case strings.HasPrefix(encoded, "hashed:"):
		return encoded == "hashed:"+password, nil
	case strings.HasPrefix(encoded, "legacy:"):
		return encoded == "legacy:"+password, nil
	default:
		return false, security.ErrCorruptDigest
	}
}

func (h *stubHasher) NeedsRehash(encoded string) bool {
	return strings.HasPrefix(encoded, "legacy:")
}

type recordingEvents struct {
	mu         sync.Mutex
	registered []domain.AccountRegisteredEvent
	linked     []domain.AccountLinkedEvent
	resets     []domain.PasswordResetRequestedEvent
	changed    []domain.PasswordChangedEvent
	err        error
}

func (e *recordingEvents) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registered = append(e.registered, event)
	return e.err
}

func (e *recordingEvents) PublishAccountLinked(_ context.Context, event domain.AccountLinkedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.linked = append(e.linked, event)
	return e.err
}

func (e *recordingEvents) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resets = append(e.resets, event)
	return e.err
}

func (e *recordingEvents) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changed = append(e.changed, event)
	return e.err
}

type recordingMetrics struct {
	logins   map[string]int
	external map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{logins: map[string]int{}, external: map[string]int{}}
}

func (m *recordingMetrics) ObserveLogin(outcome string)          { m.logins[outcome]++ }
func (m *recordingMetrics) ObserveRegistration(string)           {}
func (m *recordingMetrics) ObserveResetRequest(string)           {}
func (m *recordingMetrics) ObserveResetRedeem(string)            {}
func (m *recordingMetrics) ObserveExternalSignIn(outcome string) { m.external[outcome]++ }

func newTestTokens(t *testing.T, clock *testClock) *security.TokenManager {
	t.Helper()

	tokens, err := security.NewTokenManager(security.StaticSecret("test-signing-secret"), "hifybe", security.WithTokenClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return tokens
}

// failingAccounts injects store failures on top of the in-memory store.
type failingAccounts struct {
	*memory.AccountRepository
	findByEmailErr error
	findByIDErr    error
	createErr      error
	touchErr       error
	linkErr        error
}

func (f *failingAccounts) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if f.findByEmailErr != nil {
		return nil, f.findByEmailErr
	}
	return f.AccountRepository.FindByEmail(ctx, email)
}

func (f *failingAccounts) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	if f.findByIDErr != nil {
		return nil, f.findByIDErr
	}
	return f.AccountRepository.FindByID(ctx, id)
}

func (f *failingAccounts) Create(ctx context.Context, account *domain.Account) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.AccountRepository.Create(ctx, account)
}

func (f *failingAccounts) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	return f.AccountRepository.TouchLastSeen(ctx, id, at)
}

func (f *failingAccounts) LinkExternalID(ctx context.Context, id, subject string, at time.Time) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	return f.AccountRepository.LinkExternalID(ctx, id, subject, at)
}

var errStoreDown = errors.New("store unavailable")

func seedLocalAccount(t *testing.T, repo *memory.AccountRepository, id, email, password string) *domain.Account {
	t.Helper()

	account := &domain.Account{
		ID:           id,
		Name:         "Ana",
		Email:        email,
		PasswordHash: "hashed:" + password,
		AuthProvider: domain.AuthProviderLocal,
		RegisteredAt: baseTime,
		Version:      1,
		UpdatedAt:    baseTime,
	}
	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account
}
