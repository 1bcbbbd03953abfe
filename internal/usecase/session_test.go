package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Maarioo25/HiFybe/internal/infra/security"
	"github.com/Maarioo25/HiFybe/internal/repository/memory"
)

type stubDenylist struct {
	mu        sync.Mutex
	revoked   map[string]time.Time
	lookupErr error
}

func newStubDenylist() *stubDenylist {
	return &stubDenylist{revoked: map[string]time.Time{}}
}

func (d *stubDenylist) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[tokenID] = expiresAt
	return nil
}

func (d *stubDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if d.lookupErr != nil {
		return false, d.lookupErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.revoked[tokenID]
	return ok, nil
}

func TestAuthenticateResolvesAccount(t *testing.T) {
	accounts := memory.NewAccountRepository()
	seedLocalAccount(t, accounts, "a1", "ana@x.com", "secret1")
	clock := newTestClock()
	tokens := newTestTokens(t, clock)

	token, _, err := tokens.IssueSessionToken("a1")
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}

	svc := NewSessionService(accounts, tokens, nil).WithClock(clock.Now).WithLastSeenTouch(true)
	account, claims, err := svc.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if account.ID != "a1" || claims.AccountID != "a1" {
		t.Fatalf("unexpected account %s", account.ID)
	}
	if account.LastSeenAt == nil || !account.LastSeenAt.Equal(baseTime) {
		t.Fatalf("expected last seen touch, got %v", account.LastSeenAt)
	}
}

func TestAuthenticateSessionExpiryBoundary(t *testing.T) {
	accounts := memory.NewAccountRepository()
	seedLocalAccount(t, accounts, "a1", "ana@x.com", "secret1")
	clock := newTestClock()
	tokens := newTestTokens(t, clock)
	svc := NewSessionService(accounts, tokens, nil)

	token, _, err := tokens.IssueSessionToken("a1")
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}

	clock.Advance(7*24*time.Hour - time.Second)
	if _, _, err := svc.Authenticate(context.Background(), token); err != nil {
		t.Fatalf("expected token valid one second before expiry, got %v", err)
	}

	clock.Advance(time.Second)
	_, _, err = svc.Authenticate(context.Background(), token)
	if !errors.Is(err, ErrUnauthenticated) || !errors.Is(err, security.ErrTokenExpired) {
		t.Fatalf("expected expired token to be unauthenticated, got %v", err)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	accounts := memory.NewAccountRepository()
	seedLocalAccount(t, accounts, "a1", "ana@x.com", "secret1")
	clock := newTestClock()
	tokens := newTestTokens(t, clock)
	svc := NewSessionService(accounts, tokens, nil)

	resetToken, _, _ := tokens.IssueResetToken("a1")
	ghostToken, _, _ := tokens.IssueSessionToken("deleted-account")

	cases := map[string]string{
		"empty":           "",
		"garbage":         "not-a-jwt",
		"reset purpose":   resetToken,
		"missing account": ghostToken,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := svc.Authenticate(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestAuthenticateStoreFailureIsNotUnauthenticated(t *testing.T) {
	accounts := &failingAccounts{AccountRepository: memory.NewAccountRepository(), findByIDErr: errStoreDown}
	clock := newTestClock()
	tokens := newTestTokens(t, clock)
	token, _, _ := tokens.IssueSessionToken("a1")

	_, _, err := NewSessionService(accounts, tokens, nil).Authenticate(context.Background(), token)
	if errors.Is(err, ErrUnauthenticated) || !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store failure, got %v", err)
	}
}

func TestLogoutWithoutDenylistKeepsTokenValid(t *testing.T) {
	accounts := memory.NewAccountRepository()
	seedLocalAccount(t, accounts, "a1", "ana@x.com", "secret1")
	tokens := newTestTokens(t, newTestClock())
	svc := NewSessionService(accounts, tokens, nil)

	token, _, _ := tokens.IssueSessionToken("a1")
	if err := svc.Logout(context.Background(), token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if svc.RevocationEnabled() {
		t.Fatal("revocation must be disabled without a denylist")
	}
	if _, _, err := svc.Authenticate(context.Background(), token); err != nil {
		t.Fatalf("stateless token must stay valid after logout, got %v", err)
	}
}

func TestLogoutWithDenylistRevokesToken(t *testing.T) {
	accounts := memory.NewAccountRepository()
	seedLocalAccount(t, accounts, "a1", "ana@x.com", "secret1")
	tokens := newTestTokens(t, newTestClock())
	denylist := newStubDenylist()
	svc := NewSessionService(accounts, tokens, nil).WithDenylist(denylist)

	token, claims, _ := tokens.IssueSessionToken("a1")
	if err := svc.Logout(context.Background(), token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if exp, ok := denylist.revoked[claims.TokenID]; !ok || !exp.Equal(claims.ExpiresAt) {
		t.Fatalf("expected token id revoked until expiry, got %v", denylist.revoked)
	}
	if _, _, err := svc.Authenticate(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
}

func TestAuthenticateFailsOpenOnDenylistError(t *testing.T) {
	accounts := memory.NewAccountRepository()
	seedLocalAccount(t, accounts, "a1", "ana@x.com", "secret1")
	tokens := newTestTokens(t, newTestClock())
	denylist := newStubDenylist()
	denylist.lookupErr = errStoreDown
	svc := NewSessionService(accounts, tokens, nil).WithDenylist(denylist)

	token, _, _ := tokens.IssueSessionToken("a1")
	if _, _, err := svc.Authenticate(context.Background(), token); err != nil {
		t.Fatalf("expected authentication to proceed, got %v", err)
	}
}
