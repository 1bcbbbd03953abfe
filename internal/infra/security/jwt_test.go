package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T, clock *fakeClock) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(StaticSecret("test-secret"), "hifybe", WithTokenClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return m
}

func TestSessionTokenRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock)

	token, issued, err := m.IssueSessionToken("acc-1")
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}
	if issued.ExpiresAt.Sub(issued.IssuedAt) != 7*24*time.Hour {
		t.Fatalf("unexpected lifetime %s", issued.ExpiresAt.Sub(issued.IssuedAt))
	}

	claims, err := m.Verify(token, domain.TokenPurposeSession)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.AccountID != "acc-1" || claims.TokenID != issued.TokenID {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestSessionTokenExpiryBoundary(t *testing.T) {
	issuedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: issuedAt}
	m := newTestManager(t, clock)

	token, _, err := m.IssueSessionToken("acc-1")
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}

	expiry := issuedAt.Add(7 * 24 * time.Hour)

	clock.now = expiry.Add(-time.Nanosecond)
	if _, err := m.Verify(token, domain.TokenPurposeSession); err != nil {
		t.Fatalf("token must be valid strictly before expiry, got %v", err)
	}

	clock.now = expiry
	if _, err := m.Verify(token, domain.TokenPurposeSession); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("token must be expired at the expiry instant, got %v", err)
	}

	clock.now = expiry.Add(time.Hour)
	if _, err := m.Verify(token, domain.TokenPurposeSession); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestResetTokenLifetimeAndPurpose(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock)

	reset, claims, err := m.IssueResetToken("acc-1")
	if err != nil {
		t.Fatalf("IssueResetToken: %v", err)
	}
	if claims.ExpiresAt.Sub(claims.IssuedAt) != time.Hour {
		t.Fatalf("unexpected reset lifetime %s", claims.ExpiresAt.Sub(claims.IssuedAt))
	}

	if _, err := m.Verify(reset, domain.TokenPurposeSession); !errors.Is(err, ErrTokenPurposeMismatch) {
		t.Fatalf("reset token accepted as session: %v", err)
	}

	session, _, _ := m.IssueSessionToken("acc-1")
	if _, err := m.Verify(session, domain.TokenPurposeReset); !errors.Is(err, ErrTokenPurposeMismatch) {
		t.Fatalf("session token accepted as reset: %v", err)
	}
}

func TestVerifyRejectsMalformedTokens(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock)

	token, _, _ := m.IssueSessionToken("acc-1")

	other, err := NewTokenManager(StaticSecret("another-secret"), "hifybe", WithTokenClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":     "acc-1",
		"purpose": "session",
		"iss":     "hifybe",
		"exp":     clock.now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	cases := map[string]func() error{
		"empty":        func() error { _, err := m.Verify("", domain.TokenPurposeSession); return err },
		"garbage":      func() error { _, err := m.Verify("not.a.jwt", domain.TokenPurposeSession); return err },
		"wrong secret": func() error { _, err := other.Verify(token, domain.TokenPurposeSession); return err },
		"alg none":     func() error { _, err := m.Verify(noneToken, domain.TokenPurposeSession); return err },
		"tampered":     func() error { _, err := m.Verify(token+"x", domain.TokenPurposeSession); return err },
	}

	for name, verify := range cases {
		if err := verify(); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("%s: expected ErrTokenMalformed, got %v", name, err)
		}
	}
}

func TestIssueRequiresAccountID(t *testing.T) {
	m := newTestManager(t, &fakeClock{now: time.Now()})
	if _, _, err := m.IssueSessionToken(""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	if _, err := NewTokenManager(StaticSecret(nil), "hifybe"); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}
}

func TestFileSecret(t *testing.T) {
	path := t.TempDir() + "/jwt_secret"
	if err := writeFile(path, "  from-file\n"); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	provider, err := NewFileSecret(path)
	if err != nil {
		t.Fatalf("NewFileSecret: %v", err)
	}
	secret, _ := provider.SigningSecret()
	if string(secret) != "from-file" {
		t.Fatalf("unexpected secret %q", secret)
	}
}

func TestHashTokenIsStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("HashToken must be deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Fatal("HashToken collision on trivial input")
	}
}
