package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/core/port"
)

const (
	DefaultSessionTTL = 7 * 24 * time.Hour
	DefaultResetTTL   = time.Hour
)

// tokenClaims is the JWT body for both session and reset tokens.
type tokenClaims struct {
	Purpose domain.TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens bound to a purpose.
type TokenManager struct {
	secrets    SecretProvider
	issuer     string
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

var _ port.TokenService = (*TokenManager)(nil)

// TokenManagerOption customises a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithTokenClock overrides the time source used for iat/exp and verification.
func WithTokenClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTokenTTLs overrides the session and reset lifetimes. Zero keeps the default.
func WithTokenTTLs(session, reset time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		if session > 0 {
			m.sessionTTL = session
		}
		if reset > 0 {
			m.resetTTL = reset
		}
	}
}

// NewTokenManager builds a manager; the secret is fetched on every call so
// the provider can be swapped without touching callers.
func NewTokenManager(secrets SecretProvider, issuer string, opts ...TokenManagerOption) (*TokenManager, error) {
	if secrets == nil {
		return nil, ErrSecretMissing
	}
	if _, err := secrets.SigningSecret(); err != nil {
		return nil, err
	}

	m := &TokenManager{
		secrets:    secrets,
		issuer:     issuer,
		sessionTTL: DefaultSessionTTL,
		resetTTL:   DefaultResetTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SessionTTL is the lifetime of session tokens, also used for the cookie max-age.
func (m *TokenManager) SessionTTL() time.Duration {
	return m.sessionTTL
}

// IssueSessionToken mints a 7-day session token.
func (m *TokenManager) IssueSessionToken(accountID string) (string, domain.TokenClaims, error) {
	return m.issue(accountID, domain.TokenPurposeSession, m.sessionTTL)
}

// IssueResetToken mints a 1-hour password reset token.
func (m *TokenManager) IssueResetToken(accountID string) (string, domain.TokenClaims, error) {
	return m.issue(accountID, domain.TokenPurposeReset, m.resetTTL)
}

func (m *TokenManager) issue(accountID string, purpose domain.TokenPurpose, ttl time.Duration) (string, domain.TokenClaims, error) {
	if accountID == "" {
		return "", domain.TokenClaims{}, fmt.Errorf("%w: account id required", ErrInvalidInput)
	}

	secret, err := m.secrets.SigningSecret()
	if err != nil {
		return "", domain.TokenClaims{}, err
	}

	// Whole seconds keep exp-iat equal to ttl after NumericDate truncation.
	issuedAt := m.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)
	tokenID := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   accountID,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", domain.TokenClaims{}, fmt.Errorf("sign %s token: %w", purpose, err)
	}

	return signed, domain.TokenClaims{
		AccountID: accountID,
		TokenID:   tokenID,
		Purpose:   purpose,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks signature, expiry and purpose. A token is expired from its
// exp instant onwards; no leeway is applied.
func (m *TokenManager) Verify(raw string, expected domain.TokenPurpose) (domain.TokenClaims, error) {
	if raw == "" {
		return domain.TokenClaims{}, fmt.Errorf("%w: empty token", ErrTokenMalformed)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(m.issuer),
	)

	var claims tokenClaims
	parsed, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secrets.SigningSecret()
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.TokenClaims{}, ErrTokenExpired
		}
		return domain.TokenClaims{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return domain.TokenClaims{}, ErrTokenMalformed
	}
	if claims.Purpose != expected {
		return domain.TokenClaims{}, ErrTokenPurposeMismatch
	}

	return domain.TokenClaims{
		AccountID: claims.Subject,
		TokenID:   claims.ID,
		Purpose:   claims.Purpose,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
