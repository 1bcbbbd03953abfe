package domain

import "time"

// TokenPurpose separates session credentials from password reset credentials.
type TokenPurpose string

const (
	TokenPurposeSession TokenPurpose = "session"
	TokenPurposeReset   TokenPurpose = "reset"
)

// TokenClaims is the verified content of a signed token.
type TokenClaims struct {
	AccountID string
	TokenID   string
	Purpose   TokenPurpose
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Remaining returns how long the token stays valid after now.
func (c TokenClaims) Remaining(now time.Time) time.Duration {
	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
