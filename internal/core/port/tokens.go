package port

import "github.com/Maarioo25/HiFybe/internal/core/domain"

// TokenService mints and verifies purpose-bound signed tokens.
type TokenService interface {
	IssueSessionToken(accountID string) (string, domain.TokenClaims, error)
	IssueResetToken(accountID string) (string, domain.TokenClaims, error)
	Verify(token string, expected domain.TokenPurpose) (domain.TokenClaims, error)
}
