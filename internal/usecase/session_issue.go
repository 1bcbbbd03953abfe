package usecase

import (
	"fmt"
	"time"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/core/port"
)

// IssuedSession is a freshly minted session token and the account it belongs to.
type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
	Account   *domain.Account
}

// TTL is the remaining lifetime relative to now, used for the cookie max-age.
func (s *IssuedSession) TTL(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

func issueSession(tokens port.TokenService, account *domain.Account) (*IssuedSession, error) {
	token, claims, err := tokens.IssueSessionToken(account.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	return &IssuedSession{Token: token, ExpiresAt: claims.ExpiresAt, Account: account}, nil
}
