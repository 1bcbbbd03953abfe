package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/core/port"
	"github.com/Maarioo25/HiFybe/internal/repository"
)

// SessionService resolves session tokens to accounts for the auth gate.
// Tokens are stateless; the denylist only exists when revocation is enabled.
type SessionService struct {
	accounts      port.AccountRepository
	tokens        port.TokenService
	denylist      port.SessionDenylist
	touchLastSeen bool
	logger        *zap.Logger
	now           func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(accounts port.AccountRepository, tokens port.TokenService, logger *zap.Logger) *SessionService {
	return &SessionService{
		accounts: accounts,
		tokens:   tokens,
		logger:   loggerOrNop(logger),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) *SessionService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithDenylist enables explicit revocation on logout.
func (s *SessionService) WithDenylist(denylist port.SessionDenylist) *SessionService {
	s.denylist = denylist
	return s
}

// WithLastSeenTouch updates last-seen on every authenticated request.
func (s *SessionService) WithLastSeenTouch(enabled bool) *SessionService {
	s.touchLastSeen = enabled
	return s
}

// Authenticate verifies a session token and loads its account. Every token
// or lookup miss becomes ErrUnauthenticated; store failures are returned
// wrapped so the boundary reports them as server errors.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*domain.Account, domain.TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.TokenClaims{}, ErrUnauthenticated
	}

	claims, err := s.tokens.Verify(token, domain.TokenPurposeSession)
	if err != nil {
		return nil, domain.TokenClaims{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	if s.denylist != nil && claims.TokenID != "" {
		revoked, err := s.denylist.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			// Revocation is an opt-in addition to stateless tokens; an
			// unreachable denylist does not lock everyone out.
			scoped(s.logger, ctx).Warn("session denylist lookup failed", zap.Error(err))
		} else if revoked {
			return nil, domain.TokenClaims{}, fmt.Errorf("%w: session revoked", ErrUnauthenticated)
		}
	}

	account, err := s.accounts.FindByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.TokenClaims{}, fmt.Errorf("%w: account no longer exists", ErrUnauthenticated)
		}
		return nil, domain.TokenClaims{}, fmt.Errorf("lookup account: %w", err)
	}

	if s.touchLastSeen {
		now := s.now()
		if err := s.accounts.TouchLastSeen(ctx, account.ID, now); err != nil {
			scoped(s.logger, ctx).Warn("touch last seen failed", zap.String("account_id", account.ID), zap.Error(err))
		} else {
			account.LastSeenAt = &now
		}
	}

	return account, claims, nil
}

// Logout revokes token when a denylist is configured. Without one it is a
// no-op and the token stays valid until it expires.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if s.denylist == nil || token == "" {
		return nil
	}

	claims, err := s.tokens.Verify(token, domain.TokenPurposeSession)
	if err != nil || claims.TokenID == "" {
		return nil
	}

	if err := s.denylist.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevocationEnabled reports whether logout revokes tokens server side.
func (s *SessionService) RevocationEnabled() bool {
	return s.denylist != nil
}
