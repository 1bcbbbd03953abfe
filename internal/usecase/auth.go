package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/core/port"
	"github.com/Maarioo25/HiFybe/internal/infra/security"
	"github.com/Maarioo25/HiFybe/internal/repository"
)

const (
	loginOutcomeSuccess            = "success"
	loginOutcomeInvalidCredentials = "invalid_credentials"
	loginOutcomeError              = "error"
)

// AuthService runs local email and password logins.
type AuthService struct {
	accounts port.AccountRepository
	hasher   port.PasswordHasher
	tokens   port.TokenService
	logger   *zap.Logger
	metrics  AuthMetrics
	now      func() time.Time

	// dummyDigest is verified for unknown emails so both failure paths cost
	// one hash verification.
	dummyDigest string
}

// NewAuthService constructs an AuthService.
func NewAuthService(accounts port.AccountRepository, hasher port.PasswordHasher, tokens port.TokenService, logger *zap.Logger) (*AuthService, error) {
	if accounts == nil || hasher == nil || tokens == nil {
		return nil, fmt.Errorf("auth service: accounts, hasher and tokens are required")
	}

	filler, err := security.GenerateSecureToken(24)
	if err != nil {
		return nil, fmt.Errorf("auth service: generate dummy password: %w", err)
	}
	dummy, err := hasher.Hash(filler)
	if err != nil {
		return nil, fmt.Errorf("auth service: hash dummy password: %w", err)
	}

	return &AuthService{
		accounts:    accounts,
		hasher:      hasher,
		tokens:      tokens,
		logger:      loggerOrNop(logger),
		metrics:     noopMetrics{},
		now:         func() time.Time { return time.Now().UTC() },
		dummyDigest: dummy,
	}, nil
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) *AuthService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithMetrics records login outcomes.
func (s *AuthService) WithMetrics(metrics AuthMetrics) *AuthService {
	s.metrics = metricsOrNoop(metrics)
	return s
}

// Login verifies local credentials and mints a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (session *IssuedSession, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer func() { endSpan(span, err) }()

	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.ObserveLogin(loginOutcomeInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_, _ = s.hasher.Verify(password, s.dummyDigest)
			s.metrics.ObserveLogin(loginOutcomeInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		s.metrics.ObserveLogin(loginOutcomeError)
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	span.SetAttributes(attribute.String("account.id", account.ID))

	digest := account.PasswordHash
	if digest == "" {
		digest = s.dummyDigest
	}

	ok, err := s.hasher.Verify(password, digest)
	if err != nil {
		if errors.Is(err, security.ErrInvalidInput) {
			s.metrics.ObserveLogin(loginOutcomeInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		s.metrics.ObserveLogin(loginOutcomeError)
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok || !account.HasPassword() {
		s.metrics.ObserveLogin(loginOutcomeInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	s.rehashIfNeeded(ctx, account, password, now)

	session, err = issueSession(s.tokens, account)
	if err != nil {
		s.metrics.ObserveLogin(loginOutcomeError)
		return nil, err
	}

	if err := s.accounts.TouchLastSeen(ctx, account.ID, now); err != nil {
		scoped(s.logger, ctx).Warn("touch last seen failed", zap.String("account_id", account.ID), zap.Error(err))
	} else {
		account.LastSeenAt = &now
	}

	s.metrics.ObserveLogin(loginOutcomeSuccess)
	return session, nil
}

// rehashIfNeeded upgrades legacy or outdated digests after a successful
// verification. Failures only cost the upgrade.
func (s *AuthService) rehashIfNeeded(ctx context.Context, account *domain.Account, password string, now time.Time) {
	advisor, ok := s.hasher.(port.RehashAdvisor)
	if !ok || !advisor.NeedsRehash(account.PasswordHash) {
		return
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		scoped(s.logger, ctx).Warn("rehash password failed", zap.String("account_id", account.ID), zap.Error(err))
		return
	}
	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, digest, now); err != nil {
		scoped(s.logger, ctx).Warn("store rehashed password failed", zap.String("account_id", account.ID), zap.Error(err))
		return
	}
	account.PasswordHash = digest
}
