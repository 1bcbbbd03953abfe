package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/core/port"
	"github.com/Maarioo25/HiFybe/internal/infra/logger"
	"github.com/Maarioo25/HiFybe/internal/infra/security"
	"github.com/Maarioo25/HiFybe/internal/repository"
)

const passwordResetReason = "password_reset"

// ResetTicket is a pending reset issued for one account.
type ResetTicket struct {
	AccountID string
	Token     string
	ExpiresAt time.Time
}

// PasswordResetService drives NONE -> PENDING -> REDEEMED. A new request
// supersedes the pending token; expiry is enforced by the token itself and
// by the stored expiry.
type PasswordResetService struct {
	accounts port.AccountRepository
	hasher   port.PasswordHasher
	tokens   port.TokenService
	policy   port.PasswordPolicy
	events   port.EventPublisher
	logger   *zap.Logger
	metrics  AuthMetrics
	now      func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService. events may be nil.
func NewPasswordResetService(
	accounts port.AccountRepository,
	hasher port.PasswordHasher,
	tokens port.TokenService,
	policy port.PasswordPolicy,
	events port.EventPublisher,
	logger *zap.Logger,
) *PasswordResetService {
	return &PasswordResetService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		policy:   policy,
		events:   events,
		logger:   loggerOrNop(logger),
		metrics:  noopMetrics{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *PasswordResetService) WithClock(clock func() time.Time) *PasswordResetService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithMetrics records reset outcomes.
func (s *PasswordResetService) WithMetrics(metrics AuthMetrics) *PasswordResetService {
	s.metrics = metricsOrNoop(metrics)
	return s
}

// RequestReset issues a reset token for email and stores its hash. Unknown
// emails return ErrAccountNotFound; whether that reaches the client is the
// caller's decision.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (ticket *ResetTicket, err error) {
	ctx, span := tracer.Start(ctx, "PasswordResetService.RequestReset")
	defer func() { endSpan(span, err) }()

	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, invalidInput("email", "is required")
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveResetRequest("unknown_account")
			scoped(s.logger, ctx).Info("password reset requested for unknown email",
				zap.String("email", logger.MaskEmail(email)),
			)
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	span.SetAttributes(attribute.String("account.id", account.ID))

	token, claims, err := s.tokens.IssueResetToken(account.ID)
	if err != nil {
		return nil, fmt.Errorf("issue reset token: %w", err)
	}

	if err := s.accounts.SetResetToken(ctx, account.ID, security.HashToken(token), claims.ExpiresAt); err != nil {
		return nil, fmt.Errorf("store reset token: %w", err)
	}

	s.metrics.ObserveResetRequest("issued")

	if s.events != nil {
		logPublishFailure(ctx, s.logger, "password_reset.requested", account.ID, s.events.PublishPasswordResetRequested(ctx, domain.PasswordResetRequestedEvent{
			EventID:     uuid.NewString(),
			AccountID:   account.ID,
			Email:       account.Email,
			Token:       token,
			RequestedAt: s.now(),
			ExpiresAt:   claims.ExpiresAt,
		}))
	}

	return &ResetTicket{AccountID: account.ID, Token: token, ExpiresAt: claims.ExpiresAt}, nil
}

// Redeem swaps the password for the account holding token. Checking and
// clearing the stored token happen in one store operation, so a token can
// be redeemed at most once.
func (s *PasswordResetService) Redeem(ctx context.Context, token, newPassword string) (account *domain.Account, err error) {
	ctx, span := tracer.Start(ctx, "PasswordResetService.Redeem")
	defer func() {
		if err != nil {
			s.metrics.ObserveResetRedeem("rejected")
		}
		endSpan(span, err)
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	if _, err := s.tokens.Verify(token, domain.TokenPurposeReset); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
	}

	if s.policy != nil {
		if err := s.policy.Validate(newPassword); err != nil {
			return nil, invalidPassword(err)
		}
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	account, err = s.accounts.RedeemResetToken(ctx, security.HashToken(token), digest, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("redeem reset token: %w", err)
	}

	s.metrics.ObserveResetRedeem("success")
	scoped(s.logger, ctx).Info("password reset redeemed", zap.String("account_id", account.ID))

	if s.events != nil {
		logPublishFailure(ctx, s.logger, "password.changed", account.ID, s.events.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
			EventID:   uuid.NewString(),
			AccountID: account.ID,
			ChangedAt: now,
			Reason:    passwordResetReason,
		}))
	}

	return account, nil
}
