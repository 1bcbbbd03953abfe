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

// ExternalOutcome reports how an external sign-in resolved to an account.
type ExternalOutcome string

const (
	ExternalOutcomeMatched ExternalOutcome = "matched"
	ExternalOutcomeLinked  ExternalOutcome = "linked"
	ExternalOutcomeCreated ExternalOutcome = "created"
)

// errResolveRace marks a lost race against a concurrent callback for the
// same identity; resolution is attempted once more.
var errResolveRace = errors.New("external identity changed during resolution")

// ExternalSignIn is the result of a provider callback.
type ExternalSignIn struct {
	Outcome ExternalOutcome
	Session *IssuedSession
}

// ExternalAuthService resolves provider callbacks into local accounts.
type ExternalAuthService struct {
	provider port.ExternalIdentityProvider
	accounts port.AccountRepository
	hasher   port.PasswordHasher
	tokens   port.TokenService
	events   port.EventPublisher
	logger   *zap.Logger
	metrics  AuthMetrics
	now      func() time.Time
}

// NewExternalAuthService constructs the resolver around an injected provider.
func NewExternalAuthService(
	provider port.ExternalIdentityProvider,
	accounts port.AccountRepository,
	hasher port.PasswordHasher,
	tokens port.TokenService,
	events port.EventPublisher,
	logger *zap.Logger,
) *ExternalAuthService {
	return &ExternalAuthService{
		provider: provider,
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		events:   events,
		logger:   loggerOrNop(logger),
		metrics:  noopMetrics{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *ExternalAuthService) WithClock(clock func() time.Time) *ExternalAuthService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithMetrics records sign-in outcomes.
func (s *ExternalAuthService) WithMetrics(metrics AuthMetrics) *ExternalAuthService {
	s.metrics = metricsOrNoop(metrics)
	return s
}

// AuthCodeURL returns the provider consent URL carrying state.
func (s *ExternalAuthService) AuthCodeURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

// Resolve exchanges code for a verified profile, then matches by subject,
// links by email or creates an account. Nothing local is written when the
// exchange fails.
func (s *ExternalAuthService) Resolve(ctx context.Context, code string) (result *ExternalSignIn, err error) {
	ctx, span := tracer.Start(ctx, "ExternalAuthService.Resolve")
	defer func() {
		if err != nil {
			s.metrics.ObserveExternalSignIn(failureOutcome(err))
		}
		endSpan(span, err)
	}()

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &ProviderError{Err: errors.New("authorization code missing")}
	}

	profile, err := s.provider.ExchangeCodeForProfile(ctx, code)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}
	if profile.SubjectID == "" || domain.NormalizeEmail(profile.Email) == "" {
		return nil, &ProviderError{Err: errors.New("profile without subject or email")}
	}
	if profile.Provider == "" {
		profile.Provider = domain.AuthProviderGoogle
	}

	account, outcome, err := s.resolve(ctx, profile)
	if errors.Is(err, errResolveRace) {
		account, outcome, err = s.resolve(ctx, profile)
	}
	if err != nil {
		if errors.Is(err, errResolveRace) {
			return nil, ErrIdentityConflict
		}
		return nil, err
	}
	span.SetAttributes(
		attribute.String("account.id", account.ID),
		attribute.String("external.outcome", string(outcome)),
	)

	session, err := issueSession(s.tokens, account)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveExternalSignIn(string(outcome))
	if outcome == ExternalOutcomeCreated {
		s.metrics.ObserveRegistration(string(account.AuthProvider))
	}
	s.publish(ctx, account, profile.Provider, outcome)

	scoped(s.logger, ctx).Info("external sign-in resolved",
		zap.String("account_id", account.ID),
		zap.String("outcome", string(outcome)),
		zap.String("email", logger.MaskEmail(account.Email)),
	)

	return &ExternalSignIn{Outcome: outcome, Session: session}, nil
}

func (s *ExternalAuthService) resolve(ctx context.Context, profile domain.ExternalProfile) (*domain.Account, ExternalOutcome, error) {
	now := s.now()

	// Subject first: it is immutable per provider account, emails are not.
	account, err := s.accounts.FindByExternalID(ctx, profile.SubjectID)
	switch {
	case err == nil:
		if err := s.accounts.TouchLastSeen(ctx, account.ID, now); err != nil {
			scoped(s.logger, ctx).Warn("touch last seen failed", zap.String("account_id", account.ID), zap.Error(err))
		} else {
			account.LastSeenAt = &now
		}
		return account, ExternalOutcomeMatched, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, "", fmt.Errorf("lookup external id: %w", err)
	}

	email := domain.NormalizeEmail(profile.Email)
	account, err = s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return s.link(ctx, account, profile, now)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, "", fmt.Errorf("lookup email: %w", err)
	}

	return s.create(ctx, profile, email, now)
}

func (s *ExternalAuthService) link(ctx context.Context, account *domain.Account, profile domain.ExternalProfile, now time.Time) (*domain.Account, ExternalOutcome, error) {
	if account.IsLinked() {
		if *account.ExternalID == profile.SubjectID {
			return account, ExternalOutcomeMatched, nil
		}
		return nil, "", ErrIdentityConflict
	}
	// An unverified provider email does not prove ownership of the local account.
	if !profile.EmailVerified {
		return nil, "", ErrIdentityConflict
	}

	if err := s.accounts.LinkExternalID(ctx, account.ID, profile.SubjectID, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrDuplicate):
			return nil, "", errResolveRace
		default:
			return nil, "", fmt.Errorf("link external id: %w", err)
		}
	}

	subject := profile.SubjectID
	account.ExternalID = &subject
	account.LastSeenAt = &now
	account.UpdatedAt = now
	account.Version++
	return account, ExternalOutcomeLinked, nil
}

func (s *ExternalAuthService) create(ctx context.Context, profile domain.ExternalProfile, email string, now time.Time) (*domain.Account, ExternalOutcome, error) {
	// The random password is never shown; it keeps a usable local digest on
	// every account.
	filler, err := security.GenerateSecureToken(32)
	if err != nil {
		return nil, "", fmt.Errorf("generate password: %w", err)
	}
	digest, err := s.hasher.Hash(filler)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	name, surname := profile.SplitName()
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	subject := profile.SubjectID

	account := &domain.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Surname:      surname,
		Email:        email,
		PasswordHash: digest,
		AuthProvider: profile.Provider,
		ExternalID:   &subject,
		AvatarURL:    profile.PictureURL,
		RegisteredAt: now,
		LastSeenAt:   &now,
		Version:      1,
		UpdatedAt:    now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", errResolveRace
		}
		return nil, "", fmt.Errorf("create account: %w", err)
	}
	return account, ExternalOutcomeCreated, nil
}

func (s *ExternalAuthService) publish(ctx context.Context, account *domain.Account, provider domain.AuthProvider, outcome ExternalOutcome) {
	if s.events == nil {
		return
	}

	switch outcome {
	case ExternalOutcomeCreated:
		logPublishFailure(ctx, s.logger, "account.registered", account.ID, s.events.PublishAccountRegistered(ctx, domain.AccountRegisteredEvent{
			EventID:      uuid.NewString(),
			AccountID:    account.ID,
			Email:        account.Email,
			AuthProvider: account.AuthProvider,
			RegisteredAt: account.RegisteredAt,
		}))
	case ExternalOutcomeLinked:
		logPublishFailure(ctx, s.logger, "account.linked", account.ID, s.events.PublishAccountLinked(ctx, domain.AccountLinkedEvent{
			EventID:   uuid.NewString(),
			AccountID: account.ID,
			Provider:  provider,
			LinkedAt:  account.UpdatedAt,
		}))
	}
}

func failureOutcome(err error) string {
	switch {
	case errors.Is(err, ErrProvider):
		return "provider_error"
	case errors.Is(err, ErrIdentityConflict):
		return "conflict"
	default:
		return "error"
	}
}
