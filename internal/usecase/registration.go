package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/core/port"
	"github.com/Maarioo25/HiFybe/internal/infra/logger"
	"github.com/Maarioo25/HiFybe/internal/repository"
)

// RegisterInput is a validated local registration request.
type RegisterInput struct {
	Name      string
	Surname   string
	Nickname  string
	Email     string
	Password  string
	Bio       string
	AvatarURL string
	Latitude  *float64
	Longitude *float64
}

// RegistrationService creates local accounts.
type RegistrationService struct {
	accounts port.AccountRepository
	hasher   port.PasswordHasher
	policy   port.PasswordPolicy
	events   port.EventPublisher
	logger   *zap.Logger
	metrics  AuthMetrics
	now      func() time.Time
}

// NewRegistrationService constructs a registration service. events may be nil.
func NewRegistrationService(
	accounts port.AccountRepository,
	hasher port.PasswordHasher,
	policy port.PasswordPolicy,
	events port.EventPublisher,
	logger *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		accounts: accounts,
		hasher:   hasher,
		policy:   policy,
		events:   events,
		logger:   loggerOrNop(logger),
		metrics:  noopMetrics{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *RegistrationService) WithClock(clock func() time.Time) *RegistrationService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithMetrics records created accounts.
func (s *RegistrationService) WithMetrics(metrics AuthMetrics) *RegistrationService {
	s.metrics = metricsOrNoop(metrics)
	return s
}

// Register checks email then nickname for collisions, hashes the password
// and stores a local account. The unique indexes remain the real guarantee
// against concurrent registrations; the lookups only produce a friendlier
// error first.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (account *domain.Account, err error) {
	ctx, span := tracer.Start(ctx, "RegistrationService.Register")
	defer func() { endSpan(span, err) }()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalidInput("name", "is required")
	}
	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		return nil, invalidInput("email", "is required")
	}
	if addr, perr := mail.ParseAddress(email); perr != nil || addr.Address != email {
		return nil, invalidInput("email", "is malformed")
	}
	nickname := domain.NormalizeNickname(in.Nickname)

	inputs := []string{email, name}
	if nickname != nil {
		inputs = append(inputs, *nickname)
	}
	if s.policy != nil {
		if err := s.policy.Validate(in.Password, inputs...); err != nil {
			return nil, invalidPassword(err)
		}
	}

	if err := ensureAvailable("email", func() (*domain.Account, error) {
		return s.accounts.FindByEmail(ctx, email)
	}); err != nil {
		return nil, err
	}
	if nickname != nil {
		if err := ensureAvailable("nickname", func() (*domain.Account, error) {
			return s.accounts.FindByNickname(ctx, *nickname)
		}); err != nil {
			return nil, err
		}
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	account = &domain.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Surname:      strings.TrimSpace(in.Surname),
		Nickname:     nickname,
		Email:        email,
		PasswordHash: digest,
		AuthProvider: domain.AuthProviderLocal,
		Bio:          strings.TrimSpace(in.Bio),
		AvatarURL:    strings.TrimSpace(in.AvatarURL),
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		RegisteredAt: now,
		Version:      1,
		UpdatedAt:    now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, duplicateIdentity(err)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	span.SetAttributes(attribute.String("account.id", account.ID))

	s.metrics.ObserveRegistration(string(domain.AuthProviderLocal))
	scoped(s.logger, ctx).Info("account registered",
		zap.String("account_id", account.ID),
		zap.String("email", logger.MaskEmail(email)),
	)

	if s.events != nil {
		logPublishFailure(ctx, s.logger, "account.registered", account.ID, s.events.PublishAccountRegistered(ctx, domain.AccountRegisteredEvent{
			EventID:      uuid.NewString(),
			AccountID:    account.ID,
			Email:        account.Email,
			Nickname:     account.Nickname,
			AuthProvider: account.AuthProvider,
			RegisteredAt: now,
		}))
	}

	return account, nil
}

func ensureAvailable(field string, lookup func() (*domain.Account, error)) error {
	_, err := lookup()
	switch {
	case err == nil:
		return &DuplicateIdentityError{Field: field}
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("lookup %s: %w", field, err)
	}
}
