package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/core/port"
	"github.com/Maarioo25/HiFybe/internal/repository"
)

// ProfileInput carries a partial profile edit. Nil fields are left untouched;
// an empty Nickname removes it.
type ProfileInput struct {
	Name      *string
	Surname   *string
	Nickname  *string
	Bio       *string
	AvatarURL *string
	Latitude  *float64
	Longitude *float64
}

// Empty reports whether the edit changes nothing.
func (in ProfileInput) Empty() bool {
	return in.Name == nil && in.Surname == nil && in.Nickname == nil && in.Bio == nil &&
		in.AvatarURL == nil && in.Latitude == nil && in.Longitude == nil
}

// ProfileService lets an authenticated account edit its own profile.
// Email, credentials and provider links are not editable here.
type ProfileService struct {
	accounts port.AccountRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewProfileService constructs ProfileService.
func NewProfileService(accounts port.AccountRepository, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		accounts: accounts,
		logger:   loggerOrNop(logger),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *ProfileService) WithClock(clock func() time.Time) *ProfileService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// UpdateProfile applies in to the account and returns the stored result.
func (s *ProfileService) UpdateProfile(ctx context.Context, accountID string, in ProfileInput) (account *domain.Account, err error) {
	ctx, span := tracer.Start(ctx, "ProfileService.UpdateProfile")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("account.id", accountID))

	if in.Empty() {
		return nil, invalidInput("profile", "no fields to update")
	}

	account, err = s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalidInput("name", "is required")
		}
		account.Name = name
	}
	if in.Surname != nil {
		account.Surname = strings.TrimSpace(*in.Surname)
	}
	if in.Nickname != nil {
		nickname := domain.NormalizeNickname(*in.Nickname)
		if nickname != nil && !sameNickname(account.Nickname, *nickname) {
			if err := ensureAvailable("nickname", func() (*domain.Account, error) {
				return s.accounts.FindByNickname(ctx, *nickname)
			}); err != nil {
				return nil, err
			}
		}
		account.Nickname = nickname
	}
	if in.Bio != nil {
		account.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.AvatarURL != nil {
		account.AvatarURL = strings.TrimSpace(*in.AvatarURL)
	}
	if in.Latitude != nil {
		account.Latitude = in.Latitude
	}
	if in.Longitude != nil {
		account.Longitude = in.Longitude
	}
	account.UpdatedAt = s.now()

	if err := s.accounts.Update(ctx, account); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, duplicateIdentity(err)
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("update account: %w", err)
	}

	scoped(s.logger, ctx).Info("profile updated", zap.String("account_id", account.ID))
	return account, nil
}

func sameNickname(current *string, next string) bool {
	return current != nil && strings.EqualFold(*current, next)
}
