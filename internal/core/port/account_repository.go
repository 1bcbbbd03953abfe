package port

import (
	"context"
	"time"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
)

// AccountRepository is the credential store. Lookups return
// repository.ErrNotFound on a miss; writes return *repository.DuplicateError
// when a unique identity axis collides.
type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByNickname(ctx context.Context, nickname string) (*domain.Account, error)
	FindByExternalID(ctx context.Context, subject string) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, account *domain.Account) error
	// LinkExternalID attaches subject only while the account is still unlinked.
	LinkExternalID(ctx context.Context, id, subject string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string, at time.Time) error
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
	// SetResetToken stores the token hash and expiry together, replacing any pending token.
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	// RedeemResetToken atomically swaps the password and clears the reset pair
	// when tokenHash matches and has not expired at now.
	RedeemResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*domain.Account, error)
}
