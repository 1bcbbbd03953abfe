// Package memory is an in-process credential store with the same uniqueness
// and compare-and-clear semantics as the Postgres repository. It backs
// usecase and router tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/core/port"
	"github.com/Maarioo25/HiFybe/internal/repository"
)

// AccountRepository stores accounts in a map guarded by a mutex.
type AccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

var _ port.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository returns an empty store.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]*domain.Account)}
}

// Len reports how many accounts are stored.
func (r *AccountRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

func (r *AccountRepository) FindByID(_ context.Context, id string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.ID == id })
}

func (r *AccountRepository) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)
	return r.find(func(a *domain.Account) bool { return a.Email == email })
}

func (r *AccountRepository) FindByNickname(_ context.Context, nickname string) (*domain.Account, error) {
	nickname = strings.TrimSpace(nickname)
	return r.find(func(a *domain.Account) bool {
		return a.Nickname != nil && strings.EqualFold(*a.Nickname, nickname)
	})
}

func (r *AccountRepository) FindByExternalID(_ context.Context, subject string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.ExternalID != nil && *a.ExternalID == subject })
}

func (r *AccountRepository) Create(_ context.Context, account *domain.Account) error {
	if account == nil {
		return fmt.Errorf("create account: nil account")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if field := r.collision(account, ""); field != "" {
		return fmt.Errorf("create account: %w", &repository.DuplicateError{Field: field, Constraint: "accounts_" + field + "_key"})
	}

	stored := clone(account)
	stored.Email = domain.NormalizeEmail(stored.Email)
	r.accounts[stored.ID] = stored
	return nil
}

func (r *AccountRepository) Update(_ context.Context, account *domain.Account) error {
	if account == nil {
		return fmt.Errorf("update account: nil account")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.accounts[account.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if field := r.collision(account, account.ID); field != "" {
		return fmt.Errorf("update account: %w", &repository.DuplicateError{Field: field, Constraint: "accounts_" + field + "_key"})
	}

	current.Name = account.Name
	current.Surname = account.Surname
	current.Nickname = cloneString(account.Nickname)
	current.Email = domain.NormalizeEmail(account.Email)
	current.Bio = account.Bio
	current.AvatarURL = account.AvatarURL
	current.Latitude = cloneFloat(account.Latitude)
	current.Longitude = cloneFloat(account.Longitude)
	current.LastSeenAt = cloneTime(account.LastSeenAt)
	current.UpdatedAt = account.UpdatedAt
	current.Version++
	return nil
}

func (r *AccountRepository) LinkExternalID(_ context.Context, id, subject string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.accounts[id]
	if !ok || current.IsLinked() {
		return repository.ErrNotFound
	}
	for _, other := range r.accounts {
		if other.ExternalID != nil && *other.ExternalID == subject {
			return fmt.Errorf("link external id: %w", &repository.DuplicateError{Field: "external_id", Constraint: "accounts_external_id_key"})
		}
	}

	current.ExternalID = &subject
	current.LastSeenAt = &at
	current.UpdatedAt = at
	current.Version++
	return nil
}

func (r *AccountRepository) UpdatePasswordHash(_ context.Context, id, passwordHash string, at time.Time) error {
	return r.mutate(id, func(a *domain.Account) {
		a.PasswordHash = passwordHash
		a.UpdatedAt = at
		a.Version++
	})
}

func (r *AccountRepository) TouchLastSeen(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(a *domain.Account) {
		a.LastSeenAt = &at
	})
}

func (r *AccountRepository) SetResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	return r.mutate(id, func(a *domain.Account) {
		a.ResetTokenHash = &tokenHash
		a.ResetExpiresAt = &expiresAt
	})
}

func (r *AccountRepository) RedeemResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.ResetTokenHash == nil || *a.ResetTokenHash != tokenHash {
			continue
		}
		if a.ResetExpiresAt == nil || !a.ResetExpiresAt.After(now) {
			return nil, repository.ErrNotFound
		}
		a.PasswordHash = passwordHash
		a.ResetTokenHash = nil
		a.ResetExpiresAt = nil
		a.UpdatedAt = now
		a.Version++
		return clone(a), nil
	}
	return nil, repository.ErrNotFound
}

func (r *AccountRepository) find(match func(*domain.Account) bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if match(a) {
			return clone(a), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *AccountRepository) mutate(id string, fn func(*domain.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(current)
	return nil
}

// collision mirrors the unique indexes; the caller holds the lock.
func (r *AccountRepository) collision(account *domain.Account, self string) string {
	email := domain.NormalizeEmail(account.Email)
	for id, other := range r.accounts {
		if id == self {
			continue
		}
		switch {
		case self == "" && id == account.ID:
			return "id"
		case other.Email == email:
			return "email"
		case account.Nickname != nil && other.Nickname != nil && strings.EqualFold(*other.Nickname, *account.Nickname):
			return "nickname"
		case account.ExternalID != nil && other.ExternalID != nil && *other.ExternalID == *account.ExternalID:
			return "external_id"
		}
	}
	return ""
}

func clone(a *domain.Account) *domain.Account {
	c := *a
	c.Nickname = cloneString(a.Nickname)
	c.ExternalID = cloneString(a.ExternalID)
	c.ResetTokenHash = cloneString(a.ResetTokenHash)
	c.Latitude = cloneFloat(a.Latitude)
	c.Longitude = cloneFloat(a.Longitude)
	c.LastSeenAt = cloneTime(a.LastSeenAt)
	c.ResetExpiresAt = cloneTime(a.ResetExpiresAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
