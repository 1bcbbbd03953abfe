package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/core/port"
	"github.com/Maarioo25/HiFybe/internal/repository"
)

const accountsTable = "accounts"

var accountColumns = []string{
	"id",
	"name",
	"surname",
	"nickname",
	"email",
	"password_hash",
	"auth_provider",
	"external_id",
	"bio",
	"avatar_url",
	"latitude",
	"longitude",
	"registered_at",
	"last_seen_at",
	"reset_token_hash",
	"reset_expires_at",
	"version",
	"updated_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository wires a PostgreSQL-backed account repository.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	return &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new account row. Email must already be normalized.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if account == nil {
		return fmt.Errorf("create account: nil account")
	}

	var passwordHash any
	if account.PasswordHash != "" {
		passwordHash = account.PasswordHash
	}

	stmt, args, err := r.builder.Insert(accountsTable).
		Columns(
			"id",
			"name",
			"surname",
			"nickname",
			"email",
			"password_hash",
			"auth_provider",
			"external_id",
			"bio",
			"avatar_url",
			"latitude",
			"longitude",
			"registered_at",
			"last_seen_at",
			"updated_at",
		).
		Values(
			account.ID,
			account.Name,
			account.Surname,
			account.Nickname,
			account.Email,
			passwordHash,
			string(account.AuthProvider),
			account.ExternalID,
			account.Bio,
			account.AvatarURL,
			account.Latitude,
			account.Longitude,
			account.RegisteredAt,
			account.LastSeenAt,
			account.RegisteredAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return mapWriteError("insert account", err)
	}

	account.Version = 1
	account.UpdatedAt = account.RegisteredAt
	return nil
}

// FindByID retrieves an account by primary key.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, squirrel.Eq{"id": id})
}

// FindByEmail retrieves an account by normalized email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, squirrel.Eq{"email": domain.NormalizeEmail(email)})
}

// FindByNickname matches nicknames case-insensitively, mirroring the unique index.
func (r *AccountRepository) FindByNickname(ctx context.Context, nickname string) (*domain.Account, error) {
	return r.findOne(ctx, squirrel.Expr("LOWER(nickname) = LOWER(?)", strings.TrimSpace(nickname)))
}

// FindByExternalID retrieves an account by its linked provider subject.
func (r *AccountRepository) FindByExternalID(ctx context.Context, subject string) (*domain.Account, error) {
	return r.findOne(ctx, squirrel.Eq{"external_id": subject})
}

// Update persists profile fields. Credential and reset columns have dedicated methods.
func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	if account == nil {
		return fmt.Errorf("update account: nil account")
	}

	now := account.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	stmt, args, err := r.builder.Update(accountsTable).
		Set("name", account.Name).
		Set("surname", account.Surname).
		Set("nickname", account.Nickname).
		Set("bio", account.Bio).
		Set("avatar_url", account.AvatarURL).
		Set("latitude", account.Latitude).
		Set("longitude", account.Longitude).
		Set("last_seen_at", account.LastSeenAt).
		Set("updated_at", now).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": account.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return mapWriteError("update account", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	account.UpdatedAt = now
	account.Version++
	return nil
}

// LinkExternalID attaches subject only while external_id is still NULL, so two
// concurrent callbacks cannot overwrite each other's link.
func (r *AccountRepository) LinkExternalID(ctx context.Context, id, subject string, at time.Time) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("external_id", subject).
		Set("last_seen_at", at).
		Set("updated_at", at).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"external_id": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build link account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return mapWriteError("link external identity", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdatePasswordHash replaces the stored digest.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string, at time.Time) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("password_hash", passwordHash).
		Set("updated_at", at).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// TouchLastSeen records the latest successful authentication.
func (r *AccountRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("last_seen_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch last seen sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetResetToken stores the token hash and its expiry in one statement,
// superseding any pending token.
func (r *AccountRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("reset_token_hash", tokenHash).
		Set("reset_expires_at", expiresAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set reset token sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return mapWriteError("set reset token", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RedeemResetToken is a single compare-and-clear statement: only one of two
// concurrent redemptions of the same token can match the WHERE clause.
func (r *AccountRepository) RedeemResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*domain.Account, error) {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("password_hash", passwordHash).
		Set("reset_token_hash", squirrel.Expr("NULL")).
		Set("reset_expires_at", squirrel.Expr("NULL")).
		Set("updated_at", now).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"reset_token_hash": tokenHash}).
		Where(squirrel.Gt{"reset_expires_at": now}).
		Suffix("RETURNING " + strings.Join(accountColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build redeem reset token sql: %w", err)
	}

	account, err := scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redeem reset token: %w", err)
	}
	return account, nil
}

func (r *AccountRepository) findOne(ctx context.Context, pred squirrel.Sqlizer) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	account, err := scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account      domain.Account
		passwordHash *string
		provider     string
	)

	if err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Surname,
		&account.Nickname,
		&account.Email,
		&passwordHash,
		&provider,
		&account.ExternalID,
		&account.Bio,
		&account.AvatarURL,
		&account.Latitude,
		&account.Longitude,
		&account.RegisteredAt,
		&account.LastSeenAt,
		&account.ResetTokenHash,
		&account.ResetExpiresAt,
		&account.Version,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if passwordHash != nil {
		account.PasswordHash = *passwordHash
	}
	account.AuthProvider = domain.AuthProvider(provider)
	return &account, nil
}
