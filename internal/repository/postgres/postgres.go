package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Maarioo25/HiFybe/internal/repository"
)

// pgExecutor is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// constraintFields maps unique indexes to the identity axis reported to callers.
var constraintFields = map[string]string{
	"accounts_pkey":            "id",
	"accounts_email_key":       "email",
	"accounts_nickname_key":    "nickname",
	"accounts_external_id_key": "external_id",
	"accounts_reset_token_key": "reset_token",
}

// mapWriteError converts unique violations into *repository.DuplicateError
// and wraps everything else with the operation name.
func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		field, ok := constraintFields[pgErr.ConstraintName]
		if !ok {
			field = pgErr.ConstraintName
		}
		return fmt.Errorf("%s: %w", op, &repository.DuplicateError{
			Field:      field,
			Constraint: pgErr.ConstraintName,
		})
	}
	return fmt.Errorf("%s: %w", op, err)
}
