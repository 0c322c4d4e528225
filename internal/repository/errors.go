package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"freelancehub/internal/store"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// mapError translates driver errors to store sentinels and adds context.
func mapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, store.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s (%s): %w", msg, pgErr.ConstraintName, store.ErrDuplicate)
		case foreignKeyViolation:
			return fmt.Errorf("%s (%s): %w", msg, pgErr.ConstraintName, store.ErrInvalidReference)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
