package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrRetryable = errors.New("retryable")
)

// MapError tags storage failures so callers can branch with errors.Is without
// knowing the driver. Unrecognized errors are wrapped with op only.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrRetryable):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrNotFound, err))
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrConflict, err))
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrRetryable, err))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", op, errors.Join(ErrConflict, err))
		case "40001", "40P01", "55P03": // serialization, deadlock, lock_not_available
			return fmt.Errorf("%s: %w", op, errors.Join(ErrRetryable, err))
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint failed"), strings.Contains(msg, "duplicate key"):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrConflict, err))
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "deadlock"):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrRetryable, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
