package repositories

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	domainerrors "memberhub.backend/internal/domain/errors"
)

const (
	pgUniqueViolation = "23505"
	pgUndefinedColumn = "42703"
	pgUndefinedTable  = "42P01"
)

func asPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if pgErr, ok := asPgError(err); ok {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isSchemaDrift(err error) bool {
	if err == nil {
		return false
	}
	if pgErr, ok := asPgError(err); ok {
		return pgErr.Code == pgUndefinedColumn || pgErr.Code == pgUndefinedTable
	}
	msg := err.Error()
	return strings.Contains(msg, "no such column") || strings.Contains(msg, "no such table")
}

// translate maps driver errors onto domain errors. feature names the optional
// schema element a drift error would degrade.
func translate(err error, feature string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domainerrors.ErrNotFound
	case isUniqueViolation(err):
		return domainerrors.ErrAlreadyExists
	case feature != "" && isSchemaDrift(err):
		return &domainerrors.SchemaDriftError{Feature: feature, Err: err}
	}
	return err
}
