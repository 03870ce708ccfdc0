package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ehr/hospital/internal/platform/apperr"
)

// PostgreSQL SQLSTATE codes the repositories care about.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Classify translates driver errors into application errors. what names the
// entity involved and is used in user-facing messages.
func Classify(err error, what string) error {
	if err == nil {
		return nil
	}
	if IsNoRows(err) {
		return apperr.NotFound(what)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return apperr.Duplicate(fmt.Sprintf("%s already exists", what))
		case codeForeignKeyViolation:
			return apperr.Wrap(apperr.KindNotFound, "referenced entity not found", err)
		case codeCheckViolation:
			return apperr.Wrap(apperr.KindValidation, fmt.Sprintf("invalid %s", what), err)
		}
	}
	return apperr.Internal(fmt.Errorf("%s: %w", what, err))
}
