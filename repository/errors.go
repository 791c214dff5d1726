package repository

import (
	"database/sql"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	auth "github.com/goliatone/go-storeauth"
)

const pgUniqueViolation = "23505"

func withMessage(base *goerrors.Error, message string, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	clone.Message = message
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

func notFound(message string, meta map[string]any) error {
	return withMessage(auth.ErrNotFound, message, meta)
}

func conflict(message string, meta map[string]any) error {
	return withMessage(auth.ErrConflict, message, meta)
}

func internal(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}

// isUniqueViolation recognizes unique constraint failures from postgres
// and from both sqlite drivers sqliteshim may select.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
