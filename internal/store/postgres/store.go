// Package postgres implements the identity, catalog, membership, attendance and
// QR code repositories on top of database/sql with the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"classattend/internal/apperr"
)

// SQLSTATE codes the repositories translate into domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store persists all entities in Postgres.
type Store struct {
	db *sql.DB
}

// New creates a store over an open pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// withTx runs fn in a transaction, rolling back when fn fails.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Unavailable(errors.Wrap(err, "begin tx"))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Unavailable(errors.Wrap(err, "commit tx"))
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// storeErr classifies a query error: missing rows become NotFound with msg,
// anything else is a store failure.
func storeErr(err error, op string, notFound string) error {
	if errors.Is(err, sql.ErrNoRows) && notFound != "" {
		return apperr.NotFoundf("%s", notFound)
	}
	return apperr.Unavailable(errors.Wrap(err, op))
}

// whereBuilder accumulates AND-ed clauses with positional placeholders.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}
