// Package sqlxrepos implements the repositories on postgres or sqlite through sqlx.
// Queries use "?" bind vars, rebound for the driver in use.
package sqlxrepos

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/trezcool/tuutta/core"
)

type txKey struct{}

// TxRunner runs transactions on db. Repositories find the transaction in the ctx.
type TxRunner struct {
	db *sqlx.DB
}

var _ core.TxRunner = (*TxRunner)(nil)

func NewTxRunner(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db}
}

func (r *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(mapError(err), "committing transaction")
	}
	return nil
}

// executor returns the transaction of ctx, if any, or db.
func executor(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

// mapError turns unique-key violations into core.ErrConflict.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "23505" { // unique_violation
			return core.ErrConflict
		}
		// serialization_failure
		if pqErr.Code == "40001" {
			return core.ErrConflict
		}
		return err
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return core.ErrConflict
		}
		return err
	}

	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return core.ErrConflict
	}
	return err
}

func marshalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "encoding json column")
	}
	return string(b), nil
}

func unmarshalJSON(s string, v interface{}) error {
	if s == "" {
		return nil
	}
	return errors.Wrap(json.Unmarshal([]byte(s), v), "decoding json column")
}

// inClause returns "(?, ?, ...)" for n values.
func inClause(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}
