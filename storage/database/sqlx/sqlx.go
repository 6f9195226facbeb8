// Package sqlxrepos implements the repositories on top of jmoiron/sqlx.
// Queries are written with `?` bindvars and rebound for the driver in use (postgres or sqlite3).
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/gallery/core"
)

type repository struct {
	db core.DB
}

// bind expands IN (?) lists and rebinds the query for the driver of e.
func bind(e core.DBExecutor, query string, args ...interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "binding query")
	}
	return e.Rebind(query), args, nil
}

func selectContext(ctx context.Context, e core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	query, args, err := bind(e, query, args...)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, e, dest, query, args...)
}

func getContext(ctx context.Context, e core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	query, args, err := bind(e, query, args...)
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, e, dest, query, args...)
}

func execContext(ctx context.Context, e core.DBExecutor, query string, args ...interface{}) (int64, error) {
	query, args, err := bind(e, query, args...)
	if err != nil {
		return 0, err
	}
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// where joins conditions with AND.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func notFound(err error, notFoundErr error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFoundErr
	}
	return err
}

// utc normalizes times read back from the database.
func utc(t time.Time) time.Time { return t.UTC() }
