package connpool

import (
	"context"
	"database/sql"

	"github.com/cachegate/cachegate/internal/db"
)

// connExecutor adapts a borrowed *sql.Conn to the db.Executor interface so
// the loader depends on the driver-agnostic abstraction in internal/db
// rather than database/sql directly.
type connExecutor struct {
	conn *sql.Conn
}

// Executor wraps conn as a db.Executor.
func Executor(conn *sql.Conn) db.Executor {
	return connExecutor{conn: conn}
}

func (e connExecutor) Exec(ctx context.Context, query string, args ...any) (db.Result, error) {
	res, err := e.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlResult{res}, nil
}

func (e connExecutor) QueryRow(ctx context.Context, query string, args ...any) db.Row {
	return e.conn.QueryRowContext(ctx, query, args...)
}

func (e connExecutor) Query(ctx context.Context, query string, args ...any) (db.Rows, error) {
	rows, err := e.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

type sqlResult struct{ sql.Result }

func (r sqlResult) RowsAffected() int64 {
	n, err := r.Result.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// sqlRows adapts *sql.Rows to db.Rows, adding the Columns() accessor the
// loader needs for case-insensitive value-column resolution.
type sqlRows struct{ *sql.Rows }

func (r sqlRows) Close() { r.Rows.Close() }

// Columns exposes the driver-reported column labels for the active result
// set, matching rows.Columns() from database/sql.
func (r sqlRows) Columns() ([]string, error) { return r.Rows.Columns() }
