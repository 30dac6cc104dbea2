// Package db defines an abstract, driver-agnostic query interface so the
// loader can execute a parameterized SELECT without depending on
// database/sql (or any particular driver) directly.
package db

import (
	"context"
)

// Row represents a single row returned by a query.
type Row interface {
	Scan(dest ...any) error
}

// Rows represents a set of rows returned by a query.
type Rows interface {
	// Next advances to the next row, returning false when exhausted.
	Next() bool
	// Scan reads column values from the current row.
	Scan(dest ...any) error
	// Columns returns the driver-reported column labels for the active
	// result set, in the order they were selected.
	Columns() ([]string, error)
	// Err returns any error encountered during iteration.
	Err() error
	// Close releases the rows.
	Close()
}

// Result describes the outcome of an executed statement.
type Result interface {
	// RowsAffected returns the number of rows affected by the statement.
	RowsAffected() int64
}

// Executor can execute queries and statements against a single connection.
type Executor interface {
	// Exec executes a statement that does not return rows.
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	// QueryRow executes a query expected to return at most one row.
	QueryRow(ctx context.Context, query string, args ...any) Row
	// Query executes a query that returns multiple rows.
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}
