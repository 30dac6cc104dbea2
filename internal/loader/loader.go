// Package loader executes the parameterized query bound to one cache
// definition for a single key, resolving the configured value column
// case-insensitively against whatever labels the driver reports.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cachegate/cachegate/internal/cachedef"
	"github.com/cachegate/cachegate/internal/connpool"
	"github.com/cachegate/cachegate/internal/db"
)

// Sentinel errors a Loader can return, wrapped with call-specific context.
var (
	ErrQuery         = errors.New("loader: query failed")
	ErrColumnMissing = errors.New("loader: configured column not present in result set")
)

// ColumnMissingError carries enough detail for an operator-facing message:
// which column was requested and which columns the result actually had.
type ColumnMissingError struct {
	Wanted    string
	Available []string
}

func (e *ColumnMissingError) Error() string {
	return fmt.Sprintf("%v: wanted %q, available %v", ErrColumnMissing, e.Wanted, e.Available)
}

func (e *ColumnMissingError) Unwrap() error { return ErrColumnMissing }

// Loader issues def.Query for one key using a connection borrowed from
// pool, and resolves def.ValueColumn against the result set's columns.
type Loader struct {
	def       cachedef.Definition
	pool      *connpool.Pool
	borrowTTL time.Duration
}

// New builds a Loader bound to def and pool. The Loader closure captures
// both by value/pointer at construction time so that a later re-registration
// of the same cache name does not retroactively change an in-flight load's
// target.
func New(def cachedef.Definition, pool *connpool.Pool, borrowTimeout time.Duration) *Loader {
	return &Loader{def: def, pool: pool, borrowTTL: borrowTimeout}
}

// Load executes def.Query with key bound to its sole positional parameter.
// It returns (value, true, nil) on a found row, ("", false, nil) on no rows
// or a SQL NULL in the value column, and ("", false, err) on any driver or
// column-resolution failure.
func (l *Loader) Load(ctx context.Context, key string) (string, bool, error) {
	conn, err := l.pool.Borrow(ctx, l.borrowTTL)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", l.def.Name, err)
	}
	defer l.pool.Release(conn)

	exec := connpool.Executor(conn)
	return loadFrom(ctx, exec, l.def, key)
}

// loadFrom is split out from Load so it can be exercised directly against a
// db.Executor backed by sqlmock, without a real connpool.Pool.
func loadFrom(ctx context.Context, exec db.Executor, def cachedef.Definition, key string) (string, bool, error) {
	rows, err := exec.Query(ctx, def.Query, key)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w: %v", def.Name, ErrQuery, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w: %v", def.Name, ErrQuery, err)
	}
	idx, err := resolveColumn(def.ValueColumn, cols)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", def.Name, err)
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", false, fmt.Errorf("%s: %w: %v", def.Name, ErrQuery, err)
		}
		return "", false, nil // zero rows: NotFound
	}

	dest := make([]any, len(cols))
	var value sql.NullString
	for i := range dest {
		if i == idx {
			dest[i] = &value
		} else {
			dest[i] = new(any)
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return "", false, fmt.Errorf("%s: %w: %v", def.Name, ErrQuery, err)
	}
	if err := rows.Err(); err != nil {
		return "", false, fmt.Errorf("%s: %w: %v", def.Name, ErrQuery, err)
	}

	if !value.Valid {
		// SQL NULL in the value column must never be memoized as "".
		return "", false, nil
	}
	return value.String, true, nil
}

// resolveColumn finds wanted in cols case-insensitively, then falls back to
// an exact comparison against the raw labels. The fallback accepts only
// labels the case-insensitive pass already accepts, so quoted or
// schema-qualified labels are not matched.
func resolveColumn(wanted string, cols []string) (int, error) {
	for i, c := range cols {
		if strings.EqualFold(c, wanted) {
			return i, nil
		}
	}
	for i, c := range cols {
		if c == wanted {
			return i, nil
		}
	}
	return -1, &ColumnMissingError{Wanted: wanted, Available: append([]string(nil), cols...)}
}
