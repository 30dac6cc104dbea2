// Package connpool provides a per-cache bounded pool of database
// connections scoped to one external datasource.
//
// A pool connects lazily: sql.Open never dials, so constructing a Pool is
// cheap and side-effect free even when the remote host is unreachable. The
// first Borrow triggers the actual dial. This mirrors the lazy-construction
// contract the engine relies on when swapping registrations: building the
// replacement pool must not block on the network.
package connpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Pool is a bounded, lazily-connecting pool of database connections for one
// cache. It is bound to exactly one Registration; replacing a Registration
// builds a fresh Pool and retires the old one. Pools are never shared
// across caches, even when two caches point at the same URL, so that pool
// sizing stays predictable per cache.
type Pool struct {
	name   string // "cache-<definition name>", used for logging only
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	db     *sql.DB // nil until the first Borrow
	closed bool
}

// Config configures a Pool.
type Config struct {
	Name           string // definition name; the pool labels itself "cache-<Name>"
	Driver         string
	URL            string
	MaxConnections int
}

// New validates that Driver names a registered database/sql driver and
// returns a Pool that has not yet opened any connection.
func New(cfg Config, logger *slog.Logger) (*Pool, error) {
	if _, err := resolveDriver(cfg.Driver); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		name:   "cache-" + cfg.Name,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// ensureOpen lazily opens the underlying *sql.DB on first use.
func (p *Pool) ensureOpen() (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if p.db != nil {
		return p.db, nil
	}

	info, err := resolveDriver(p.cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(info.sqlDriver, info.dsn(p.cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, p.name, err)
	}
	db.SetMaxOpenConns(p.cfg.MaxConnections)
	db.SetMaxIdleConns(0) // minIdle=0: never hold idle connections open
	p.db = db
	p.logger.Debug("connection pool opened", "pool", p.name, "driver", info.sqlDriver, "max_conns", p.cfg.MaxConnections)
	return db, nil
}

// Borrow obtains a connection, blocking up to timeout. Cancellation (via ctx
// or the timeout elapsing) releases any reservation made while waiting.
// Returns ErrExhausted when the pool could not honor the borrow within the
// deadline, ErrConnection when the driver itself failed, and ErrClosed when
// the pool has already been closed.
func (p *Pool) Borrow(ctx context.Context, timeout time.Duration) (*sql.Conn, error) {
	db, err := p.ensureOpen()
	if err != nil {
		return nil, err
	}

	bctx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		bctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := db.Conn(bctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrExhausted
		}
		if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.Canceled) {
			return nil, ErrExhausted
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, p.name, err)
	}
	return conn, nil
}

// Release returns conn to the pool. database/sql.Conn.Close already
// discards connections flagged bad by the driver rather than recycling
// them, so Release never needs to inspect connection health itself.
func (p *Pool) Release(conn *sql.Conn) error {
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// TestConnection opens a throwaway connection and verifies it responds
// within 10s. It returns Borrow's errors unchanged, or the ping's own error;
// callers that need a human-readable status (the CacheEngine.TestConnection
// operation) format err.Error() themselves.
func (p *Pool) TestConnection(ctx context.Context) error {
	conn, err := p.Borrow(ctx, 10*time.Second)
	if err != nil {
		return err
	}
	defer p.Release(conn)

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return conn.PingContext(pctx)
}

// Close drains idle connections and marks the pool closed; any borrower
// still waiting observes ErrClosed or a database/sql error derived from the
// closed *sql.DB. Safe to call more than once and safe to call while
// queries that already hold a connection from a prior Borrow are still
// running — database/sql lets those finish against the closing *sql.DB.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Name returns the pool's observability label, "cache-<definition name>".
func (p *Pool) Name() string { return p.name }
