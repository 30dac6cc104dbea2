package connpool

import "errors"

// Sentinel errors surfaced by ConnectionPool. Callers should use errors.Is.
var (
	// ErrConnection indicates the driver rejected or failed to open a connection.
	ErrConnection = errors.New("connpool: connection error")
	// ErrExhausted indicates borrow could not obtain a connection within its timeout.
	ErrExhausted = errors.New("connpool: pool exhausted")
	// ErrClosed indicates an operation was attempted on a closed pool.
	ErrClosed = errors.New("connpool: pool is closed")
)
