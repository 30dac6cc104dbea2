package engine

import "errors"

// Sentinel errors surfaced by Engine. Wrapped with context via fmt.Errorf
// and %w; callers should compare with errors.Is.
var (
	// ErrUnknownCache is returned when an id or name has no Registration.
	ErrUnknownCache = errors.New("engine: unknown cache")
	// ErrDuplicateName is returned when Register would bind a name already
	// held by a different Registration.
	ErrDuplicateName = errors.New("engine: duplicate cache name")
)
