package engine

import (
	"context"
	"errors"
	"time"

	"github.com/cachegate/cachegate/internal/cachedef"
	"github.com/cachegate/cachegate/internal/connpool"
	"github.com/cachegate/cachegate/internal/entrystore"
	"github.com/cachegate/cachegate/internal/logging"
	"github.com/cachegate/cachegate/internal/observability"
)

// keyLoader is the narrow contract a registration needs from a Loader.
// Satisfied by *loader.Loader; tests substitute a fake to exercise
// registration/Engine behavior without a real connection pool.
type keyLoader interface {
	Load(ctx context.Context, key string) (string, bool, error)
}

// registration is the engine's live, atomic bundle of one cache's in-memory
// state and resources. It is immutable after publication: replacing a
// cache's configuration builds an entirely new registration rather than
// mutating this one.
type registration struct {
	definition cachedef.Definition
	store      *entrystore.Store
	pool       *connpool.Pool
	loader     keyLoader

	bookkeeping *keyBookkeeping
	loadLogger  *logging.Logger
}

// lookup performs get(key, loader) against this registration's store and
// updates the Registration-level loadedAt/accesses bookkeeping described in
// the data model. It returns (value, true, nil) on a hit or fresh load,
// (   "", false, nil) on a confirmed NotFound, and ("", false, err) on any
// other failure, in which case accesses is NOT incremented.
func (r *registration) lookup(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	var queried bool
	wrapped := func(ctx context.Context, key string) (string, bool, error) {
		queried = true
		return r.loader.Load(ctx, key)
	}

	value, found, err := r.store.Get(ctx, key, wrapped)
	durationMs := time.Since(start).Milliseconds()

	// queried is false both on a genuine cache hit and on a joiner that
	// shared another goroutine's in-flight load: in either case this call
	// itself never issued SQL, so "hit" is the honest label for it.
	entry := &logging.LoadLog{
		CacheName:  r.definition.Name,
		CacheID:    r.definition.ID,
		Key:        key,
		DurationMs: durationMs,
		Hit:        !queried,
		TraceID:    observability.GetTraceID(ctx),
		SpanID:     observability.GetSpanID(ctx),
	}
	if err != nil && !errors.Is(err, entrystore.ErrNotFound) {
		entry.Success = false
		entry.Error = err.Error()
		r.logLoad(entry)
		return "", false, err
	}
	entry.Success = true
	entry.Found = found
	r.logLoad(entry)

	// Either a hit/fresh-load or a confirmed NotFound: both count as a
	// successful lookup for the access counter, per the data model
	// invariant that only failed loads skip it.
	r.bookkeeping.recordAccess(key)
	if found && queried {
		// Only the call that ran the loader moves loadedAt; hits and
		// joiners leave it at the last successful load.
		r.bookkeeping.recordLoad(key)
	}
	return value, found, nil
}

// bookkeepingSnapshot exposes the Registration-level loadedAt/accesses maps
// for tests and operator-facing introspection; production code derives
// CacheEntry.LoadedAtMillis/AccessCount from entrystore.Store.Entries()
// directly, since that is the authoritative per-entry state.
func (r *registration) bookkeepingSnapshot() (loadedAt, accesses map[string]int64) {
	return r.bookkeeping.snapshot()
}

// logLoad emits entry through the registration's load logger, if any, off
// the caller's goroutine so a slow or unavailable log sink never adds
// latency to a lookup. Tests that plant a registration directly may leave
// loadLogger nil.
func (r *registration) logLoad(entry *logging.LoadLog) {
	if r.loadLogger == nil {
		return
	}
	safeGo(func() { r.loadLogger.Log(entry) })
}
