// Package engine implements the CacheEngine façade: the set of live
// Registrations, registration lifecycle (register/unregister/shutdown),
// name- and id-based lookup, refresh, and the snapshot/statistics
// inspection surface.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cachegate/cachegate/internal/cachedef"
	"github.com/cachegate/cachegate/internal/connpool"
	"github.com/cachegate/cachegate/internal/entrystore"
	"github.com/cachegate/cachegate/internal/loader"
	"github.com/cachegate/cachegate/internal/logging"
	"github.com/cachegate/cachegate/internal/observability"
)

// Engine is the public façade over the set of registered caches. The
// zero value is not usable; construct with New. An Engine is safe for
// concurrent use; registration map reads never block on a writer.
type Engine struct {
	byID   sync.Map // id (string) -> *registration
	byName sync.Map // name (string) -> id (string)

	facades       FacadeSink
	logger        *slog.Logger
	loadLogger    *logging.Logger
	borrowTimeout time.Duration
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithFacadeSink sets the sink used to publish/retract the channel lookup
// façade. Defaults to NoopFacadeSink.
func WithFacadeSink(sink FacadeSink) Option {
	return func(e *Engine) { e.facades = sink }
}

// WithLogger sets the structured logger used for registration lifecycle
// events. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithLoadLogger sets the per-load event logger used to record one LoadLog
// entry per lookup (hit/miss, duration, outcome). Defaults to
// logging.Default().
func WithLoadLogger(logger *logging.Logger) Option {
	return func(e *Engine) { e.loadLogger = logger }
}

// WithBorrowTimeout sets how long a Loader waits for a pool connection
// before failing with connpool.ErrExhausted. Defaults to 5s.
func WithBorrowTimeout(d time.Duration) Option {
	return func(e *Engine) { e.borrowTimeout = d }
}

// New constructs an empty Engine with no registered caches.
func New(opts ...Option) *Engine {
	e := &Engine{
		facades:       NoopFacadeSink{},
		logger:        slog.Default(),
		loadLogger:    logging.Default(),
		borrowTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// safeGo runs f in a new goroutine with panic recovery so a failure in
// fire-and-forget background work (load logging) never crashes a lookup.
func safeGo(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Default().Error("recovered panic in async task", "panic", r)
			}
		}()
		f()
	}()
}

// Register validates def, builds a fresh Registration for it, and
// atomically publishes it. If a Registration already exists for def.ID, it
// is replaced: the old pool is closed only after the new Registration is
// visible, so queries already holding a connection from it complete
// undisturbed. Returns the (possibly generated) id.
func (e *Engine) Register(ctx context.Context, def cachedef.Definition) (string, error) {
	_, span := observability.StartSpan(ctx, "cache.register", observability.AttrCacheName.String(def.Name), observability.AttrCacheDriver.String(def.Driver))
	defer span.End()

	if err := cachedef.Validate(def); err != nil {
		observability.SetSpanError(span, err)
		return "", err
	}
	d := def.WithGeneratedID().Clone()

	if existingID, ok := e.byName.Load(d.Name); ok && existingID.(string) != d.ID {
		err := fmt.Errorf("%w: %q", ErrDuplicateName, d.Name)
		observability.SetSpanError(span, err)
		return "", err
	}

	pool, err := connpool.New(connpool.Config{
		Name:           d.Name,
		Driver:         d.Driver,
		URL:            d.URL,
		MaxConnections: d.MaxConnections,
	}, e.logger)
	if err != nil {
		observability.SetSpanError(span, err)
		return "", err
	}

	r := &registration{
		definition:  d,
		store:       entrystore.New(d.MaxSize, d.EvictionTTL()),
		pool:        pool,
		loader:      loader.New(d, pool, e.borrowTimeout),
		bookkeeping: newKeyBookkeeping(),
		loadLogger:  e.loadLogger,
	}

	prev, replaced := e.byID.Swap(d.ID, r)

	var old *registration
	if replaced {
		old = prev.(*registration)
		if old.definition.Name != d.Name {
			e.byName.CompareAndDelete(old.definition.Name, d.ID)
			e.facades.Remove(old.definition.Name)
		}
	}

	e.byName.Store(d.Name, d.ID)
	e.facades.Put(d.Name, boundFacade{engine: e, id: d.ID})

	if old != nil {
		old.store.InvalidateAll()
		if err := old.pool.Close(); err != nil {
			e.logger.Warn("error closing replaced pool", "cache", old.definition.Name, "error", err)
		}
	}

	e.logger.Info("cache registered", "id", d.ID, "name", d.Name, "replaced", replaced)
	observability.SetSpanOK(span)
	return d.ID, nil
}

// Unregister removes id's Registration, invalidating its store, retracting
// its name and façade entries, and closing its pool. A no-op (not an error)
// when id is not registered; callers that need to distinguish should check
// with Statistics first.
func (e *Engine) Unregister(id string) error {
	v, ok := e.byID.LoadAndDelete(id)
	if !ok {
		return nil
	}
	r := v.(*registration)
	e.byName.CompareAndDelete(r.definition.Name, id)
	e.facades.Remove(r.definition.Name)
	r.store.InvalidateAll()
	if err := r.pool.Close(); err != nil {
		e.logger.Warn("error closing unregistered pool", "cache", r.definition.Name, "error", err)
	}
	e.logger.Info("cache unregistered", "id", id, "name", r.definition.Name)
	return nil
}

// LookupByID resolves id's Registration and looks up key through it.
// Returns ErrUnknownCache if id is not registered.
func (e *Engine) LookupByID(ctx context.Context, id, key string) (string, bool, error) {
	ctx, span := observability.StartSpan(ctx, "cache.lookup", observability.AttrCacheID.String(id), observability.AttrCacheKey.String(key))
	defer span.End()

	v, ok := e.byID.Load(id)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownCache, id)
		observability.SetSpanError(span, err)
		return "", false, err
	}
	r := v.(*registration)
	start := time.Now()
	value, found, err := r.lookup(ctx, key)
	span.SetAttributes(observability.AttrDurationMs.Int64(time.Since(start).Milliseconds()))
	if err != nil {
		observability.SetSpanError(span, err)
		return "", false, err
	}
	observability.SetSpanOK(span)
	return value, found, nil
}

// LookupByName resolves name to an id via the name map, then delegates to
// LookupByID. Returns ErrUnknownCache if name is not registered.
func (e *Engine) LookupByName(ctx context.Context, name, key string) (string, bool, error) {
	idVal, ok := e.byName.Load(name)
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownCache, name)
	}
	return e.LookupByID(ctx, idVal.(string), key)
}

// Refresh re-loads every key present in id's store at call time, returning
// the number of keys whose reload failed. Keys added by concurrent lookups
// after Refresh begins are not included. Refresh blocks until every
// enumerated key has completed or failed, and returns ErrUnknownCache only
// for an unrecognized id; per-key failures are never returned as an error.
func (e *Engine) Refresh(ctx context.Context, id string) (int, error) {
	ctx, span := observability.StartSpan(ctx, "cache.refresh", observability.AttrCacheID.String(id))
	defer span.End()

	v, ok := e.byID.Load(id)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownCache, id)
		observability.SetSpanError(span, err)
		return 0, err
	}
	r := v.(*registration)

	failures := 0
	for _, key := range r.store.Keys() {
		r.store.Invalidate(key)
		if _, _, err := r.lookup(ctx, key); err != nil {
			failures++
		}
	}
	observability.SetSpanOK(span)
	return failures, nil
}

// Snapshot returns a filtered, sorted, limited view of id's store contents
// and statistics. Returns ErrUnknownCache if id is not registered.
func (e *Engine) Snapshot(id string, q SnapshotQuery) (CacheSnapshot, error) {
	v, ok := e.byID.Load(id)
	if !ok {
		return CacheSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownCache, id)
	}
	r := v.(*registration)
	return buildSnapshot(r.definition.Name, r.store, q)
}

// Statistics returns id's current CacheStatistics. Returns ErrUnknownCache
// if id is not registered.
func (e *Engine) Statistics(id string) (CacheStatistics, error) {
	v, ok := e.byID.Load(id)
	if !ok {
		return CacheStatistics{}, fmt.Errorf("%w: %s", ErrUnknownCache, id)
	}
	r := v.(*registration)
	return statsFromStore(r.definition.Name, r.store), nil
}

// AllStatistics returns one CacheStatistics per Registration, in
// unspecified order.
func (e *Engine) AllStatistics() []CacheStatistics {
	var out []CacheStatistics
	e.byID.Range(func(_, v any) bool {
		r := v.(*registration)
		out = append(out, statsFromStore(r.definition.Name, r.store))
		return true
	})
	return out
}

// TestConnection opens a throwaway connection pool for def and verifies
// reachability. It never returns an error: every failure is translated to a
// human-readable status string for direct display.
func (e *Engine) TestConnection(ctx context.Context, def cachedef.Definition) string {
	pool, err := connpool.New(connpool.Config{
		Name:           def.Name,
		Driver:         def.Driver,
		URL:            def.URL,
		MaxConnections: 1,
	}, e.logger)
	if err != nil {
		return fmt.Sprintf("connection failed: %v", err)
	}
	defer pool.Close()

	if err := pool.TestConnection(ctx); err != nil {
		return fmt.Sprintf("connection failed: %v", err)
	}
	return "connection succeeded"
}

// TestQuery runs def.Query against sampleKey through a throwaway pool and
// loader, rendering the result as a human-readable status string. Like
// TestConnection, it never returns an error.
func (e *Engine) TestQuery(ctx context.Context, def cachedef.Definition, sampleKey string) string {
	pool, err := connpool.New(connpool.Config{
		Name:           def.Name,
		Driver:         def.Driver,
		URL:            def.URL,
		MaxConnections: 1,
	}, e.logger)
	if err != nil {
		return fmt.Sprintf("connection failed: %v", err)
	}
	defer pool.Close()

	l := loader.New(def, pool, e.borrowTimeout)
	value, found, err := l.Load(ctx, sampleKey)
	if err != nil {
		var colErr *loader.ColumnMissingError
		if errors.As(err, &colErr) {
			return fmt.Sprintf("column %q not found in result set; available columns: %v", colErr.Wanted, colErr.Available)
		}
		return fmt.Sprintf("query failed: %v", err)
	}
	if !found {
		return fmt.Sprintf("Key: %s Value: <not found>", sampleKey)
	}
	return fmt.Sprintf("Key: %s Value: %s", sampleKey, value)
}

// Shutdown invalidates every store, closes every pool, and clears every
// registration and façade entry. After Shutdown, every id and name resolves
// to ErrUnknownCache.
func (e *Engine) Shutdown() {
	e.byID.Range(func(k, v any) bool {
		r := v.(*registration)
		e.byID.Delete(k)
		e.byName.CompareAndDelete(r.definition.Name, k.(string))
		e.facades.Remove(r.definition.Name)
		r.store.InvalidateAll()
		if err := r.pool.Close(); err != nil {
			e.logger.Warn("error closing pool during shutdown", "cache", r.definition.Name, "error", err)
		}
		return true
	})
	e.logger.Info("engine shutdown complete")
}
