// Package entrystore implements the bounded, TTL-by-access, single-flight
// key/value map at the heart of one registered cache. It is deliberately
// independent of the database layer: it is handed a LoadFunc and knows
// nothing about SQL, connections, or drivers.
package entrystore

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNotFound indicates the loader confirmed no mapping exists for the key.
// It is never memoized.
var ErrNotFound = errors.New("entrystore: not found")

// LoadFunc loads the value for key from the system of record. It returns
// (value, true, nil) on success, ("", false, nil) on a confirmed miss, and
// ("", false, err) on any other failure. err must never be ErrNotFound; use
// the boolean instead.
type LoadFunc func(ctx context.Context, key string) (value string, found bool, err error)

type entry struct {
	value       string
	loadedAt    time.Time // wall-clock time of last successful load
	lastAccess  time.Time // reset on every read; drives TTL-by-access
	accessCount int64
	// seq breaks LRU ties: the entry with the smaller seq among those
	// tied on lastAccess was inserted first and is evicted first.
	seq uint64
}

// Stats are the counters a Store accumulates over its lifetime.
type Stats struct {
	HitCount           int64
	MissCount          int64
	LoadSuccessCount   int64
	LoadExceptionCount int64
	EvictionCount      int64
	TotalLoadTimeNanos int64
}

// RequestCount is HitCount + MissCount.
func (s Stats) RequestCount() int64 { return s.HitCount + s.MissCount }

// HitRate is HitCount/RequestCount, or NaN when RequestCount is zero.
func (s Stats) HitRate() float64 {
	rc := s.RequestCount()
	if rc == 0 {
		return math.NaN()
	}
	return float64(s.HitCount) / float64(rc)
}

// AverageLoadPenaltyNanos is TotalLoadTimeNanos/LoadSuccessCount, or 0 when
// no load has ever succeeded.
func (s Stats) AverageLoadPenaltyNanos() float64 {
	if s.LoadSuccessCount == 0 {
		return 0
	}
	return float64(s.TotalLoadTimeNanos) / float64(s.LoadSuccessCount)
}

// Entry is a defensive, point-in-time copy of one key's state, used by
// snapshots. The Registration's own loadedAt/accesses bookkeeping is kept
// separately and does not read it.
type Entry struct {
	Key            string
	Value          string
	LoadedAtMillis int64
	AccessCount    int64
}

// Store is a concurrent, bounded, TTL-by-access map with single-flight miss
// coalescing. The zero value is not usable; construct with New.
type Store struct {
	maxSize     int           // 0 = unbounded
	evictionTTL time.Duration // 0 = no TTL

	mu      sync.RWMutex
	entries map[string]*entry
	nextSeq uint64

	group singleflight.Group

	statsMu sync.Mutex
	stats   Stats
}

// New constructs a Store bounded to maxSize entries (0 = unbounded) with a
// per-entry access TTL of evictionTTL (0 = disabled).
func New(maxSize int, evictionTTL time.Duration) *Store {
	return &Store{
		maxSize:     maxSize,
		evictionTTL: evictionTTL,
		entries:     make(map[string]*entry),
	}
}

// Get returns the cached value for key, loading it via load on a miss. At
// most one concurrent load is ever in flight per key: other callers racing
// the same miss wait for and share its outcome.
func (s *Store) Get(ctx context.Context, key string, load LoadFunc) (string, bool, error) {
	s.sweep()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		s.touch(e)
		s.recordHit()
		return e.value, true, nil
	}

	type result struct {
		value string
		found bool
	}
	// singleflight.Group.Do reports shared=true to every caller whenever
	// the in-flight call had any joiners, leader included, so it cannot
	// tell a caller whether it was the one that actually ran fn. isLeader
	// works around that: fn is only ever invoked by the first caller to
	// reach this key, so only that caller's own closure sets it.
	var isLeader bool
	v, err, _ := s.group.Do(key, func() (any, error) {
		isLeader = true
		s.recordMiss() // the first observation is a miss; the call's outcome is shared with any joiners
		start := time.Now()
		value, found, err := load(ctx, key)
		elapsed := time.Since(start)
		if err != nil {
			s.recordLoadException()
			return nil, err
		}
		if !found {
			return result{found: false}, nil
		}
		s.recordLoadSuccess(elapsed)
		s.insert(key, value)
		return result{value: value, found: true}, nil
	})

	if !isLeader {
		// A joiner's perspective: whatever the leader observed, this call
		// did not itself invoke the loader. Only a successfully shared
		// value counts as a hit; a shared NotFound/Fails is still a miss
		// from this caller's point of view.
		if err == nil && v.(result).found {
			s.recordHit()
		} else {
			s.recordMiss()
		}
	}

	if err != nil {
		return "", false, err
	}
	r := v.(result)
	if !r.found {
		return "", false, ErrNotFound
	}
	return r.value, true, nil
}

// insert writes (key, value) into the map, evicting the least-recently-used
// entry first if the store is already at maxSize.
func (s *Store) insert(key, value string) {
	s.sweep()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictLockedLocked()
	}

	now := time.Now()
	s.nextSeq++
	s.entries[key] = &entry{
		value:       value,
		loadedAt:    now,
		lastAccess:  now,
		accessCount: 0,
		seq:         s.nextSeq,
	}
}

// evictLockedLocked evicts the single least-recently-accessed entry. Caller
// must hold s.mu for writing. Ties are broken by insertion order (seq): the
// older entry is evicted.
func (s *Store) evictLockedLocked() {
	var victim string
	var victimEntry *entry
	for k, e := range s.entries {
		if victimEntry == nil ||
			e.lastAccess.Before(victimEntry.lastAccess) ||
			(e.lastAccess.Equal(victimEntry.lastAccess) && e.seq < victimEntry.seq) {
			victim = k
			victimEntry = e
		}
	}
	if victimEntry != nil {
		delete(s.entries, victim)
		s.recordEviction()
	}
}

// touch resets key's access-TTL clock and bumps its access counter.
func (s *Store) touch(e *entry) {
	s.mu.Lock()
	e.lastAccess = time.Now()
	e.accessCount++
	s.mu.Unlock()
}

// sweep evicts every entry whose last access is older than evictionTTL. It
// runs opportunistically at the start of Get and insert; eviction is
// "eventually after access", not wall-clock precise.
func (s *Store) sweep() {
	if s.evictionTTL <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.evictionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for k, e := range s.entries {
		if e.lastAccess.Before(cutoff) {
			expired = append(expired, k)
		}
	}
	for _, k := range expired {
		delete(s.entries, k)
	}
	if len(expired) > 0 {
		s.statsMu.Lock()
		s.stats.EvictionCount += int64(len(expired))
		s.statsMu.Unlock()
	}
}

// Keys returns a snapshot of the current key set. The result may be stale
// by the time the caller observes it.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// Entries returns a defensive, point-in-time copy of every entry.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for k, e := range s.entries {
		out = append(out, Entry{
			Key:            k,
			Value:          e.value,
			LoadedAtMillis: e.loadedAt.UnixMilli(),
			AccessCount:    e.accessCount,
		})
	}
	return out
}

// Invalidate removes key immediately, if present.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// InvalidateAll drops every entry but preserves counters.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.mu.Unlock()
}

// Size returns the current entry count.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns a copy of the accumulated counters.
func (s *Store) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// EstimatedMemoryBytes is a deliberate lower-bound approximation,
// Σ(2·len(key)+2·len(value)) over all entries, with no accounting for map
// or struct overhead.
func (s *Store) EstimatedMemoryBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for k, e := range s.entries {
		total += int64(2*len(k) + 2*len(e.value))
	}
	return total
}

func (s *Store) recordHit() {
	s.statsMu.Lock()
	s.stats.HitCount++
	s.statsMu.Unlock()
}

func (s *Store) recordMiss() {
	s.statsMu.Lock()
	s.stats.MissCount++
	s.statsMu.Unlock()
}

func (s *Store) recordLoadSuccess(elapsed time.Duration) {
	s.statsMu.Lock()
	s.stats.LoadSuccessCount++
	s.stats.TotalLoadTimeNanos += elapsed.Nanoseconds()
	s.statsMu.Unlock()
}

func (s *Store) recordLoadException() {
	s.statsMu.Lock()
	s.stats.LoadExceptionCount++
	s.statsMu.Unlock()
}

func (s *Store) recordEviction() {
	s.statsMu.Lock()
	s.stats.EvictionCount++
	s.statsMu.Unlock()
}
