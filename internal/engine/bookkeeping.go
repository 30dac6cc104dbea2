package engine

import (
	"sync"
	"time"
)

// keyBookkeeping holds the Registration-level loadedAt and accesses maps
// described in the data model, separate from entrystore's own internal
// LRU/TTL bookkeeping. entrystore.Store.Entries() already derives per-key
// loadedAt/accessCount for snapshots; keyBookkeeping exists so that data is
// also visible at the Registration level (matching §3's data model) without
// reaching into the store's private entry type.
type keyBookkeeping struct {
	mu       sync.Mutex
	loadedAt map[string]int64 // epoch millis of last successful load
	accesses map[string]int64 // monotonically increasing per-key counter
}

func newKeyBookkeeping() *keyBookkeeping {
	return &keyBookkeeping{
		loadedAt: make(map[string]int64),
		accesses: make(map[string]int64),
	}
}

func (b *keyBookkeeping) recordLoad(key string) {
	b.mu.Lock()
	b.loadedAt[key] = time.Now().UnixMilli()
	b.mu.Unlock()
}

func (b *keyBookkeeping) recordAccess(key string) {
	b.mu.Lock()
	b.accesses[key]++
	b.mu.Unlock()
}

// snapshot returns a defensive copy of both maps, for a Registration-level
// view alongside (but independent of) entrystore.Store's own per-entry
// tracking.
func (b *keyBookkeeping) snapshot() (loadedAt, accesses map[string]int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	loadedAt = make(map[string]int64, len(b.loadedAt))
	for k, v := range b.loadedAt {
		loadedAt[k] = v
	}
	accesses = make(map[string]int64, len(b.accesses))
	for k, v := range b.accesses {
		accesses[k] = v
	}
	return loadedAt, accesses
}
