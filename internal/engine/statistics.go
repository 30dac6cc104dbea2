package engine

import "github.com/cachegate/cachegate/internal/entrystore"

// CacheStatistics is a derived, point-in-time view of one cache's counters.
type CacheStatistics struct {
	Name                    string
	Size                    int
	HitCount                int64
	MissCount               int64
	LoadSuccessCount        int64
	LoadExceptionCount      int64
	HitRate                 float64 // NaN when RequestCount is zero
	EvictionCount           int64
	RequestCount            int64
	TotalLoadTimeNanos      int64
	AverageLoadPenaltyNanos float64 // 0 when LoadSuccessCount is zero
	EstimatedMemoryBytes    int64   // lower-bound approximation, see entrystore.Store.EstimatedMemoryBytes
}

func statsFromStore(name string, store *entrystore.Store) CacheStatistics {
	s := store.Stats()
	return CacheStatistics{
		Name:                    name,
		Size:                    store.Size(),
		HitCount:                s.HitCount,
		MissCount:               s.MissCount,
		LoadSuccessCount:        s.LoadSuccessCount,
		LoadExceptionCount:      s.LoadExceptionCount,
		HitRate:                 s.HitRate(),
		EvictionCount:           s.EvictionCount,
		RequestCount:            s.RequestCount(),
		TotalLoadTimeNanos:      s.TotalLoadTimeNanos,
		AverageLoadPenaltyNanos: s.AverageLoadPenaltyNanos(),
		EstimatedMemoryBytes:    store.EstimatedMemoryBytes(),
	}
}
