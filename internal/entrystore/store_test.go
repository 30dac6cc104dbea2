package entrystore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func constLoader(value string, found bool, err error) LoadFunc {
	return func(ctx context.Context, key string) (string, bool, error) {
		return value, found, err
	}
}

func countingLoader(value string, found bool, err error) (LoadFunc, *int64) {
	var calls int64
	return func(ctx context.Context, key string) (string, bool, error) {
		atomic.AddInt64(&calls, 1)
		return value, found, err
	}, &calls
}

// S1: cold hit, warm hit.
func TestColdHitWarmHit(t *testing.T) {
	s := New(0, 0)
	loader, calls := countingLoader("NY", true, nil)

	v, found, err := s.Get(context.Background(), "10001", loader)
	if err != nil || !found || v != "NY" {
		t.Fatalf("cold get: v=%q found=%v err=%v", v, found, err)
	}
	stats := s.Stats()
	if stats.MissCount != 1 || stats.HitCount != 0 {
		t.Fatalf("expected missCount=1 hitCount=0 after cold get, got %+v", stats)
	}

	v, found, err = s.Get(context.Background(), "10001", loader)
	if err != nil || !found || v != "NY" {
		t.Fatalf("warm get: v=%q found=%v err=%v", v, found, err)
	}
	stats = s.Stats()
	if stats.HitCount != 1 {
		t.Fatalf("expected hitCount=1 after warm get, got %+v", stats)
	}
	if atomic.LoadInt64(calls) != 1 {
		t.Fatalf("expected loader invoked exactly once, got %d", *calls)
	}
}

// S2: not-found.
func TestNotFoundNeverMemoized(t *testing.T) {
	s := New(0, 0)
	loader, calls := countingLoader("", false, nil)

	_, found, err := s.Get(context.Background(), "99999", loader)
	if !errors.Is(err, ErrNotFound) || found {
		t.Fatalf("expected NotFound, got found=%v err=%v", found, err)
	}
	if s.Size() != 0 {
		t.Fatalf("expected NotFound to not be memoized, size=%d", s.Size())
	}

	_, _, _ = s.Get(context.Background(), "99999", loader)
	if atomic.LoadInt64(calls) != 2 {
		t.Fatalf("expected loader re-invoked on second miss, got %d calls", *calls)
	}
}

// S3: single-flight.
func TestSingleFlightConcurrentMisses(t *testing.T) {
	s := New(0, 0)
	const n = 100
	release := make(chan struct{})
	var calls int64
	loader := func(ctx context.Context, key string) (string, bool, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return "NY", true, nil
	}

	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := s.Get(context.Background(), "10001", loader)
			results[i] = v
			errs[i] = err
		}(i)
	}
	time.Sleep(20 * time.Millisecond) // let all goroutines reach the singleflight call
	close(release)
	wg.Wait()

	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("expected exactly 1 loader invocation, got %d", calls)
	}
	for i, v := range results {
		if errs[i] != nil || v != "NY" {
			t.Fatalf("caller %d: v=%q err=%v", i, v, errs[i])
		}
	}
	stats := s.Stats()
	if stats.LoadSuccessCount != 1 {
		t.Fatalf("expected loadSuccessCount=1, got %d", stats.LoadSuccessCount)
	}
	if stats.MissCount != 1 {
		t.Fatalf("expected missCount=1, got %d", stats.MissCount)
	}
	if stats.HitCount != n-1 {
		t.Fatalf("expected hitCount=%d, got %d", n-1, stats.HitCount)
	}
}

// S4: size eviction.
func TestSizeEviction(t *testing.T) {
	s := New(2, 0)
	for _, k := range []string{"A", "B", "C"} {
		v := k
		_, _, err := s.Get(context.Background(), k, constLoader(v, true, nil))
		if err != nil {
			t.Fatalf("get %s: %v", k, err)
		}
	}
	if s.Size() != 2 {
		t.Fatalf("expected size=2, got %d", s.Size())
	}
	for _, k := range s.Keys() {
		if k == "A" {
			t.Fatalf("expected A to be evicted, keys=%v", s.Keys())
		}
	}
	if s.Stats().EvictionCount != 1 {
		t.Fatalf("expected evictionCount=1, got %d", s.Stats().EvictionCount)
	}
}

// S5: TTL eviction.
func TestAccessTTLEviction(t *testing.T) {
	s := New(0, 10*time.Millisecond)
	_, _, err := s.Get(context.Background(), "A", constLoader("1", true, nil))
	if err != nil {
		t.Fatalf("get A: %v", err)
	}
	if s.Size() != 1 {
		t.Fatalf("expected size=1 after load, got %d", s.Size())
	}

	time.Sleep(30 * time.Millisecond)

	// Any store operation triggers the opportunistic sweep.
	_, _, _ = s.Get(context.Background(), "B", constLoader("", false, fmt.Errorf("unused")))
	if s.Size() != 0 {
		t.Fatalf("expected A to be TTL-evicted, size=%d", s.Size())
	}
	if s.Stats().EvictionCount != 1 {
		t.Fatalf("expected evictionCount=1, got %d", s.Stats().EvictionCount)
	}
}

// Property 5: stats identity.
func TestStatsIdentity(t *testing.T) {
	s := New(0, 0)
	_, _, _ = s.Get(context.Background(), "hit-me", constLoader("v", true, nil))
	_, _, _ = s.Get(context.Background(), "hit-me", constLoader("v", true, nil)) // now a hit
	_, _, _ = s.Get(context.Background(), "missing", constLoader("", false, nil))
	_, _, _ = s.Get(context.Background(), "broken", constLoader("", false, errors.New("boom")))

	stats := s.Stats()
	if stats.RequestCount() != stats.HitCount+stats.MissCount {
		t.Fatalf("requestCount identity broken: %+v", stats)
	}
	if stats.LoadSuccessCount+stats.LoadExceptionCount > stats.MissCount {
		t.Fatalf("loadSuccess+loadException must not exceed missCount: %+v", stats)
	}
}

func TestHitRateNaNWithNoRequests(t *testing.T) {
	s := New(0, 0)
	rate := s.Stats().HitRate()
	if rate == rate {
		t.Fatalf("expected NaN hit rate with zero requests, got %v", rate)
	}
}

func TestFailedLoadNeverMemoizes(t *testing.T) {
	s := New(0, 0)
	_, found, err := s.Get(context.Background(), "k", constLoader("", false, errors.New("boom")))
	if found || err == nil {
		t.Fatalf("expected failure, got found=%v err=%v", found, err)
	}
	if s.Size() != 0 {
		t.Fatalf("expected failed load to not be memoized, size=%d", s.Size())
	}
}

func TestInvalidateAllPreservesCounters(t *testing.T) {
	s := New(0, 0)
	_, _, _ = s.Get(context.Background(), "k", constLoader("v", true, nil))
	before := s.Stats()
	s.InvalidateAll()
	if s.Size() != 0 {
		t.Fatalf("expected empty store after InvalidateAll, size=%d", s.Size())
	}
	after := s.Stats()
	if before != after {
		t.Fatalf("expected counters preserved across InvalidateAll: before=%+v after=%+v", before, after)
	}
}
