// Package metrics exports cache statistics as Prometheus collectors. Rather
// than instrumenting call sites directly, it polls an engine.Engine's
// AllStatistics on an interval and republishes the derived counters as
// gauges, since those counters already live inside entrystore.Store and
// must not be double-counted by a second Inc() site.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/cachegate/cachegate/internal/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider is the narrow surface metrics needs from an Engine.
type StatsProvider interface {
	AllStatistics() []engine.CacheStatistics
}

// CacheMetrics wraps the Prometheus collectors for one process's set of
// registered caches, label-indexed by cache name.
type CacheMetrics struct {
	registry *prometheus.Registry

	size                 *prometheus.GaugeVec
	hits                 *prometheus.GaugeVec
	misses               *prometheus.GaugeVec
	loadSuccesses        *prometheus.GaugeVec
	loadExceptions       *prometheus.GaugeVec
	evictions            *prometheus.GaugeVec
	hitRatio             *prometheus.GaugeVec
	avgLoadPenaltyMillis *prometheus.GaugeVec
	estimatedMemoryBytes *prometheus.GaugeVec

	uptime prometheus.GaugeFunc
}

var startTime = time.Now()

var cacheMetrics *CacheMetrics

// Init builds the registry and collectors under namespace (e.g.
// "cachegate") and installs the process/Go runtime collectors alongside
// them. Safe to call once at startup.
func Init(namespace string) *CacheMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	cm := &CacheMetrics{
		registry: registry,

		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cache_size", Help: "Current number of entries held by a cache.",
		}, []string{"cache"}),

		hits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cache_hits", Help: "Cumulative number of requests served from a cache without a load.",
		}, []string{"cache"}),

		misses: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cache_misses", Help: "Cumulative number of requests that required a load.",
		}, []string{"cache"}),

		loadSuccesses: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cache_load_successes", Help: "Cumulative number of loads that completed without error.",
		}, []string{"cache"}),

		loadExceptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cache_load_exceptions", Help: "Cumulative number of loads that failed.",
		}, []string{"cache"}),

		evictions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cache_evictions", Help: "Cumulative number of entries evicted by size or TTL.",
		}, []string{"cache"}),

		hitRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cache_hit_ratio", Help: "hits / (hits + misses); NaN when there have been no requests.",
		}, []string{"cache"}),

		avgLoadPenaltyMillis: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cache_average_load_penalty_milliseconds", Help: "Mean load duration across successful loads.",
		}, []string{"cache"}),

		estimatedMemoryBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cache_estimated_memory_bytes", Help: "Lower-bound estimate of key+value bytes held by a cache.",
		}, []string{"cache"}),
	}

	cm.uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "uptime_seconds", Help: "Time since the metrics subsystem started.",
	}, func() float64 { return time.Since(startTime).Seconds() })

	registry.MustRegister(
		cm.size, cm.hits, cm.misses, cm.loadSuccesses, cm.loadExceptions,
		cm.evictions, cm.hitRatio, cm.avgLoadPenaltyMillis, cm.estimatedMemoryBytes,
		cm.uptime,
	)

	cacheMetrics = cm
	return cm
}

// Refresh republishes every registered cache's current CacheStatistics as
// gauge values. Call on an interval (see StartPolling) or on-demand before a
// scrape.
func Refresh(provider StatsProvider) {
	if cacheMetrics == nil {
		return
	}
	for _, s := range provider.AllStatistics() {
		cacheMetrics.size.WithLabelValues(s.Name).Set(float64(s.Size))
		cacheMetrics.hits.WithLabelValues(s.Name).Set(float64(s.HitCount))
		cacheMetrics.misses.WithLabelValues(s.Name).Set(float64(s.MissCount))
		cacheMetrics.loadSuccesses.WithLabelValues(s.Name).Set(float64(s.LoadSuccessCount))
		cacheMetrics.loadExceptions.WithLabelValues(s.Name).Set(float64(s.LoadExceptionCount))
		cacheMetrics.evictions.WithLabelValues(s.Name).Set(float64(s.EvictionCount))
		cacheMetrics.hitRatio.WithLabelValues(s.Name).Set(s.HitRate)
		cacheMetrics.avgLoadPenaltyMillis.WithLabelValues(s.Name).Set(s.AverageLoadPenaltyNanos / 1e6)
		cacheMetrics.estimatedMemoryBytes.WithLabelValues(s.Name).Set(float64(s.EstimatedMemoryBytes))
	}
}

// StartPolling calls Refresh(provider) every interval until ctx is
// cancelled. Intended to run in its own goroutine for the lifetime of the
// server.
func StartPolling(ctx context.Context, provider StatsProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	Refresh(provider)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			Refresh(provider)
		}
	}
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format. Returns 503 if Init has not been called.
func Handler() http.Handler {
	if cacheMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(cacheMetrics.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry, for tests or callers
// that want to register additional collectors.
func Registry() *prometheus.Registry {
	if cacheMetrics == nil {
		return nil
	}
	return cacheMetrics.registry
}
