package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/enrollment-kpi/internal/models"
)

// Sync run outcomes used as metric labels.
const (
	SyncOutcomeSuccess = "success"
	SyncOutcomePartial = "partial"
	SyncOutcomeFailed  = "failed"
)

// MetricsService owns the private Prometheus registry of the process.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	syncRuns         *prometheus.CounterVec
	syncRecords      *prometheus.CounterVec
	fetchFailures    *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	batchCommit      prometheus.Histogram
	countDayLocks    prometheus.Counter
	fallbackRuns     prometheus.Counter
	snapshotsWritten *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	syncRunCount         uint64
	lastSyncUnixNano     int64
}

// NewMetricsService registers the HTTP, cache and sync collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dashboard_cache_latency_seconds",
			Help:    "Latency for dashboard cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dashboard_cache_write_seconds",
			Help:    "Latency for dashboard cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_cache_misses_total",
			Help: "Total cache misses",
		}),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_sync_runs_total",
			Help: "Sync runs by outcome",
		}, []string{"outcome"}),
		syncRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_sync_records_total",
			Help: "Student records written or skipped by sync runs",
		}, []string{"kind"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "source_fetch_failures_total",
			Help: "Failed table fetches per base",
		}, []string{"base"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "source_fetch_duration_seconds",
			Help:    "Time spent reading a whole source table",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"table"}),
		batchCommit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_batch_commit_seconds",
			Help:    "Latency of one ledger batch commit",
			Buckets: prometheus.DefBuckets,
		}),
		countDayLocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapshot_count_day_locks_total",
			Help: "Count-day snapshots locked",
		}),
		fallbackRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_sync_yearless_fallback_total",
			Help: "Sync runs that assigned records to every configured year because none matched",
		}),
		snapshotsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshots_written_total",
			Help: "Snapshots written per school year",
		}, []string{"school_year"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite, m.cacheHitRatio, m.cacheHits, m.cacheMisses,
		m.syncRuns, m.syncRecords, m.fetchFailures, m.fetchDuration, m.batchCommit,
		m.countDayLocks, m.fallbackRuns, m.snapshotsWritten, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache hit or miss and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordSyncRun counts a finished sync run.
func (m *MetricsService) RecordSyncRun(outcome string, processed, skipped int) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(outcome).Inc()
	m.syncRecords.WithLabelValues("processed").Add(float64(processed))
	m.syncRecords.WithLabelValues("skipped").Add(float64(skipped))
	atomic.AddUint64(&m.syncRunCount, 1)
	atomic.StoreInt64(&m.lastSyncUnixNano, time.Now().UnixNano())
}

// RecordFetch observes one table fetch; a non-nil err counts as a failure for base.
func (m *MetricsService) RecordFetch(base, table string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(table).Observe(duration.Seconds())
	if err != nil {
		m.fetchFailures.WithLabelValues(base).Inc()
	}
}

// ObserveBatchCommit records ledger batch latency.
func (m *MetricsService) ObserveBatchCommit(duration time.Duration) {
	if m == nil {
		return
	}
	m.batchCommit.Observe(duration.Seconds())
}

// RecordFallback counts a zero-match fallback run.
func (m *MetricsService) RecordFallback() {
	if m == nil {
		return
	}
	m.fallbackRuns.Inc()
}

// RecordSnapshot counts a written snapshot and, when locked, a count-day lock.
func (m *MetricsService) RecordSnapshot(schoolYear string, locked bool) {
	if m == nil {
		return
	}
	m.snapshotsWritten.WithLabelValues(schoolYear).Inc()
	if locked {
		m.countDayLocks.Inc()
	}
}

// Summary returns aggregated counters for the health endpoint.
func (m *MetricsService) Summary() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	out := models.SystemMetrics{
		CacheHits:     hits,
		CacheMisses:   misses,
		RequestsTotal: requests,
		SyncRuns:      atomic.LoadUint64(&m.syncRunCount),
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
	if total := hits + misses; total > 0 {
		out.CacheHitRatio = float64(hits) / float64(total)
	}
	if requests > 0 {
		out.AverageRequestDurationMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	if last := atomic.LoadInt64(&m.lastSyncUnixNano); last > 0 {
		t := time.Unix(0, last).UTC()
		out.LastSyncAt = &t
	}
	return out
}
