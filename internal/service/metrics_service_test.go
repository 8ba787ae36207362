package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsServiceSummary(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/dashboard/overview", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/sync", http.StatusAccepted, 40*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordSyncRun(SyncOutcomeSuccess, 120, 3)

	summary := m.Summary()
	assert.Equal(t, uint64(2), summary.RequestsTotal)
	assert.InDelta(t, 30.0, summary.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(2), summary.CacheHits)
	assert.Equal(t, uint64(1), summary.CacheMisses)
	assert.InDelta(t, 2.0/3.0, summary.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(1), summary.SyncRuns)
	require.NotNil(t, summary.LastSyncAt)

	assert.Equal(t, 120.0, testutil.ToFloat64(m.syncRecords.WithLabelValues("processed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.syncRecords.WithLabelValues("skipped")))
}

func TestMetricsServiceSyncCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordFetch("appA", "Students", time.Second, nil)
	m.RecordFetch("appA", "Truth", time.Second, errors.New("boom"))
	m.RecordSnapshot("2024-25", true)
	m.RecordSnapshot("2024-25", false)
	m.RecordFallback()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchFailures.WithLabelValues("appA")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.snapshotsWritten.WithLabelValues("2024-25")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.countDayLocks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbackRuns))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "snapshot_count_day_locks_total 1")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.RecordSyncRun(SyncOutcomeFailed, 0, 0)
		m.RecordFetch("appA", "Students", time.Second, nil)
		m.RecordFallback()
		m.RecordSnapshot("2024-25", true)
		m.ObserveBatchCommit(time.Second)
	})
	assert.Zero(t, m.Summary().SyncRuns)
}

func TestCacheServiceRoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	repo := &stubCacheRepo{}
	metrics := NewMetricsService()
	cache := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)

	var out map[string]int
	assert.False(t, cache.Get(ctx, "dashboard:yoy", &out))

	cache.Set(ctx, "dashboard:yoy", map[string]int{"2024-25": 52}, 0)
	require.True(t, cache.Get(ctx, "dashboard:yoy", &out))
	assert.Equal(t, 52, out["2024-25"])

	require.NoError(t, cache.Invalidate(ctx, "dashboard:*"))
	assert.False(t, cache.Get(ctx, "dashboard:yoy", &out))
	assert.Equal(t, uint64(1), metrics.Summary().CacheHits)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := &stubCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)

	cache.Set(context.Background(), "k", 1, 0)
	assert.Empty(t, repo.store)
	assert.False(t, cache.Enabled())
}
