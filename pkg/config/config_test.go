package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 499, cfg.Sync.BatchSize)
	assert.True(t, cfg.Sync.YearlessFallback)
	assert.Equal(t, "America/Denver", cfg.Source.TimeZone)
	assert.Equal(t, "en-us", cfg.Source.Locale)
	assert.Equal(t, 5*time.Minute, cfg.Dashboard.CacheTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("SYNC_BATCH_SIZE", "50")
	t.Setenv("SYNC_YEARLESS_FALLBACK", "false")
	t.Setenv("SYNC_ONLY_BASES", "appA, appB ,")
	t.Setenv("SOURCE_API_URL", "http://localhost:9999/v0/")
	t.Setenv("DASHBOARD_CACHE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMongo, cfg.StoreDriver)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.False(t, cfg.Sync.YearlessFallback)
	assert.Equal(t, []string{"appA", "appB"}, cfg.Sync.OnlyBases)
	assert.Equal(t, "http://localhost:9999/v0", cfg.Source.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Dashboard.CacheTTL)
}

func TestLoadClampsBatchSize(t *testing.T) {
	t.Setenv("SYNC_BATCH_SIZE", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 499, cfg.Sync.BatchSize)
}
