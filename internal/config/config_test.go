package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("REPORT_PAGE_SIZE", "")
	t.Setenv("WORKER_METRICS_PORT", "")

	cfg := Load()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 20, cfg.MaxPages)
	assert.Equal(t, 10, cfg.EnrichConcurrency)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "9091", cfg.WorkerMetricsPort)
	assert.False(t, cfg.IsProduction())
	assert.Empty(t, cfg.Warnings)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("SCHOOL_API_URL", "https://school.example.com/api/")
	t.Setenv("SCHOOL_API_TIMEOUT", "5s")
	t.Setenv("REPORT_ENRICH_CONCURRENCY", "4")
	t.Setenv("METRICS_ENABLED", "0")
	t.Setenv("WORKER_METRICS_PORT", "9200")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://school.example.com/api", cfg.SchoolAPIURL)
	assert.Equal(t, 5*time.Second, cfg.SchoolAPITimeout)
	assert.Equal(t, 4, cfg.EnrichConcurrency)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, "9200", cfg.WorkerMetricsPort)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ACCESS_TTL", "forever")
	t.Setenv("REPORT_MAX_PAGES", "many")
	t.Setenv("METRICS_ENABLED", "maybe")

	cfg := Load()
	assert.Equal(t, 12*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 20, cfg.MaxPages)
	assert.True(t, cfg.MetricsEnabled)
	assert.Len(t, cfg.Warnings, 3)
}

func TestCORSOrigins(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	cfg := Load()
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout)
}
