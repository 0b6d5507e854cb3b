package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, ":3001", cfg.HTTPAddr)
	assert.Equal(t, "https://store77.net", cfg.BaseURL)
	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, "@every 10m", cfg.ScrapeSchedule)
	assert.False(t, cfg.ScrapeOnStart)
	assert.Equal(t, 5*time.Second, cfg.StartDelay)
	assert.True(t, cfg.BrowserEnabled)
	assert.True(t, cfg.BrowserHeadless)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORE_BASE_URL", "https://example.com")
	t.Setenv("CACHE_BACKEND", "memcache")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SCRAPE_ON_START", "true")
	t.Setenv("BROWSER_ENABLED", "false")

	cfg := LoadConfig()

	assert.Equal(t, "https://example.com", cfg.BaseURL)
	assert.Equal(t, "memcache", cfg.CacheBackend)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.ScrapeOnStart)
	assert.False(t, cfg.BrowserEnabled)
}

func TestValidate(t *testing.T) {
	cfg := LoadConfig()
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.CacheBackend = "etcd"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.BaseURL = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.ScrapeSchedule = ""
	assert.Error(t, bad.Validate())
}
