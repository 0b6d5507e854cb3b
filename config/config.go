package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// HTTP API
	HTTPAddr string

	// Target site
	BaseURL string

	// Storage
	SQLitePath string

	// Cache configuration
	CacheBackend string // "redis" or "memcache"
	RedisAddr    string
	RedisDB      int
	MemcacheAddr string

	// Scraper configuration
	ScrapeSchedule string // cron spec, e.g. "@every 10m"
	ScrapeOnStart  bool
	StartDelay     time.Duration

	// Browser configuration
	BrowserEnabled  bool
	BrowserHeadless bool
	BrowserProxy    string

	// Currency configuration
	GrinexDepthURL string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	startDelay, _ := strconv.Atoi(getEnv("SCRAPE_START_DELAY_SECONDS", "5"))

	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":3001"),
		BaseURL:         getEnv("STORE_BASE_URL", "https://store77.net"),
		SQLitePath:      getEnv("SQLITE_PATH", "data/pricetracker.db"),
		CacheBackend:    getEnv("CACHE_BACKEND", "redis"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:         redisDB,
		MemcacheAddr:    getEnv("MEMCACHE_ADDR", "localhost:11211"),
		ScrapeSchedule:  getEnv("SCRAPE_SCHEDULE", "@every 10m"),
		ScrapeOnStart:   getEnvBool("SCRAPE_ON_START", false),
		StartDelay:      time.Duration(startDelay) * time.Second,
		BrowserEnabled:  getEnvBool("BROWSER_ENABLED", true),
		BrowserHeadless: getEnvBool("BROWSER_HEADLESS", true),
		BrowserProxy:    getEnv("BROWSER_PROXY", ""),
		GrinexDepthURL:  getEnv("GRINEX_DEPTH_URL", "https://grinex.io/api/v1/spot/depth?symbol=usdta7a5"),
		Environment:     getEnv("ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("STORE_BASE_URL must not be empty")
	}
	if c.CacheBackend != "redis" && c.CacheBackend != "memcache" {
		return fmt.Errorf("CACHE_BACKEND must be \"redis\" or \"memcache\", got %q", c.CacheBackend)
	}
	if c.ScrapeSchedule == "" {
		return fmt.Errorf("SCRAPE_SCHEDULE must not be empty")
	}
	if c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH must not be empty")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
