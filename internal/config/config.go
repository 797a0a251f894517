package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultUpstreamURL = "https://tile.openstreetmap.org/%d/%d/%d.png"

// Config is resolved once at startup and immutable afterwards.
type Config struct {
	Port          int
	LogLevel      string
	AllowedOrigin string

	CacheDir       string
	MemoryTTL      time.Duration
	MemoryMax      int
	DiskTTL        time.Duration
	DiskMaxEntries int
	DiskMaxBytes   int64
	PruneInterval  time.Duration

	UpstreamURL     string
	UpstreamTimeout time.Duration
	UpstreamRPS     int
}

// Load reads the environment on top of compiled-in defaults. Unparseable
// or out-of-range values fall back to the default instead of failing
// startup.
func Load() *Config {
	cfg := &Config{
		Port:            getEnvInt("PORT", 8080),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		AllowedOrigin:   getEnv("ALLOWED_ORIGIN", ""),
		CacheDir:        getEnv("TILE_CACHE_DIR", "/data/tiles"),
		MemoryTTL:       getEnvDuration("TILE_MEMORY_TTL", 15*time.Minute),
		MemoryMax:       getEnvInt("TILE_MEMORY_MAX", 1000),
		DiskTTL:         getEnvDuration("TILE_DISK_TTL", 0),
		DiskMaxEntries:  getEnvInt("TILE_DISK_MAX_ENTRIES", 50000),
		DiskMaxBytes:    getEnvInt64("TILE_DISK_MAX_BYTES", 512*1024*1024),
		PruneInterval:   getEnvDuration("TILE_PRUNE_INTERVAL", 15*time.Minute),
		UpstreamURL:     getEnv("TILE_UPSTREAM_URL", defaultUpstreamURL),
		UpstreamTimeout: getEnvDuration("TILE_UPSTREAM_TIMEOUT", 15*time.Second),
		UpstreamRPS:     getEnvInt("TILE_UPSTREAM_RPS", 10),
	}

	if cfg.MemoryTTL < time.Minute {
		cfg.MemoryTTL = 15 * time.Minute
	}
	if cfg.MemoryMax < 100 {
		cfg.MemoryMax = 1000
	}
	if cfg.DiskTTL < 0 {
		// Zero is the never-expire sentinel; negatives make no sense.
		cfg.DiskTTL = 0
	}
	if cfg.DiskMaxEntries <= 0 {
		cfg.DiskMaxEntries = 50000
	}
	if cfg.DiskMaxBytes <= 0 {
		cfg.DiskMaxBytes = 512 * 1024 * 1024
	}
	if cfg.PruneInterval < time.Minute {
		cfg.PruneInterval = 15 * time.Minute
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 15 * time.Second
	}
	if cfg.UpstreamRPS <= 0 {
		cfg.UpstreamRPS = 10
	}
	// The template must substitute zoom, x and y, nothing more.
	if strings.Count(cfg.UpstreamURL, "%d") != 3 {
		cfg.UpstreamURL = defaultUpstreamURL
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
