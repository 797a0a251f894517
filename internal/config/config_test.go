package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TILE_CACHE_DIR", "")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/data/tiles", cfg.CacheDir)
	assert.Equal(t, 15*time.Minute, cfg.MemoryTTL)
	assert.Equal(t, 1000, cfg.MemoryMax)
	assert.Equal(t, time.Duration(0), cfg.DiskTTL)
	assert.Equal(t, 50000, cfg.DiskMaxEntries)
	assert.Equal(t, int64(512*1024*1024), cfg.DiskMaxBytes)
	assert.Equal(t, 15*time.Minute, cfg.PruneInterval)
	assert.Equal(t, defaultUpstreamURL, cfg.UpstreamURL)
	assert.Equal(t, 15*time.Second, cfg.UpstreamTimeout)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TILE_CACHE_DIR", "/tmp/tiles")
	t.Setenv("TILE_MEMORY_TTL", "30m")
	t.Setenv("TILE_DISK_TTL", "72h")
	t.Setenv("TILE_MEMORY_MAX", "500")
	t.Setenv("TILE_UPSTREAM_URL", "https://tiles.example.com/%d/%d/%d.png")
	t.Setenv("TILE_UPSTREAM_TIMEOUT", "5s")

	cfg := Load()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/tmp/tiles", cfg.CacheDir)
	assert.Equal(t, 30*time.Minute, cfg.MemoryTTL)
	assert.Equal(t, 72*time.Hour, cfg.DiskTTL)
	assert.Equal(t, 500, cfg.MemoryMax)
	assert.Equal(t, "https://tiles.example.com/%d/%d/%d.png", cfg.UpstreamURL)
	assert.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
}

func TestLoadUnparseableFallsBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("TILE_MEMORY_TTL", "soon")
	t.Setenv("TILE_DISK_MAX_BYTES", "lots")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.MemoryTTL)
	assert.Equal(t, int64(512*1024*1024), cfg.DiskMaxBytes)
}

func TestLoadOutOfRangeFallsBack(t *testing.T) {
	t.Setenv("TILE_MEMORY_TTL", "10s")
	t.Setenv("TILE_MEMORY_MAX", "5")
	t.Setenv("TILE_DISK_TTL", "-1h")
	t.Setenv("TILE_DISK_MAX_BYTES", "-1")
	t.Setenv("TILE_PRUNE_INTERVAL", "1s")
	t.Setenv("TILE_UPSTREAM_TIMEOUT", "-5s")

	cfg := Load()

	assert.Equal(t, 15*time.Minute, cfg.MemoryTTL)
	assert.Equal(t, 1000, cfg.MemoryMax)
	assert.Equal(t, time.Duration(0), cfg.DiskTTL)
	assert.Equal(t, int64(512*1024*1024), cfg.DiskMaxBytes)
	assert.Equal(t, 15*time.Minute, cfg.PruneInterval)
	assert.Equal(t, 15*time.Second, cfg.UpstreamTimeout)
}

func TestLoadRejectsBadTemplate(t *testing.T) {
	for _, tpl := range []string{
		"https://example.com/%d/%d.png",
		"https://example.com/%d/%d/%d/%d.png",
		"https://example.com/static.png",
	} {
		t.Setenv("TILE_UPSTREAM_URL", tpl)
		cfg := Load()
		assert.Equal(t, defaultUpstreamURL, cfg.UpstreamURL, "template %q", tpl)
	}
}
