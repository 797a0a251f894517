package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tilegate/internal/cache"
	"tilegate/internal/config"
	"tilegate/internal/metrics"
	"tilegate/internal/proxy"
)

type fixture struct {
	handlers *Handlers
	metrics  *metrics.Metrics
	root     string
}

func newFixture(t *testing.T, upstreamURL string) *fixture {
	t.Helper()

	root := t.TempDir()
	cfg := &config.Config{
		CacheDir:        root,
		MemoryTTL:       time.Minute,
		MemoryMax:       1000,
		DiskTTL:         0,
		DiskMaxEntries:  50000,
		DiskMaxBytes:    1 << 20,
		UpstreamURL:     upstreamURL + "/%d/%d/%d.png",
		UpstreamTimeout: 5 * time.Second,
		UpstreamRPS:     1000,
	}

	m := metrics.New()
	memory := cache.NewMemoryCache(cfg.MemoryMax, cfg.MemoryTTL, m)
	disk, err := cache.NewDiskStore(cfg.CacheDir, cfg.DiskTTL)
	require.NoError(t, err)

	p := proxy.New(memory, disk, m, proxy.UpstreamOptions{
		URLTemplate: cfg.UpstreamURL,
		Timeout:     cfg.UpstreamTimeout,
		RPS:         cfg.UpstreamRPS,
	}, zap.NewNop())

	return &fixture{
		handlers: New(cfg, zap.NewNop(), p, memory, disk, m),
		metrics:  m,
		root:     root,
	}
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if path == "/tiles/stats" {
		f.handlers.HandleStats(rec, req)
	} else {
		f.handlers.HandleTile(rec, req)
	}
	return rec
}

func TestTileRequestColdCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	rec := f.get("/tiles/5/10/12.png")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age")
	assert.Equal(t, "tile-bytes", rec.Body.String())

	_, err := os.Stat(filepath.Join(f.root, "5", "10", "12.png"))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), f.metrics.Misses.Load())
	assert.Equal(t, int64(1), f.metrics.Stored.Load())
}

func TestTileRequestRepeatHitsMemory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	f.get("/tiles/5/10/12.png")
	rec := f.get("/tiles/5/10/12.png")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), f.metrics.Hits.Load())
	assert.Equal(t, int64(1), f.metrics.Misses.Load())
}

func TestTileRequestMalformedPaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream should not be called")
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)

	paths := []string{
		"/tiles/abc/10/12.png",
		"/tiles/5/abc/12.png",
		"/tiles/5/10/abc.png",
		"/tiles/-1/10/12.png",
		"/tiles/5/-10/12.png",
		"/tiles/5/10/-12.png",
		"/tiles/5/10/12.jpg",
		"/tiles/5/10/12",
		"/tiles/5/10",
		"/tiles/5/10/12/13.png",
	}
	for _, path := range paths {
		rec := f.get(path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "path %s", path)
	}

	assert.Equal(t, int64(0), f.metrics.Hits.Load())
	assert.Equal(t, int64(0), f.metrics.Misses.Load())
}

func TestTileRequestUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	rec := f.get("/tiles/5/10/12.png")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, int64(1), f.metrics.Errors.Load())

	_, err := os.Stat(filepath.Join(f.root, "5", "10", "12.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestStatsSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	f.get("/tiles/1/2/3.png")
	f.get("/tiles/1/2/3.png")

	rec := f.get("/tiles/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))

	assert.Equal(t, float64(1), stats["memory_entries"])
	assert.Equal(t, float64(60), stats["memory_ttl_seconds"])
	assert.Equal(t, float64(1000), stats["memory_max_entries"])
	assert.Equal(t, f.root, stats["disk_dir"])
	assert.Equal(t, float64(-1), stats["disk_ttl_seconds"])
	assert.Equal(t, float64(1), stats["hits"])
	assert.Equal(t, float64(1), stats["misses"])
	assert.Equal(t, float64(1), stats["stored"])
}

func TestStatsIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	f.get("/tiles/7/7/7.png")

	first := f.get("/tiles/stats")
	second := f.get("/tiles/stats")
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestParseTileKey(t *testing.T) {
	key, ok := parseTileKey("/tiles/5/10/12.png")
	require.True(t, ok)
	assert.Equal(t, cache.TileKey{Z: 5, X: 10, Y: 12}, key)

	key, ok = parseTileKey("/tiles/0/0/0.png")
	require.True(t, ok)
	assert.Equal(t, cache.TileKey{}, key)

	_, ok = parseTileKey("/tiles/5/10/12.png/extra")
	assert.False(t, ok)
}
