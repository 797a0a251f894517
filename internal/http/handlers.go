package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tilegate/internal/cache"
	"tilegate/internal/config"
	"tilegate/internal/metrics"
	"tilegate/internal/proxy"
)

type Handlers struct {
	config  *config.Config
	logger  *zap.Logger
	proxy   *proxy.Proxy
	memory  *cache.MemoryCache
	disk    *cache.DiskStore
	metrics *metrics.Metrics
}

func New(config *config.Config, logger *zap.Logger, p *proxy.Proxy, memory *cache.MemoryCache, disk *cache.DiskStore, m *metrics.Metrics) *Handlers {
	return &Handlers{
		config:  config,
		logger:  logger,
		proxy:   p,
		memory:  memory,
		disk:    disk,
		metrics: m,
	}
}

// parseTileKey validates a /tiles/{z}/{x}/{y}.png path. Coordinates must
// be non-negative integers.
func parseTileKey(path string) (cache.TileKey, bool) {
	rest := strings.TrimPrefix(path, "/tiles/")
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return cache.TileKey{}, false
	}

	z, err := strconv.Atoi(parts[0])
	if err != nil {
		return cache.TileKey{}, false
	}
	x, err := strconv.Atoi(parts[1])
	if err != nil {
		return cache.TileKey{}, false
	}
	if !strings.HasSuffix(parts[2], ".png") {
		return cache.TileKey{}, false
	}
	y, err := strconv.Atoi(strings.TrimSuffix(parts[2], ".png"))
	if err != nil {
		return cache.TileKey{}, false
	}

	if z < 0 || x < 0 || y < 0 {
		return cache.TileKey{}, false
	}
	return cache.TileKey{Z: z, X: x, Y: y}, true
}

func (h *Handlers) HandleTile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key, ok := parseTileKey(r.URL.Path)
	if !ok {
		http.Error(w, "Invalid tile path", http.StatusBadRequest)
		return
	}

	data, err := h.proxy.Get(key)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, proxy.ErrBadURL) {
			status = http.StatusInternalServerError
		}
		h.logger.Error("tile request failed",
			zap.String("tile", key.String()),
			zap.Error(err),
		)
		http.Error(w, "Tile fetch failed", status)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

type statsResponse struct {
	MemoryEntries    int    `json:"memory_entries"`
	MemoryTTLSeconds int64  `json:"memory_ttl_seconds"`
	MemoryMaxEntries int    `json:"memory_max_entries"`
	DiskDir          string `json:"disk_dir"`
	DiskTTLSeconds   int64  `json:"disk_ttl_seconds"`
	DiskMaxEntries   int    `json:"disk_max_entries"`
	DiskMaxBytes     int64  `json:"disk_max_bytes"`
	metrics.Snapshot
}

// HandleStats reports cache sizes, configured limits and all counters.
// Reading stats never mutates cache state.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	diskTTL := int64(-1)
	if h.config.DiskTTL != 0 {
		diskTTL = int64(h.config.DiskTTL.Seconds())
	}

	resp := statsResponse{
		MemoryEntries:    h.memory.Len(),
		MemoryTTLSeconds: int64(h.config.MemoryTTL.Seconds()),
		MemoryMaxEntries: h.config.MemoryMax,
		DiskDir:          h.disk.Root(),
		DiskTTLSeconds:   diskTTL,
		DiskMaxEntries:   h.config.DiskMaxEntries,
		DiskMaxBytes:     h.config.DiskMaxBytes,
		Snapshot:         h.metrics.Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
