package proxy

import (
	"time"

	"go.uber.org/zap"

	"tilegate/internal/cache"
	"tilegate/internal/metrics"
)

// UpstreamOptions configures the tile source connection.
type UpstreamOptions struct {
	// URLTemplate holds exactly three %d placeholders for zoom, x and y,
	// in that order.
	URLTemplate string
	Timeout     time.Duration
	RPS         int
}

// Proxy resolves tile requests through the memory cache, the disk store
// and finally the upstream source, coalescing concurrent fetches for the
// same tile into one upstream call.
type Proxy struct {
	memory  *cache.MemoryCache
	disk    *cache.DiskStore
	flights *coalescer
	fetcher *fetcher
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func New(memory *cache.MemoryCache, disk *cache.DiskStore, m *metrics.Metrics, upstream UpstreamOptions, log *zap.Logger) *Proxy {
	return &Proxy{
		memory:  memory,
		disk:    disk,
		flights: newCoalescer(),
		fetcher: newFetcher(upstream.URLTemplate, upstream.Timeout, upstream.RPS),
		metrics: m,
		logger:  log,
	}
}

// Get returns the tile bytes for key. Memory entries are only ever created
// from a successful upstream fetch, so a disk hit is served without
// repopulating the memory layer.
func (p *Proxy) Get(key cache.TileKey) ([]byte, error) {
	if data, ok := p.memory.Get(key); ok {
		p.metrics.Hits.Add(1)
		return data, nil
	}

	if data, ok := p.disk.Read(key); ok {
		p.metrics.Hits.Add(1)
		p.metrics.DiskHits.Add(1)
		return data, nil
	}

	leader, wait := p.flights.join(key)
	if !leader {
		p.metrics.Coalesced.Add(1)
		res := <-wait
		return res.data, res.err
	}

	p.metrics.Misses.Add(1)
	data, err := p.fetcher.fetch(key)
	if err != nil {
		p.metrics.Errors.Add(1)
		p.flights.complete(key, nil, err)
		return nil, err
	}

	p.memory.Put(key, data)
	if werr := p.disk.Write(key, data); werr != nil {
		// Persistence failure is non-fatal: the tile is still served.
		p.metrics.Errors.Add(1)
		p.logger.Warn("tile persistence failed",
			zap.String("tile", key.String()),
			zap.Error(werr),
		)
	} else {
		p.metrics.Stored.Add(1)
	}

	p.flights.complete(key, data, nil)
	return data, nil
}
