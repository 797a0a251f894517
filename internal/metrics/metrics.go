package metrics

import "sync/atomic"

// Metrics holds the proxy's monotonic counters. Increments are lock-free;
// no cross-counter consistency is guaranteed when reading.
type Metrics struct {
	Hits      atomic.Int64
	DiskHits  atomic.Int64
	Misses    atomic.Int64
	Coalesced atomic.Int64
	Stored    atomic.Int64
	Errors    atomic.Int64
	Evictions atomic.Int64
}

func New() *Metrics {
	return &Metrics{}
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Hits      int64 `json:"hits"`
	DiskHits  int64 `json:"disk_hits"`
	Misses    int64 `json:"misses"`
	Coalesced int64 `json:"coalesced_waits"`
	Stored    int64 `json:"stored"`
	Errors    int64 `json:"errors"`
	Evictions int64 `json:"evictions"`
}

// Snapshot reads each counter independently.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Hits:      m.Hits.Load(),
		DiskHits:  m.DiskHits.Load(),
		Misses:    m.Misses.Load(),
		Coalesced: m.Coalesced.Load(),
		Stored:    m.Stored.Load(),
		Errors:    m.Errors.Load(),
		Evictions: m.Evictions.Load(),
	}
}
