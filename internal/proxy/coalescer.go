package proxy

import (
	"sync"

	"tilegate/internal/cache"
)

type fetchResult struct {
	data []byte
	err  error
}

// coalescer tracks in-flight upstream fetches so that concurrent requests
// for the same tile share a single fetch. A key is present in the map iff
// exactly one fetch for it is in progress.
type coalescer struct {
	mu       sync.Mutex
	inflight map[cache.TileKey][]chan fetchResult
}

func newCoalescer() *coalescer {
	return &coalescer{
		inflight: make(map[cache.TileKey][]chan fetchResult),
	}
}

// join makes the first caller for a key the fetch leader. Every later
// caller gets a buffered channel that receives the leader's result exactly
// once. The lock only covers registry mutation, never the fetch itself.
func (c *coalescer) join(key cache.TileKey) (leader bool, wait <-chan fetchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if waiters, ok := c.inflight[key]; ok {
		ch := make(chan fetchResult, 1)
		c.inflight[key] = append(waiters, ch)
		return false, ch
	}
	c.inflight[key] = nil
	return true, nil
}

// complete removes the in-flight entry and delivers the result to every
// waiter. Channels are buffered, so no waiter can stall the leader.
func (c *coalescer) complete(key cache.TileKey, data []byte, err error) {
	c.mu.Lock()
	waiters := c.inflight[key]
	delete(c.inflight, key)
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- fetchResult{data: data, err: err}
	}
}
