package proxy

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"tilegate/internal/metrics"
)

// Pruner enforces the disk cache limits in the background: expired files
// first, then entry count, then total bytes. Each pass walks the tree on
// its own; the interval is coarse enough that the extra walks do not
// matter. It shares no lock with the caches and tolerates races with
// concurrent tile writers.
type Pruner struct {
	root       string
	ttl        time.Duration
	maxEntries int
	maxBytes   int64
	interval   time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

func NewPruner(root string, ttl time.Duration, maxEntries int, maxBytes int64, interval time.Duration, m *metrics.Metrics, log *zap.Logger) *Pruner {
	return &Pruner{
		root:       root,
		ttl:        ttl,
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		interval:   interval,
		metrics:    m,
		logger:     log,
		done:       make(chan struct{}),
	}
}

func (p *Pruner) Start() {
	p.wg.Add(1)
	go p.loop()
}

// Stop signals the loop and waits for it to exit.
func (p *Pruner) Stop() {
	close(p.done)
	p.wg.Wait()
}

func (p *Pruner) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.prune()
		case <-p.done:
			return
		}
	}
}

type cacheFile struct {
	path    string
	modTime time.Time
	size    int64
}

func (p *Pruner) walk() []cacheFile {
	var files []cacheFile
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A file may vanish mid-walk; skip and keep going.
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, cacheFile{path: path, modTime: info.ModTime(), size: info.Size()})
		return nil
	})
	if err != nil {
		p.logger.Warn("cache walk failed", zap.String("root", p.root), zap.Error(err))
	}
	return files
}

func (p *Pruner) prune() {
	p.expirePass()
	p.countPass()
	p.sizePass()
}

// expirePass deletes files older than the disk TTL. A zero TTL means
// tiles never expire.
func (p *Pruner) expirePass() {
	if p.ttl == 0 {
		return
	}
	removed := 0
	for _, f := range p.walk() {
		if time.Since(f.modTime) >= p.ttl {
			if p.remove(f.path) {
				removed++
			}
		}
	}
	if removed > 0 {
		p.logger.Info("pruned expired tiles", zap.Int("removed", removed))
	}
}

// countPass trims the oldest files until the entry count is back at the
// configured maximum.
func (p *Pruner) countPass() {
	files := p.walk()
	excess := len(files) - p.maxEntries
	if excess <= 0 {
		return
	}

	sortByModTime(files)
	removed := 0
	for _, f := range files[:excess] {
		if p.remove(f.path) {
			p.metrics.Evictions.Add(1)
			removed++
		}
	}
	p.logger.Info("pruned tiles over entry limit", zap.Int("removed", removed))
}

// sizePass deletes oldest-first until the total size fits the byte budget.
func (p *Pruner) sizePass() {
	files := p.walk()
	var total int64
	for _, f := range files {
		total += f.size
	}
	if total <= p.maxBytes {
		return
	}

	sortByModTime(files)
	removed := 0
	for _, f := range files {
		if total <= p.maxBytes {
			break
		}
		if p.remove(f.path) {
			p.metrics.Evictions.Add(1)
			removed++
		}
		total -= f.size
	}
	p.logger.Info("pruned tiles over byte budget",
		zap.Int("removed", removed),
		zap.Int64("max_bytes", p.maxBytes),
	)
}

func (p *Pruner) remove(path string) bool {
	err := os.Remove(path)
	if err == nil {
		return true
	}
	if !os.IsNotExist(err) {
		p.logger.Warn("failed to remove cached tile", zap.String("path", path), zap.Error(err))
	}
	return false
}

func sortByModTime(files []cacheFile) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})
}
