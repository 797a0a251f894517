package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// DiskStore persists tiles under {root}/{z}/{x}/{y}.png. The file
// modification time doubles as the stored-at timestamp; a zero TTL means
// entries never expire. There is no in-process locking: atomicity relies
// on rename semantics, and expired files are left for the pruner.
type DiskStore struct {
	root string
	ttl  time.Duration
}

func NewDiskStore(root string, ttl time.Duration) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, eris.Wrapf(err, "create tile cache directory %s", root)
	}
	return &DiskStore{root: root, ttl: ttl}, nil
}

func (s *DiskStore) Root() string {
	return s.root
}

func (s *DiskStore) tilePath(key TileKey) string {
	return filepath.Join(s.root, fmt.Sprintf("%d", key.Z), fmt.Sprintf("%d", key.X), fmt.Sprintf("%d.png", key.Y))
}

// Read reports a miss for missing or expired files. Expiry here is
// advisory only; deletion is the pruner's job.
func (s *DiskStore) Read(key TileKey) ([]byte, bool) {
	path := s.tilePath(key)

	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if s.ttl != 0 && time.Since(info.ModTime()) >= s.ttl {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Write persists the tile atomically: parent directories are created on
// demand, bytes go to a sibling temp file, then a rename makes them
// visible. Readers never observe a partial tile.
func (s *DiskStore) Write(key TileKey, data []byte) error {
	path := s.tilePath(key)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return eris.Wrapf(err, "create tile directory for %s", key)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return eris.Wrapf(err, "write temp tile for %s", key)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return eris.Wrapf(err, "rename temp tile for %s", key)
	}
	return nil
}
