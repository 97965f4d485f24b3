package archive

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskStore writes images to a local directory, each with a JSON sidecar
// named <key>.meta.
type DiskStore struct {
	dir string
}

// NewDiskStore creates dir if needed and returns a store writing into it.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, saveError(dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save writes obj's data and metadata.
func (s *DiskStore) Save(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := Key(obj)
	path := filepath.Join(s.dir, key)

	// Write to a temp name first so readers never see a partial image.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, obj.Data, 0644); err != nil {
		return "", saveError(key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", saveError(key, err)
	}

	data, err := json.Marshal(metaFor(obj))
	if err != nil {
		return "", saveError(key, err)
	}
	if err := os.WriteFile(s.metaPath(key), data, 0644); err != nil {
		return "", saveError(key, err)
	}

	return key, nil
}

// Cleanup removes images and sidecars older than maxAge and returns the
// number of images removed.
func (s *DiskStore) Cleanup(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".meta") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(s.dir, entry.Name()))
			os.Remove(s.metaPath(entry.Name()))
			removed++
		}
	}
	return removed, nil
}

// Expire runs Cleanup(maxAge) now and then every interval until ctx ends.
func (s *DiskStore) Expire(ctx context.Context, maxAge, interval time.Duration) {
	logger := slog.Default().With("component", "archive")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := s.Cleanup(maxAge)
		if err != nil {
			logger.Warn("expire archived images", "dir", s.dir, "error", err)
		} else if n > 0 {
			logger.Info("expired archived images", "dir", s.dir, "removed", n, "max_age", maxAge)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sweepInterval is how often a disk archive with the given TTL is swept.
func sweepInterval(ttl time.Duration) time.Duration {
	every := ttl / 4
	switch {
	case every < time.Second:
		return time.Second
	case every > 10*time.Minute:
		return 10 * time.Minute
	}
	return every
}

func (s *DiskStore) metaPath(key string) string {
	return filepath.Join(s.dir, key+".meta")
}
