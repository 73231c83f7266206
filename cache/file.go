package cache

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps one <key>.json file per entry in a flat directory. An entry
// is fresh while its modification time is younger than the TTL.
type FileStore struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewFileStore(dir string, ttl time.Duration, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{dir: dir, ttl: ttl, now: time.Now, logger: logger}, nil
}

// WithClock replaces the time source used for freshness checks.
func (f *FileStore) WithClock(now func() time.Time) *FileStore {
	f.now = now
	return f
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *FileStore) Get(key string) ([]byte, bool) {
	p := f.path(key)
	info, err := os.Stat(p)
	if err != nil {
		return nil, false
	}
	if f.now().Sub(info.ModTime()) >= f.ttl {
		return nil, false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set writes the entry and stamps it with the store's clock. Write failures
// are logged and otherwise ignored; a missing cache entry only costs a call.
func (f *FileStore) Set(key string, value []byte) {
	p := f.path(key)
	if err := os.WriteFile(p, value, 0644); err != nil {
		f.logger.Warn("failed to write cache entry", "key", key, "err", err)
		return
	}
	ts := f.now()
	if err := os.Chtimes(p, ts, ts); err != nil {
		f.logger.Warn("failed to stamp cache entry", "key", key, "err", err)
	}
}
