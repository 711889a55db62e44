package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dinor/dinor-api/cache"
)

// VersionCacheKey holds the current PWA version in the cache.
const VersionCacheKey = "pwa_version"

// VersionInfo is what service workers read to detect a new build.
type VersionInfo struct {
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BuildMeta is written next to the version file.
type BuildMeta struct {
	Version   int64     `json:"version"`
	BuildTime time.Time `json:"build_time"`
	Mode      string    `json:"mode"`
	Reason    string    `json:"reason"`
}

// VersionStore keeps the monotonic PWA version in a file and in the cache.
type VersionStore struct {
	mu       sync.Mutex
	file     string
	metaFile string
	cache    *cache.Store
	now      func() time.Time
}

// NewVersionStore returns a store writing versionFile and metaFile.
func NewVersionStore(versionFile, metaFile string, c *cache.Store) *VersionStore {
	return &VersionStore{file: versionFile, metaFile: metaFile, cache: c, now: time.Now}
}

// Current returns the latest version, preferring the cache over the file. Zero means none yet.
func (s *VersionStore) Current(ctx context.Context) int64 {
	if b, err := s.cache.Get(ctx, VersionCacheKey); err == nil {
		if v, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return v
		}
	}
	info, err := s.readFile()
	if err != nil {
		return 0
	}
	return info.Version
}

// Bump writes a new version strictly greater than the previous one.
// The value is the wall clock in milliseconds unless the clock went backwards.
func (s *VersionStore) Bump(ctx context.Context, meta BuildMeta) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prev := s.Current(ctx)
	if info, err := s.readFile(); err == nil && info.Version > prev {
		prev = info.Version
	}
	next := now.UnixMilli()
	if next <= prev {
		next = prev + 1
	}

	if err := writeJSONFile(s.file, VersionInfo{Version: next, UpdatedAt: now}); err != nil {
		return 0, fmt.Errorf("write version file: %w", err)
	}
	meta.Version = next
	meta.BuildTime = now
	if err := writeJSONFile(s.metaFile, meta); err != nil {
		return 0, fmt.Errorf("write build metadata: %w", err)
	}
	// Untagged on purpose: tag flushes during a rebuild must not drop the version.
	if err := s.cache.Set(ctx, VersionCacheKey, []byte(strconv.FormatInt(next, 10)), 24*time.Hour); err != nil {
		return next, fmt.Errorf("cache version: %w", err)
	}
	return next, nil
}

// Meta returns the last written build metadata, if any.
func (s *VersionStore) Meta() (*BuildMeta, error) {
	b, err := os.ReadFile(s.metaFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m BuildMeta
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *VersionStore) readFile() (VersionInfo, error) {
	var info VersionInfo
	b, err := os.ReadFile(s.file)
	if err != nil {
		return info, err
	}
	err = json.Unmarshal(b, &info)
	return info, err
}

// writeJSONFile replaces path atomically so readers never see a partial file.
func writeJSONFile(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
