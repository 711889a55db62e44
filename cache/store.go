// Package cache wraps Redis with tag-aware entries so that every cached
// response belonging to a content kind can be flushed at once.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL applies when a caller passes a non-positive ttl.
const DefaultTTL = time.Hour

// MaxTaggedTTL caps tagged entries. Each tag set is kept alive this long after
// its last addition, so it always outlives its members and then expires.
const MaxTaggedTTL = 24 * time.Hour

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// Store is a prefixed, tag-aware view over a Redis client.
type Store struct {
	rc     *redis.Client
	prefix string
}

// Stats summarises what the store currently holds.
type Stats struct {
	Keys int64            `json:"keys"`
	Tags map[string]int64 `json:"tags"`
}

// New returns a Store. A nil client yields a Store on which every call is a no-op miss.
func New(rc *redis.Client, prefix string) *Store {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Store{rc: rc, prefix: prefix}
}

// Enabled reports whether a backend is attached.
func (s *Store) Enabled() bool { return s != nil && s.rc != nil }

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) tagKey(tag string) string { return s.prefix + "tag:" + tag }

// Get returns raw bytes for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.Enabled() {
		return nil, ErrMiss
	}
	b, err := s.rc.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

// GetJSON decodes the cached value at key into out.
func (s *Store) GetJSON(ctx context.Context, key string, out interface{}) error {
	b, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// Set stores raw bytes and registers key under each tag.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if len(tags) > 0 && ttl > MaxTaggedTTL {
		ttl = MaxTaggedTTL
	}
	full := s.key(key)
	pipe := s.rc.TxPipeline()
	pipe.Set(ctx, full, value, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, s.tagKey(tag), full)
		pipe.Expire(ctx, s.tagKey(tag), MaxTaggedTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// SetJSON marshals v and stores it like Set.
func (s *Store) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration, tags ...string) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, b, ttl, tags...)
}

// Remember returns the cached JSON at key, or calls load, caches and returns its result.
func Remember[T any](ctx context.Context, s *Store, key string, ttl time.Duration, tags []string, load func() (T, error)) (T, error) {
	var out T
	if err := s.GetJSON(ctx, key, &out); err == nil {
		return out, nil
	}
	out, err := load()
	if err != nil {
		return out, err
	}
	// A cache write failure only costs the next request a reload.
	_ = s.SetJSON(ctx, key, out, ttl, tags...)
	return out, nil
}

// Forget deletes the given keys.
func (s *Store) Forget(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.key(k))
	}
	return s.rc.Del(ctx, full...).Err()
}

// FlushTags deletes every key registered under any of tags, then the tag sets themselves.
func (s *Store) FlushTags(ctx context.Context, tags ...string) (int64, error) {
	if !s.Enabled() || len(tags) == 0 {
		return 0, nil
	}
	var removed int64
	for _, tag := range tags {
		tk := s.tagKey(tag)
		members, err := s.rc.SMembers(ctx, tk).Result()
		if err != nil {
			return removed, err
		}
		if len(members) > 0 {
			n, err := s.rc.Del(ctx, members...).Result()
			if err != nil {
				return removed, err
			}
			removed += n
		}
		if err := s.rc.Del(ctx, tk).Err(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Flush removes every key under the store prefix using SCAN.
func (s *Store) Flush(ctx context.Context) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, cur, err := s.rc.Scan(ctx, cursor, s.prefix+"*", 1000).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := s.rc.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += n
		}
		cursor = cur
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Stats counts keys under the prefix and members per tag.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Tags: map[string]int64{}}
	if !s.Enabled() {
		return st, nil
	}
	var cursor uint64
	tagPrefix := s.tagKey("")
	for {
		keys, cur, err := s.rc.Scan(ctx, cursor, s.prefix+"*", 1000).Result()
		if err != nil {
			return st, err
		}
		for _, k := range keys {
			if strings.HasPrefix(k, tagPrefix) {
				n, err := s.rc.SCard(ctx, k).Result()
				if err != nil {
					return st, err
				}
				st.Tags[strings.TrimPrefix(k, tagPrefix)] = n
				continue
			}
			st.Keys++
		}
		cursor = cur
		if cursor == 0 {
			return st, nil
		}
	}
}
