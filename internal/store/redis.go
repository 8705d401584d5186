package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradesim/portfolio-engine/internal/model"
)

// redisAPI is the subset of *redis.Client the stores use.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore implements Store with Redis as the primary. The snapshot is
// a single string value under the storage key, with no expiry.
type RedisStore struct {
	rdb redisAPI
	key string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	return newRedisStore(rdb, key)
}

func newRedisStore(rdb redisAPI, key string) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Load(ctx context.Context) (*model.Snapshot, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, snap model.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// CachedStore wraps a primary Store (PostgreSQL, DynamoDB, file) with a
// Redis read-through cache. Writes go to the primary store and invalidate
// the cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     redisAPI
	key     string
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, key string, ttl time.Duration) *CachedStore {
	return newCachedStore(primary, rdb, key, ttl)
}

func newCachedStore(primary Store, rdb redisAPI, key string, ttl time.Duration) *CachedStore {
	if key == "" {
		key = DefaultKey
	}
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		key:     key,
		ttl:     ttl,
	}
}

func (s *CachedStore) Save(ctx context.Context, snap model.Snapshot) error {
	if err := s.primary.Save(ctx, snap); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	if err := s.rdb.Del(ctx, cacheKey(s.key)).Err(); err != nil {
		slog.Warn("cache invalidation failed", "key", s.key, "err", err)
	}
	return nil
}

func (s *CachedStore) Load(ctx context.Context) (*model.Snapshot, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, cacheKey(s.key)).Bytes()
	if err == nil {
		if snap, err := decode(data); err == nil {
			return snap, nil
		}
	}

	// Cache miss: read from primary.
	snap, err := s.primary.Load(ctx)
	if err != nil || snap == nil {
		return snap, err
	}

	if data, err := encode(*snap); err == nil {
		s.rdb.Set(ctx, cacheKey(s.key), data, s.ttl)
	}
	return snap, nil
}

func cacheKey(key string) string { return fmt.Sprintf("snapshot:%s", key) }
