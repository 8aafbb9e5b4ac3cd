package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis so several processes share one cache.
// Tag membership lives in a sorted set per tag (todo:tag:<tag>) scored by the
// member's expiry in unix milliseconds. Every write prunes members that have
// expired, so the index only holds live keys plus those expired since the last
// write to the tag.
type RedisStore struct {
	redis *redis.Client
}

// noExpiryScore ranks members that live until invalidated after every real expiry.
const noExpiryScore = float64(1 << 62)

// memberScore is the tag index score of entry.
func memberScore(entry *CacheEntry) float64 {
	if entry.Expires.IsZero() {
		return noExpiryScore
	}
	return float64(entry.Expires.UnixMilli())
}

// NewRedisStore creates a new Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// Name implements Store.
func (s *RedisStore) Name() string { return "redis" }

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (*CacheEntry, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		pipe := s.redis.TxPipeline()
		pipe.Del(ctx, key)
		for _, tag := range entry.Tags {
			pipe.ZRem(ctx, tagKey(tag), key)
		}
		_, _ = pipe.Exec(ctx)
		return nil, ErrCacheMiss
	}

	return &entry, nil
}

// Set implements Store. Entries with an expiry get the matching Redis TTL.
func (s *RedisStore) Set(ctx context.Context, key string, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if !entry.Expires.IsZero() && ttl <= 0 {
		// Already expired, don't cache
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	for _, tag := range entry.Tags {
		pipe.ZAdd(ctx, tagKey(tag), redis.Z{Score: memberScore(entry), Member: key})
		pipe.ZRemRangeByScore(ctx, tagKey(tag), "-inf", now)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete implements Store. The key stays in its tag indexes until it expires
// out of them or the tag is invalidated; removing a missing key is harmless.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// InvalidateTag implements Store.
func (s *RedisStore) InvalidateTag(ctx context.Context, tag string) ([]string, error) {
	keys, err := s.redis.ZRange(ctx, tagKey(tag), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}

	pipe := s.redis.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, tagKey(tag))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis invalidate: %w", err)
	}

	return keys, nil
}
