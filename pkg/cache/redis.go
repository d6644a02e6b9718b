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

// Redis keys used for ceiling bookkeeping.
const (
	RedisKeyPrefix = "cardgate:"
	RedisKeyIndex  = "cardgate:index:written"
	RedisKeySizes  = "cardgate:index:sizes"
)

// RedisStore handles caching operations with a Redis backend.
// Artifacts expire through Redis TTLs; a sorted set scored by write time and a
// size hash enforce the least-recently-written ceiling.
type RedisStore struct {
	redis   *redis.Client
	maxSize int64
	now     func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new store with Redis backend.
func NewRedisStore(redisClient *redis.Client, maxSize int64, opts ...Option) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	o := applyOptions(opts)
	return &RedisStore{
		redis:   redisClient,
		maxSize: maxSize,
		now:     o.now,
	}
}

func redisKey(key Key) string {
	return RedisKeyPrefix + key.String()
}

// Get retrieves an artifact by key.
// Returns ErrCacheMiss if the key doesn't exist or the artifact is expired.
func (s *RedisStore) Get(ctx context.Context, key Key) (*Artifact, error) {
	data, err := s.redis.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(backendRedis).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(backendRedis, "get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		CacheErrors.WithLabelValues(backendRedis, "get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis expiry is authoritative in production; the check keeps an injected
	// clock honest in tests.
	if artifact.IsExpiredAt(s.now()) {
		_ = s.Delete(ctx, key)
		CacheEvictions.WithLabelValues(backendRedis, "expired").Inc()
		CacheMisses.WithLabelValues(backendRedis).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(backendRedis).Inc()
	return &artifact, nil
}

// Set stores an artifact with a Redis TTL and evicts past the ceiling.
func (s *RedisStore) Set(ctx context.Context, key Key, data []byte, ttl time.Duration) error {
	if err := validateSet(data, ttl, s.maxSize); err != nil {
		CacheErrors.WithLabelValues(backendRedis, "set").Inc()
		return err
	}

	artifact := newArtifact(data, s.now(), ttl)
	payload, err := json.Marshal(artifact)
	if err != nil {
		CacheErrors.WithLabelValues(backendRedis, "set").Inc()
		return fmt.Errorf("marshal artifact: %w", err)
	}

	member := key.String()
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKey(key), payload, ttl)
		pipe.ZAdd(ctx, RedisKeyIndex, redis.Z{
			Score:  float64(artifact.WrittenAt.UnixNano()),
			Member: member,
		})
		pipe.HSet(ctx, RedisKeySizes, member, artifact.Size())
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues(backendRedis, "set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	if err := s.enforceCeiling(ctx); err != nil {
		CacheErrors.WithLabelValues(backendRedis, "evict").Inc()
		return fmt.Errorf("evict: %w", err)
	}

	return nil
}

// Delete removes an artifact and its bookkeeping.
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	member := key.String()
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKey(key))
		pipe.ZRem(ctx, RedisKeyIndex, member)
		pipe.HDel(ctx, RedisKeySizes, member)
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues(backendRedis, "delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// TotalSize returns the bytes accounted to live artifacts.
func (s *RedisStore) TotalSize(ctx context.Context) (int64, error) {
	members, err := s.redis.ZRange(ctx, RedisKeyIndex, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zrange: %w", err)
	}
	live, err := s.liveSizes(ctx, members)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range live {
		total += e.size
	}
	return total, nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.redis.Close()
}

type sizedMember struct {
	member string
	size   int64
}

// liveSizes returns members in write order with their sizes, pruning
// bookkeeping for artifacts Redis already expired.
func (s *RedisStore) liveSizes(ctx context.Context, members []string) ([]sizedMember, error) {
	if len(members) == 0 {
		return nil, nil
	}

	sizes, err := s.redis.HMGet(ctx, RedisKeySizes, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hmget: %w", err)
	}

	exists := make([]*redis.IntCmd, len(members))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range members {
			exists[i] = pipe.Exists(ctx, RedisKeyPrefix+m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis exists: %w", err)
	}

	live := make([]sizedMember, 0, len(members))
	var gone []string
	for i, m := range members {
		if exists[i].Val() == 0 {
			gone = append(gone, m)
			continue
		}
		var size int64
		if str, ok := sizes[i].(string); ok {
			size, _ = strconv.ParseInt(str, 10, 64)
		}
		live = append(live, sizedMember{member: m, size: size})
	}

	if len(gone) > 0 {
		_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, m := range gone {
				pipe.ZRem(ctx, RedisKeyIndex, m)
				pipe.HDel(ctx, RedisKeySizes, m)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("redis prune: %w", err)
		}
		CacheEvictions.WithLabelValues(backendRedis, "expired").Add(float64(len(gone)))
	}

	return live, nil
}

func (s *RedisStore) enforceCeiling(ctx context.Context) error {
	members, err := s.redis.ZRange(ctx, RedisKeyIndex, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("redis zrange: %w", err)
	}

	live, err := s.liveSizes(ctx, members)
	if err != nil {
		return err
	}

	var total int64
	for _, e := range live {
		total += e.size
	}

	for _, e := range live {
		if s.maxSize <= 0 || total <= s.maxSize {
			break
		}
		key, err := ParseKey(e.member)
		if err != nil {
			return err
		}
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
		total -= e.size
		CacheEvictions.WithLabelValues(backendRedis, "ceiling").Inc()
	}

	CacheSize.WithLabelValues(backendRedis).Set(float64(total))
	return nil
}
