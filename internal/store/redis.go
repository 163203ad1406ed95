package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/i474232898/weather-snapshot/internal/weather"
)

// RedisStore is a cache backend on a Redis server. Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	pool      *redis.Pool
	namespace string
}

// NewRedisPool returns a connection pool for addr, e.g. "localhost:6379".
func NewRedisPool(addr string) *redis.Pool {
	if addr == "" {
		addr = "localhost:6379"
	}
	return &redis.Pool{
		MaxIdle:     16,
		MaxActive:   64,
		Wait:        true,
		IdleTimeout: 5 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// NewRedisStore uses pool for all commands. Keys are prefixed with namespace.
func NewRedisStore(pool *redis.Pool, namespace string) *RedisStore {
	return &RedisStore{pool: pool, namespace: namespace}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = redis.DoContext(conn, ctx, "PING")
	return err
}

func (s *RedisStore) redisKey(key weather.CacheKey) string {
	return s.namespace + "/" + key.String()
}

// Save writes the payload with a millisecond TTL. A non-positive ttl stores nothing
// and removes any previous entry, since such an entry is already expired.
func (s *RedisStore) Save(ctx context.Context, key weather.CacheKey, payload []byte, ttl time.Duration) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	defer conn.Close()

	ms := ttl.Milliseconds()
	if ms <= 0 {
		_, err = redis.DoContext(conn, ctx, "DEL", s.redisKey(key))
	} else {
		_, err = redis.DoContext(conn, ctx, "SET", s.redisKey(key), payload, "PX", ms)
	}
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, key weather.CacheKey) ([]byte, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	defer conn.Close()

	payload, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", s.redisKey(key)))
	if errors.Is(err, redis.ErrNil) {
		return nil, weather.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return payload, nil
}

func (s *RedisStore) Invalidate(ctx context.Context, key weather.CacheKey) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "DEL", s.redisKey(key)); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}

// InvalidateAll scans the namespace and deletes every key in it.
func (s *RedisStore) InvalidateAll(ctx context.Context) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("invalidate namespace %s: %w", s.namespace, err)
	}
	defer conn.Close()

	cursor := "0"
	pattern := s.namespace + "/*"
	for {
		parts, err := redis.Values(redis.DoContext(conn, ctx, "SCAN", cursor, "MATCH", pattern, "COUNT", 100))
		if err != nil {
			return fmt.Errorf("scan namespace %s: %w", s.namespace, err)
		}
		var keys []string
		if _, err := redis.Scan(parts, &cursor, &keys); err != nil {
			return fmt.Errorf("scan namespace %s: %w", s.namespace, err)
		}
		if len(keys) > 0 {
			args := redis.Args{}.AddFlat(keys)
			if _, err := redis.DoContext(conn, ctx, "DEL", args...); err != nil {
				return fmt.Errorf("invalidate namespace %s: %w", s.namespace, err)
			}
		}
		if cursor == "0" {
			return nil
		}
	}
}
