package store

import (
	"context"
	"fmt"
	"time"

	"github.com/i474232898/weather-snapshot/internal/weather"
)

// Settings select and locate a cache backend.
type Settings struct {
	Backend     string // memory, sqlite, postgres or redis
	Namespace   string
	Dir         string
	DatabaseURL string
	RedisAddr   string
	Now         func() time.Time
}

// Open returns the configured backend and a function releasing its resources.
func Open(ctx context.Context, s Settings) (weather.Cache, func() error, error) {
	noop := func() error { return nil }
	switch s.Backend {
	case "", "memory":
		return NewMemoryStore(s.Now), noop, nil
	case "sqlite":
		st, err := OpenSQLite(ctx, s.Dir, s.Namespace, s.Now)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "postgres":
		st, err := OpenPostgres(ctx, s.DatabaseURL, s.Namespace, s.Now)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "redis":
		pool := NewRedisPool(s.RedisAddr)
		st := NewRedisStore(pool, s.Namespace)
		if err := st.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", s.RedisAddr, err)
		}
		return st, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", s.Backend)
	}
}
