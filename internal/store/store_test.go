package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/i474232898/weather-snapshot/internal/weather"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var (
	snapKey   = weather.CacheKey{LocationID: "47.61,-122.33", Kind: weather.KindSnapshot}
	alertsKey = weather.CacheKey{LocationID: "47.61,-122.33", Kind: weather.KindAlerts}
	otherKey  = weather.CacheKey{LocationID: "40.71,-74.01", Kind: weather.KindSnapshot}
)

// exerciseBackend runs the shared contract checks. advance moves the backend's notion of time.
func exerciseBackend(t *testing.T, c weather.Cache, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()

	if _, err := c.Load(ctx, snapKey); !errors.Is(err, weather.ErrCacheMiss) {
		t.Fatalf("expected miss on empty cache, got %v", err)
	}

	if err := c.Save(ctx, snapKey, []byte(`{"v":1}`), 10*time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := c.Save(ctx, snapKey, []byte(`{"v":2}`), 10*time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := c.Load(ctx, snapKey)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `{"v":2}` {
		t.Fatalf("expected last write to win, got %s", got)
	}

	if err := c.Save(ctx, alertsKey, []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("save alerts: %v", err)
	}
	if err := c.Save(ctx, otherKey, []byte(`{}`), 10*time.Minute); err != nil {
		t.Fatalf("save other: %v", err)
	}

	advance(2 * time.Minute)
	if _, err := c.Load(ctx, alertsKey); !errors.Is(err, weather.ErrCacheMiss) {
		t.Fatalf("expected expired alerts to miss, got %v", err)
	}
	if _, err := c.Load(ctx, snapKey); err != nil {
		t.Fatalf("snapshot should still be fresh: %v", err)
	}

	if err := c.Invalidate(ctx, snapKey); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := c.Load(ctx, snapKey); !errors.Is(err, weather.ErrCacheMiss) {
		t.Fatalf("expected miss after invalidate, got %v", err)
	}
	if _, err := c.Load(ctx, otherKey); err != nil {
		t.Fatalf("invalidate removed an unrelated key: %v", err)
	}

	if err := c.InvalidateAll(ctx); err != nil {
		t.Fatalf("invalidate all: %v", err)
	}
	if _, err := c.Load(ctx, otherKey); !errors.Is(err, weather.ErrCacheMiss) {
		t.Fatalf("expected miss after invalidate all, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	clock := newFakeClock()
	exerciseBackend(t, NewMemoryStore(clock.Now), clock.Advance)
}

func TestMemoryStoreZeroTTLNeverReadable(t *testing.T) {
	s := NewMemoryStore(newFakeClock().Now)
	ctx := context.Background()

	if err := s.Save(ctx, snapKey, []byte("x"), 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Load(ctx, snapKey); !errors.Is(err, weather.ErrCacheMiss) {
		t.Fatalf("expected miss for zero ttl, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected expired entry to be evicted, %d left", s.Len())
	}
}

func TestMemoryStorePayloadIsCopied(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	buf := []byte("abc")
	if err := s.Save(ctx, snapKey, buf, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	buf[0] = 'z'
	got, _ := s.Load(ctx, snapKey)
	if string(got) != "abc" {
		t.Fatalf("stored payload aliased caller buffer: %s", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	clock := newFakeClock()
	dir := t.TempDir()
	s, err := OpenSQLite(context.Background(), dir, "group.weather", clock.Now)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(dir, "group.weather", "cache.db")); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
	exerciseBackend(t, s, clock.Advance)
}

func TestSQLiteStoreSharedAcrossHandles(t *testing.T) {
	clock := newFakeClock()
	dir := t.TempDir()
	ctx := context.Background()

	writer, err := OpenSQLite(ctx, dir, "group.weather", clock.Now)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer writer.Close()
	reader, err := OpenSQLite(ctx, dir, "group.weather", clock.Now)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	if err := writer.Save(ctx, snapKey, []byte("shared"), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := reader.Load(ctx, snapKey)
	if err != nil || string(got) != "shared" {
		t.Fatalf("reader got %q, %v", got, err)
	}

	if err := writer.Save(ctx, alertsKey, []byte("[]"), time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	clock.Advance(time.Minute)
	n, err := reader.Prune(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned row, got %d", n)
	}
}

func TestSQLiteStoreNamespaces(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	a, err := OpenSQLite(ctx, dir, "a", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()
	b, err := OpenSQLite(ctx, dir, "b", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()

	if err := a.Save(ctx, snapKey, []byte("a"), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := b.Load(ctx, snapKey); !errors.Is(err, weather.ErrCacheMiss) {
		t.Fatalf("namespace b should not see a's entry, got %v", err)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	clock := newFakeClock()
	s, err := OpenPostgres(context.Background(), dsn, "test-"+time.Now().Format("150405.000000"), clock.Now)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	defer s.InvalidateAll(context.Background())
	exerciseBackend(t, s, clock.Advance)
}

func TestRebind(t *testing.T) {
	s := &SQLStore{dialect: Postgres}
	got := s.rebind("a = ? AND b = ?")
	if got != "a = $1 AND b = $2" {
		t.Fatalf("unexpected rebind %q", got)
	}
	s.dialect = SQLite
	if got := s.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("sqlite query should be unchanged, got %q", got)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(NewRedisPool(mr.Addr()), "group.weather")

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	exerciseBackend(t, s, mr.FastForward)
}

func TestRedisStoreInvalidateAllKeepsOtherNamespaces(t *testing.T) {
	mr := miniredis.RunT(t)
	pool := NewRedisPool(mr.Addr())
	ctx := context.Background()
	a := NewRedisStore(pool, "a")
	b := NewRedisStore(pool, "b")

	if err := a.Save(ctx, snapKey, []byte("a"), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := b.Save(ctx, snapKey, []byte("b"), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := a.InvalidateAll(ctx); err != nil {
		t.Fatalf("invalidate all: %v", err)
	}
	if got, err := b.Load(ctx, snapKey); err != nil || string(got) != "b" {
		t.Fatalf("namespace b lost its entry: %q, %v", got, err)
	}
}
