package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-snapshot/internal/metrics"
)

// SnapshotCache stores typed snapshots and alert lists on top of a byte-level Cache.
// Read and decode failures are reported as misses; a nil backend behaves as an always-empty cache.
type SnapshotCache struct {
	backend     Cache
	snapshotTTL time.Duration
	alertsTTL   time.Duration
	logger      *zap.Logger
}

// NewSnapshotCache wraps backend with per-kind TTLs.
func NewSnapshotCache(backend Cache, snapshotTTL, alertsTTL time.Duration, logger *zap.Logger) *SnapshotCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotCache{
		backend:     backend,
		snapshotTTL: snapshotTTL,
		alertsTTL:   alertsTTL,
		logger:      logger,
	}
}

// Available reports whether a backend is configured.
func (c *SnapshotCache) Available() bool {
	return c != nil && c.backend != nil
}

func (c *SnapshotCache) LoadSnapshot(ctx context.Context, locationID string) (WeatherSnapshot, bool) {
	var snap WeatherSnapshot
	ok := c.load(ctx, CacheKey{LocationID: locationID, Kind: KindSnapshot}, &snap)
	return snap, ok
}

func (c *SnapshotCache) SaveSnapshot(ctx context.Context, locationID string, snap WeatherSnapshot) error {
	return c.save(ctx, CacheKey{LocationID: locationID, Kind: KindSnapshot}, snap, c.snapshotTTL)
}

func (c *SnapshotCache) LoadAlerts(ctx context.Context, locationID string) ([]WeatherAlert, bool) {
	var alerts []WeatherAlert
	ok := c.load(ctx, CacheKey{LocationID: locationID, Kind: KindAlerts}, &alerts)
	if ok && alerts == nil {
		alerts = []WeatherAlert{}
	}
	return alerts, ok
}

func (c *SnapshotCache) SaveAlerts(ctx context.Context, locationID string, alerts []WeatherAlert) error {
	if alerts == nil {
		alerts = []WeatherAlert{}
	}
	return c.save(ctx, CacheKey{LocationID: locationID, Kind: KindAlerts}, alerts, c.alertsTTL)
}

// Invalidate drops every data kind for a location.
func (c *SnapshotCache) Invalidate(ctx context.Context, locationID string) error {
	if !c.Available() {
		return nil
	}
	var errs []error
	for _, kind := range []DataKind{KindSnapshot, KindAlerts} {
		if err := c.backend.Invalidate(ctx, CacheKey{LocationID: locationID, Kind: kind}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *SnapshotCache) InvalidateAll(ctx context.Context) error {
	if !c.Available() {
		return nil
	}
	return c.backend.InvalidateAll(ctx)
}

func (c *SnapshotCache) load(ctx context.Context, key CacheKey, v any) bool {
	if !c.Available() {
		return false
	}
	raw, err := c.backend.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("cache read failed; treating as miss", zap.Stringer("key", key), zap.Error(err))
		}
		metrics.CacheLookups.WithLabelValues(string(key.Kind), "miss").Inc()
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.logger.Warn("cache payload corrupt; treating as miss", zap.Stringer("key", key), zap.Error(err))
		metrics.CacheLookups.WithLabelValues(string(key.Kind), "corrupt").Inc()
		return false
	}
	metrics.CacheLookups.WithLabelValues(string(key.Kind), "hit").Inc()
	return true
}

func (c *SnapshotCache) save(ctx context.Context, key CacheKey, v any, ttl time.Duration) error {
	if !c.Available() {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.backend.Save(ctx, key, raw, ttl); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
