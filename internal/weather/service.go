package weather

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FallbackStrategy decides how coordinates outside primary coverage are served.
type FallbackStrategy string

const (
	// StrategyProvider routes uncovered coordinates to the fallback provider when one is registered.
	StrategyProvider FallbackStrategy = "provider"
	// StrategyNearestPoint substitutes the nearest covered point and uses the primary provider.
	StrategyNearestPoint FallbackStrategy = "nearest-point"
)

// Options tune an Aggregator. Zero values select defaults.
type Options struct {
	Normalizer Normalizer
	Strategy   FallbackStrategy
	// Deadline bounds a pipeline run when the caller's context carries none.
	Deadline time.Duration
	// SideGrace bounds how long alerts and the display name may keep running
	// after the forecasts are in. Defaults to DefaultSideGrace.
	SideGrace time.Duration
	Now      func() time.Time
	// Observer is told about every state a run enters.
	Observer func(runID string, state State)
}

const (
	// DefaultSideGrace is the default wait for best-effort fetches once forecasts are ready.
	DefaultSideGrace  = 2 * time.Second
	cacheWriteTimeout = 5 * time.Second
)

// Aggregator orchestrates location resolution, grid lookup, the forecast and alert fetches,
// normalization and caching into a WeatherSnapshot.
type Aggregator struct {
	resolver   LocationResolver
	sources    map[ProviderKind]Source
	cache      *SnapshotCache
	normalizer Normalizer
	strategy   FallbackStrategy
	deadline   time.Duration
	sideGrace  time.Duration
	now        func() time.Time
	observer   func(string, State)
	logger     *zap.Logger
}

// NewAggregator creates a new Aggregator. cache may be nil.
func NewAggregator(resolver LocationResolver, sources []Source, cache *SnapshotCache, logger *zap.Logger, opts Options) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyProvider
	}
	if opts.SideGrace <= 0 {
		opts.SideGrace = DefaultSideGrace
	}
	if cache == nil {
		cache = NewSnapshotCache(nil, 0, 0, logger)
	}

	byKind := make(map[ProviderKind]Source, len(sources))
	for _, s := range sources {
		byKind[s.Kind] = s
	}

	return &Aggregator{
		resolver:   resolver,
		sources:    byKind,
		cache:      cache,
		normalizer: opts.Normalizer,
		strategy:   opts.Strategy,
		deadline:   opts.Deadline,
		sideGrace:  opts.SideGrace,
		now:        opts.Now,
		observer:   opts.Observer,
		logger:     logger,
	}
}

// Snapshot returns a fresh cached snapshot for coord, running the pipeline on a miss.
func (a *Aggregator) Snapshot(ctx context.Context, coord Coordinate) (WeatherSnapshot, error) {
	return a.execute(ctx, request{coord: coord, useCache: true})
}

// SnapshotForPlace geocodes placeName and then behaves like Snapshot.
func (a *Aggregator) SnapshotForPlace(ctx context.Context, placeName string) (WeatherSnapshot, error) {
	return a.execute(ctx, request{place: placeName, useCache: true})
}

// Refresh runs the full pipeline for coord, ignoring any cached entry.
func (a *Aggregator) Refresh(ctx context.Context, coord Coordinate) (WeatherSnapshot, error) {
	return a.execute(ctx, request{coord: coord})
}

// Cached returns the cached snapshot for coord without touching the network.
// This is the read path used by the widget extension.
func (a *Aggregator) Cached(ctx context.Context, coord Coordinate) (WeatherSnapshot, bool) {
	id := coord.LocationID()
	snap, ok := a.cache.LoadSnapshot(ctx, id)
	if !ok {
		return WeatherSnapshot{}, false
	}
	if alerts, ok := a.cache.LoadAlerts(ctx, id); ok {
		snap = snap.WithAlerts(alerts)
	}
	return snap, true
}

// Alerts returns the active alerts for coord from cache or, best-effort, from the provider.
func (a *Aggregator) Alerts(ctx context.Context, coord Coordinate) []WeatherAlert {
	id := coord.LocationID()
	if alerts, ok := a.cache.LoadAlerts(ctx, id); ok {
		return alerts
	}
	kind, target, err := a.route(coord)
	if err != nil {
		a.logger.Warn("no provider for alerts", zap.Stringer("coord", coord), zap.Error(err))
		return []WeatherAlert{}
	}
	alerts := a.fetchAlerts(ctx, kind, target)
	a.saveAlerts(ctx, a.logger, id, alerts)
	return alerts
}

// writeContext detaches a cache write from the request so a run that used up its
// deadline still persists what it built.
func writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
}

func (a *Aggregator) saveAlerts(ctx context.Context, logger *zap.Logger, locationID string, alerts []WeatherAlert) {
	wctx, cancel := writeContext(ctx)
	defer cancel()
	if err := a.cache.SaveAlerts(wctx, locationID, alerts); err != nil {
		logger.Warn("alert cache write skipped", zap.String("location", locationID), zap.Error(err))
	}
}

// Invalidate drops every cached entry for coord.
func (a *Aggregator) Invalidate(ctx context.Context, coord Coordinate) error {
	return a.cache.Invalidate(ctx, coord.LocationID())
}

// InvalidateAll empties the shared cache.
func (a *Aggregator) InvalidateAll(ctx context.Context) error {
	return a.cache.InvalidateAll(ctx)
}

// Coverage describes how a coordinate would be served.
type Coverage struct {
	Coordinate Coordinate   `json:"coordinate"`
	Covered    bool         `json:"covered"`
	Provider   ProviderKind `json:"provider"`
	Target     Coordinate   `json:"target"`
}

// Coverage reports the routing decision for coord without any network call.
func (a *Aggregator) Coverage(coord Coordinate) (Coverage, error) {
	kind, target, err := a.route(coord)
	if err != nil {
		return Coverage{}, err
	}
	return Coverage{
		Coordinate: coord,
		Covered:    a.resolver.IsCovered(coord),
		Provider:   kind,
		Target:     target,
	}, nil
}

// route picks the provider and the coordinate actually sent to it.
// Uncovered coordinates use the fallback provider unless the strategy asks for
// substitution or no fallback is registered; substitution never fails.
func (a *Aggregator) route(coord Coordinate) (ProviderKind, Coordinate, error) {
	kind := a.resolver.SelectProvider(coord)
	target := coord
	if kind == ProviderFallback {
		_, hasFallback := a.sources[ProviderFallback]
		if !hasFallback || a.strategy == StrategyNearestPoint {
			kind = ProviderPrimary
			target = a.resolver.NearestCoveredPoint(coord)
		}
	}
	if _, ok := a.sources[kind]; !ok {
		return "", coord, fmt.Errorf("%w: no %s provider registered", ErrNotCovered, kind)
	}
	return kind, target, nil
}

func (a *Aggregator) fetchAlerts(ctx context.Context, kind ProviderKind, coord Coordinate) []WeatherAlert {
	src := a.sources[kind]
	if src.Alerts == nil {
		return []WeatherAlert{}
	}
	alerts := src.Alerts.FetchAlerts(ctx, coord)
	if alerts == nil {
		alerts = []WeatherAlert{}
	}
	return alerts
}
