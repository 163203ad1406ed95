package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-snapshot/internal/metrics"
)

const unknownLocation = "Unknown Location"

type request struct {
	coord    Coordinate
	place    string
	useCache bool
}

// run tracks the state of one pipeline execution.
type run struct {
	id     string
	state  State
	a      *Aggregator
	logger *zap.Logger
}

func (r *run) enter(s State) {
	r.state = s
	r.logger.Debug("pipeline state", zap.Stringer("state", s))
	if r.a.observer != nil {
		r.a.observer(r.id, s)
	}
}

func (r *run) fail(err error) error {
	f := &Failure{State: r.state, Kind: KindOf(err), Err: err}
	r.logger.Error("pipeline failed",
		zap.Stringer("state", f.State),
		zap.String("kind", string(f.Kind)),
		zap.Error(err),
	)
	r.enter(StateFailed)
	return f
}

func (a *Aggregator) execute(ctx context.Context, req request) (WeatherSnapshot, error) {
	id := uuid.NewString()
	r := &run{id: id, state: StateIdle, a: a, logger: a.logger.With(zap.String("request_id", id))}

	if _, ok := ctx.Deadline(); !ok && a.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.deadline)
		defer cancel()
	}
	// Cancelling on return aborts any best-effort fetch still in flight.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.enter(StateResolvingLocation)
	coord := req.coord
	if req.place != "" {
		c, err := a.resolver.Geocode(ctx, req.place)
		if err != nil {
			if !errors.Is(err, ErrLocationNotFound) && !IsTimeout(err) {
				err = fmt.Errorf("%w: %w", ErrLocationNotFound, err)
			}
			return WeatherSnapshot{}, r.fail(err)
		}
		coord = c
	}
	locationID := coord.LocationID()

	if req.useCache {
		if snap, ok := a.cache.LoadSnapshot(ctx, locationID); ok {
			r.logger.Debug("snapshot cache hit", zap.String("location", locationID))
			snap = a.withCachedAlerts(ctx, locationID, snap)
			r.enter(StateDone)
			return snap, nil
		}
	}

	kind, target, err := a.route(coord)
	if err != nil {
		return WeatherSnapshot{}, r.fail(err)
	}
	if target != coord {
		r.logger.Info("substituted nearest covered point",
			zap.Stringer("requested", coord), zap.Stringer("target", target))
	}
	src := a.sources[kind]
	start := time.Now()

	// Alerts need only the coordinate, so they start before grid resolution.
	// They run on their own context so they can be cut off once the forecasts are in.
	sideCtx, stopSide := context.WithCancel(ctx)
	defer stopSide()

	alertsCh := make(chan []WeatherAlert, 1)
	go func() {
		alertsCh <- a.fetchAlerts(sideCtx, kind, target)
	}()

	nameCh := make(chan string, 1)
	go func() {
		nameCh <- a.displayName(sideCtx, r.logger, coord)
	}()

	r.enter(StateResolvingGrid)
	grid, err := src.Grid.Resolve(ctx, target)
	if err != nil {
		return WeatherSnapshot{}, a.finish(r, kind, start, fmt.Errorf("resolve grid: %w", err))
	}

	r.enter(StateFetchingForecasts)
	var dailyRaw, hourlyRaw []RawPeriod
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		periods, err := src.Forecast.FetchDaily(gctx, grid)
		if err != nil {
			return fmt.Errorf("fetch daily forecast: %w", err)
		}
		dailyRaw = periods
		return nil
	})
	g.Go(func() error {
		periods, err := src.Forecast.FetchHourly(gctx, grid)
		if err != nil {
			return fmt.Errorf("fetch hourly forecast: %w", err)
		}
		hourlyRaw = periods
		return nil
	})
	if err := g.Wait(); err != nil {
		return WeatherSnapshot{}, a.finish(r, kind, start, err)
	}

	r.enter(StateFetchingAlerts)
	grace := time.AfterFunc(a.sideGrace, stopSide)
	alerts := <-alertsCh
	name := <-nameCh
	grace.Stop()

	r.enter(StateNormalizing)
	now := a.now()
	snap := WeatherSnapshot{
		Location: name,
		Metadata: SnapshotMetadata{
			Provider:    kind,
			Region:      grid.Office,
			GridKey:     grid.Key(),
			Timezone:    zoneName(grid, dailyRaw),
			GeneratedAt: now.UTC(),
			Coordinate:  target,
		},
		Daily:  a.normalizer.Daily(grid.Key(), dailyRaw),
		Hourly: a.normalizer.Hourly(hourlyRaw, now),
		Alerts: alerts,
	}

	r.enter(StateCached)
	wctx, cancelWrite := writeContext(ctx)
	if err := a.cache.SaveSnapshot(wctx, locationID, snap); err != nil {
		r.logger.Warn("snapshot cache write skipped", zap.String("location", locationID), zap.Error(err))
	}
	cancelWrite()
	a.saveAlerts(ctx, r.logger, locationID, alerts)

	a.finish(r, kind, start, nil)
	r.logger.Info("snapshot built",
		zap.String("location", locationID),
		zap.String("grid", snap.Metadata.GridKey),
		zap.Int("daily", len(snap.Daily)),
		zap.Int("hourly", len(snap.Hourly)),
		zap.Int("alerts", len(snap.Alerts)),
	)
	r.enter(StateDone)
	return snap, nil
}

// zoneName prefers the grid's zone and otherwise falls back to the zone the provider
// attached to its period times.
func zoneName(grid GridReference, periods []RawPeriod) string {
	if grid.Timezone != "" {
		return grid.Timezone
	}
	for _, p := range periods {
		if !p.Start.IsZero() {
			return p.Start.Location().String()
		}
	}
	return ""
}

// finish records metrics for a network-backed run and converts err into a Failure.
func (a *Aggregator) finish(r *run, kind ProviderKind, start time.Time, err error) error {
	metrics.PipelineDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.PipelineRuns.WithLabelValues(string(kind), "ok").Inc()
		return nil
	}
	metrics.PipelineRuns.WithLabelValues(string(kind), string(KindOf(err))).Inc()
	return r.fail(err)
}

// withCachedAlerts attaches cached alerts to a cached snapshot, refreshing them best-effort
// when their shorter TTL has lapsed. The result is a new snapshot value.
func (a *Aggregator) withCachedAlerts(ctx context.Context, locationID string, snap WeatherSnapshot) WeatherSnapshot {
	if alerts, ok := a.cache.LoadAlerts(ctx, locationID); ok {
		return snap.WithAlerts(alerts)
	}
	kind := snap.Metadata.Provider
	if _, ok := a.sources[kind]; !ok {
		return snap
	}
	alerts := a.fetchAlerts(ctx, kind, snap.Metadata.Coordinate)
	a.saveAlerts(ctx, a.logger, locationID, alerts)
	return snap.WithAlerts(alerts)
}

func (a *Aggregator) displayName(ctx context.Context, logger *zap.Logger, coord Coordinate) string {
	info, err := a.resolver.ReverseGeocode(ctx, coord)
	if err != nil {
		logger.Warn("reverse geocode failed", zap.Stringer("coord", coord), zap.Error(err))
		return unknownLocation
	}
	if info.DisplayName == "" {
		return unknownLocation
	}
	return info.DisplayName
}
