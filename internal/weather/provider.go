package weather

import (
	"context"
	"time"
)

// GridResolver maps a coordinate to provider grid metadata with one network call.
type GridResolver interface {
	Resolve(ctx context.Context, coord Coordinate) (GridReference, error)
}

// ForecastFetcher retrieves raw periods from the endpoints in a GridReference.
// Both calls are required by the pipeline.
type ForecastFetcher interface {
	FetchDaily(ctx context.Context, grid GridReference) ([]RawPeriod, error)
	FetchHourly(ctx context.Context, grid GridReference) ([]RawPeriod, error)
}

// AlertFetcher is best-effort: failures yield an empty list, never an error.
type AlertFetcher interface {
	FetchAlerts(ctx context.Context, coord Coordinate) []WeatherAlert
}

// Source bundles the fetchers of one provider.
type Source struct {
	Kind     ProviderKind
	Grid     GridResolver
	Forecast ForecastFetcher
	Alerts   AlertFetcher
}

// LocationResolver decides coverage and translates between names and coordinates.
type LocationResolver interface {
	IsCovered(coord Coordinate) bool
	SelectProvider(coord Coordinate) ProviderKind
	NearestCoveredPoint(coord Coordinate) Coordinate
	Geocode(ctx context.Context, placeName string) (Coordinate, error)
	ReverseGeocode(ctx context.Context, coord Coordinate) (LocationInfo, error)
}

// Cache is the contract every CacheStore backend satisfies.
// Load returns ErrCacheMiss for absent or expired keys; a load never returns an entry whose
// expiry is at or before now. Save is a last-write-wins overwrite and must be atomic per key.
type Cache interface {
	Save(ctx context.Context, key CacheKey, payload []byte, ttl time.Duration) error
	Load(ctx context.Context, key CacheKey) ([]byte, error)
	Invalidate(ctx context.Context, key CacheKey) error
	InvalidateAll(ctx context.Context) error
}
