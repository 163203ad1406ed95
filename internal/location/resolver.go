package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/i474232898/weather-snapshot/internal/weather"
)

// Place is what a Geocoder knows about a coordinate before display formatting.
type Place struct {
	Locality    string
	Region      string
	Country     string
	CountryCode string
}

// Geocoder is a forward and reverse geocoding backend.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (weather.Coordinate, error)
	Reverse(ctx context.Context, coord weather.Coordinate) (Place, error)
}

// Resolver implements weather.LocationResolver over static coverage geometry and a Geocoder.
type Resolver struct {
	coverage    Coverage
	geocoder    Geocoder
	homeCountry string
	logger      *zap.Logger
}

// NewResolver creates a Resolver. geocoder may be nil, in which case geocoding fails
// with weather.ErrGeocoding.
func NewResolver(coverage Coverage, geocoder Geocoder, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if coverage.RadiusKm <= 0 {
		coverage.RadiusKm = DefaultTerritoryRadiusKm
	}
	return &Resolver{
		coverage:    coverage,
		geocoder:    geocoder,
		homeCountry: "US",
		logger:      logger,
	}
}

var _ weather.LocationResolver = (*Resolver)(nil)

func (r *Resolver) IsCovered(coord weather.Coordinate) bool {
	if r.coverage.Box.Contains(coord) {
		return true
	}
	for _, t := range r.coverage.Territories {
		if Haversine(coord, t.Center) <= r.coverage.RadiusKm {
			return true
		}
	}
	return false
}

func (r *Resolver) SelectProvider(coord weather.Coordinate) weather.ProviderKind {
	if r.IsCovered(coord) {
		return weather.ProviderPrimary
	}
	return weather.ProviderFallback
}

// NearestCoveredPoint returns the candidate closest to coord, or the central fallback point
// when there are no candidates.
func (r *Resolver) NearestCoveredPoint(coord weather.Coordinate) weather.Coordinate {
	best := r.coverage.CentralFallback
	bestDist := math.Inf(1)
	for _, c := range r.coverage.candidates() {
		if d := Haversine(coord, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func (r *Resolver) Geocode(ctx context.Context, placeName string) (weather.Coordinate, error) {
	name := strings.TrimSpace(placeName)
	if name == "" {
		return weather.Coordinate{}, fmt.Errorf("%w: empty place name", weather.ErrLocationNotFound)
	}
	if r.geocoder == nil {
		return weather.Coordinate{}, fmt.Errorf("%w: no geocoder configured", weather.ErrGeocoding)
	}
	coord, err := r.geocoder.Geocode(ctx, name)
	if err != nil {
		return weather.Coordinate{}, fmt.Errorf("geocode %q: %w", name, err)
	}
	r.logger.Debug("geocoded place", zap.String("place", name), zap.Stringer("coord", coord))
	return coord, nil
}

func (r *Resolver) ReverseGeocode(ctx context.Context, coord weather.Coordinate) (weather.LocationInfo, error) {
	if r.geocoder == nil {
		return weather.LocationInfo{}, fmt.Errorf("%w: no geocoder configured", weather.ErrGeocoding)
	}
	place, err := r.geocoder.Reverse(ctx, coord)
	if err != nil {
		if errors.Is(err, weather.ErrLocationNotFound) {
			return weather.LocationInfo{DisplayName: unknownLocation}, nil
		}
		return weather.LocationInfo{}, fmt.Errorf("reverse geocode %s: %w", coord, err)
	}
	return r.info(place), nil
}

const unknownLocation = "Unknown Location"

func (r *Resolver) info(p Place) weather.LocationInfo {
	return weather.LocationInfo{
		DisplayName: FormatDisplayName(p, r.homeCountry),
		Locality:    p.Locality,
		Region:      p.Region,
		Country:     p.Country,
		CountryCode: strings.ToUpper(p.CountryCode),
	}
}

// FormatDisplayName renders "locality, region" inside homeCountry and "locality, country" elsewhere.
func FormatDisplayName(p Place, homeCountry string) string {
	if p.Locality == "" && p.Country == "" {
		return unknownLocation
	}
	second := p.Country
	if strings.EqualFold(p.CountryCode, homeCountry) && p.Region != "" {
		second = p.Region
	}
	switch {
	case p.Locality == "":
		return second
	case second == "":
		return p.Locality
	default:
		return p.Locality + ", " + second
	}
}
