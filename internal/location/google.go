package location

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-snapshot/internal/weather"
)

// geocoder.ApiKey is package state; calls are serialized so keys never cross.
var googleMu sync.Mutex

// GoogleGeocoder uses the Google Maps geocoding API. It is selected when an API key is configured.
type GoogleGeocoder struct {
	apiKey string
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{apiKey: apiKey}
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, query string) (weather.Coordinate, error) {
	type result struct {
		loc geocoder.Location
		err error
	}
	ch := make(chan result, 1)
	go func() {
		googleMu.Lock()
		defer googleMu.Unlock()
		geocoder.ApiKey = g.apiKey
		loc, err := geocoder.Geocoding(geocoder.Address{City: query})
		ch <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return weather.Coordinate{}, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return weather.Coordinate{}, googleError(res.err)
		}
		return weather.Coordinate{Latitude: res.loc.Latitude, Longitude: res.loc.Longitude}, nil
	}
}

func (g *GoogleGeocoder) Reverse(ctx context.Context, coord weather.Coordinate) (Place, error) {
	type result struct {
		addrs []geocoder.Address
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		googleMu.Lock()
		defer googleMu.Unlock()
		geocoder.ApiKey = g.apiKey
		addrs, err := geocoder.GeocodingReverse(geocoder.Location{
			Latitude:  coord.Latitude,
			Longitude: coord.Longitude,
		})
		ch <- result{addrs: addrs, err: err}
	}()

	select {
	case <-ctx.Done():
		return Place{}, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return Place{}, googleError(res.err)
		}
		if len(res.addrs) == 0 {
			return Place{}, fmt.Errorf("%w: no address for %s", weather.ErrLocationNotFound, coord)
		}
		a := res.addrs[0]
		return Place{
			Locality:    firstNonEmpty(a.City, a.District, a.County),
			Region:      a.State,
			Country:     a.Country,
			CountryCode: countryCode(a.Country),
		}, nil
	}
}

func googleError(err error) error {
	if strings.Contains(err.Error(), "ZERO_RESULTS") {
		return fmt.Errorf("%w: %w", weather.ErrLocationNotFound, err)
	}
	return fmt.Errorf("%w: %w", weather.ErrGeocoding, err)
}

// The Google backend reports country names only.
func countryCode(country string) string {
	switch strings.ToLower(country) {
	case "united states", "united states of america", "usa":
		return "US"
	}
	return ""
}
