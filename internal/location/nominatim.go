package location

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/i474232898/weather-snapshot/internal/weather"
)

// DefaultNominatimBaseURL is the public OpenStreetMap geocoder.
const DefaultNominatimBaseURL = "https://nominatim.openstreetmap.org"

// NominatimGeocoder geocodes through an OpenStreetMap Nominatim instance.
type NominatimGeocoder struct {
	client *resty.Client
}

func NewNominatimGeocoder(baseURL, userAgent string, timeout time.Duration) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	return &NominatimGeocoder{client: client}
}

type nominatimSearchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

type nominatimReverseResult struct {
	Error   string `json:"error"`
	Address struct {
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		Hamlet      string `json:"hamlet"`
		County      string `json:"county"`
		State       string `json:"state"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, query string) (weather.Coordinate, error) {
	var results []nominatimSearchResult
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      query,
			"format": "jsonv2",
			"limit":  "1",
		}).
		SetResult(&results).
		Get("/search")
	if err := checkResponse(resp, err); err != nil {
		return weather.Coordinate{}, err
	}
	if len(results) == 0 {
		return weather.Coordinate{}, fmt.Errorf("%w: no match for %q", weather.ErrLocationNotFound, query)
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return weather.Coordinate{}, fmt.Errorf("%w: bad coordinates %q,%q", weather.ErrGeocoding, results[0].Lat, results[0].Lon)
	}
	return weather.Coordinate{Latitude: lat, Longitude: lon}, nil
}

func (g *NominatimGeocoder) Reverse(ctx context.Context, coord weather.Coordinate) (Place, error) {
	var result nominatimReverseResult
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":            strconv.FormatFloat(coord.Latitude, 'f', 6, 64),
			"lon":            strconv.FormatFloat(coord.Longitude, 'f', 6, 64),
			"format":         "jsonv2",
			"zoom":           "10",
			"addressdetails": "1",
		}).
		SetResult(&result).
		Get("/reverse")
	if err := checkResponse(resp, err); err != nil {
		return Place{}, err
	}
	if result.Error != "" {
		return Place{}, fmt.Errorf("%w: %s", weather.ErrLocationNotFound, result.Error)
	}

	a := result.Address
	locality := firstNonEmpty(a.City, a.Town, a.Village, a.Hamlet, a.County)
	return Place{
		Locality:    locality,
		Region:      a.State,
		Country:     a.Country,
		CountryCode: a.CountryCode,
	}, nil
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", weather.ErrGeocoding, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: status %d", weather.ErrLocationNotFound, resp.StatusCode())
	}
	if resp.IsError() {
		return fmt.Errorf("%w: status %d", weather.ErrGeocoding, resp.StatusCode())
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
