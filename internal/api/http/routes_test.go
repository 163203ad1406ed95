package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-snapshot/internal/location"
	"github.com/i474232898/weather-snapshot/internal/store"
	"github.com/i474232898/weather-snapshot/internal/weather"
)

type fakeProvider struct {
	gridErr error
}

func (p fakeProvider) Resolve(_ context.Context, c weather.Coordinate) (weather.GridReference, error) {
	if p.gridErr != nil {
		return weather.GridReference{}, p.gridErr
	}
	return weather.GridReference{Provider: weather.ProviderPrimary, Office: "SEW", GridX: 1, GridY: 2}, nil
}

func (fakeProvider) FetchDaily(context.Context, weather.GridReference) ([]weather.RawPeriod, error) {
	start := time.Now().Truncate(24 * time.Hour).Add(6 * time.Hour)
	return []weather.RawPeriod{
		{Number: 1, IsDaytime: true, Start: start, End: start.Add(12 * time.Hour), Temperature: 55, TemperatureUnit: weather.Fahrenheit, ShortForecast: "Sunny"},
		{Number: 2, Start: start.Add(12 * time.Hour), End: start.Add(24 * time.Hour), Temperature: 40, TemperatureUnit: weather.Fahrenheit, ShortForecast: "Clear"},
	}, nil
}

func (fakeProvider) FetchHourly(context.Context, weather.GridReference) ([]weather.RawPeriod, error) {
	return nil, nil
}

func (fakeProvider) FetchAlerts(context.Context, weather.Coordinate) []weather.WeatherAlert {
	return []weather.WeatherAlert{{ID: "x", Headline: "Heat Advisory", Severity: weather.SeverityModerate}}
}

func newTestApp(t *testing.T, p fakeProvider) *fiber.App {
	t.Helper()
	src := weather.Source{Kind: weather.ProviderPrimary, Grid: p, Forecast: p, Alerts: p}
	cache := weather.NewSnapshotCache(store.NewMemoryStore(nil), time.Hour, time.Hour, nil)
	agg := weather.NewAggregator(location.NewResolver(location.DefaultCoverage(), nil, nil), []weather.Source{src}, cache, nil, weather.Options{})

	app := fiber.New()
	RegisterRoutes(app, agg)
	RegisterOps(app, "weather-snapshot")
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp
}

// TestCoordinateValidation verifies that lat/lon are required, numeric and in range.
func TestCoordinateValidation(t *testing.T) {
	app := newTestApp(t, fakeProvider{})

	for _, target := range []string{
		"/api/v1/weather",
		"/api/v1/weather?lat=47.6",
		"/api/v1/weather?lat=abc&lon=1",
		"/api/v1/weather?lat=91&lon=0",
		"/api/v1/alerts?lat=0&lon=181",
	} {
		resp := doRequest(t, app, http.MethodGet, target)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, resp.StatusCode)
		}
	}
}

func TestWeatherAndCacheEndpoints(t *testing.T) {
	app := newTestApp(t, fakeProvider{})

	resp := doRequest(t, app, http.MethodGet, "/api/v1/weather/cached?lat=47.6062&lon=-122.3321")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before the first fetch, got %d", resp.StatusCode)
	}

	resp = doRequest(t, app, http.MethodGet, "/api/v1/weather?lat=47.6062&lon=-122.3321")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var snap weather.WeatherSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Daily) != 1 || len(snap.Alerts) != 1 || snap.Location != "Unknown Location" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	resp = doRequest(t, app, http.MethodGet, "/api/v1/weather/cached?lat=47.6062&lon=-122.3321")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected cached snapshot, got %d", resp.StatusCode)
	}

	resp = doRequest(t, app, http.MethodDelete, "/api/v1/cache?lat=47.6062&lon=-122.3321")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = doRequest(t, app, http.MethodGet, "/api/v1/weather/cached?lat=47.6062&lon=-122.3321")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after invalidation, got %d", resp.StatusCode)
	}

	resp = doRequest(t, app, http.MethodPost, "/api/v1/weather/refresh?lat=47.6062&lon=-122.3321")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from refresh, got %d", resp.StatusCode)
	}
	resp = doRequest(t, app, http.MethodDelete, "/api/v1/cache/all")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestNotCoveredWithoutFallback(t *testing.T) {
	app := newTestApp(t, fakeProvider{})

	resp := doRequest(t, app, http.MethodGet, "/api/v1/coverage?lat=51.5074&lon=-0.1278")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var cov weather.Coverage
	if err := json.NewDecoder(resp.Body).Decode(&cov); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cov.Covered || cov.Provider != weather.ProviderPrimary || cov.Target == cov.Coordinate {
		t.Fatalf("expected nearest-point substitution, got %+v", cov)
	}
}

func TestPipelineErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{&weather.StatusError{Status: 500}, http.StatusBadGateway},
		{weather.ErrDecoding, http.StatusBadGateway},
		{weather.ErrInvalidURL, http.StatusBadRequest},
	}
	for _, tc := range cases {
		app := newTestApp(t, fakeProvider{gridErr: tc.err})
		resp := doRequest(t, app, http.MethodGet, "/api/v1/weather?lat=47.6062&lon=-122.3321")
		if resp.StatusCode != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, resp.StatusCode)
		}
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["state"] != "resolving_grid" {
			t.Fatalf("expected failing state in body, got %v", body)
		}
	}

	if got := StatusFor(weather.ErrLocationNotFound); got != http.StatusNotFound {
		t.Fatalf("location not found mapped to %d", got)
	}
	if got := StatusFor(weather.ErrNotCovered); got != http.StatusUnprocessableEntity {
		t.Fatalf("not covered mapped to %d", got)
	}
	if got := StatusFor(errors.New("boom")); got != http.StatusBadGateway {
		t.Fatalf("unknown error mapped to %d", got)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, fakeProvider{})
	if resp := doRequest(t, app, http.MethodGet, "/health"); resp.StatusCode != http.StatusOK {
		t.Fatalf("health returned %d", resp.StatusCode)
	}
	if resp := doRequest(t, app, http.MethodGet, "/metrics"); resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics returned %d", resp.StatusCode)
	}
}
