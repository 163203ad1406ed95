package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-snapshot/internal/config"
	"github.com/i474232898/weather-snapshot/internal/store"
	"github.com/i474232898/weather-snapshot/internal/weather"
)

func TestSummary(t *testing.T) {
	snap := weather.WeatherSnapshot{
		Location: "Seattle, Washington",
		Hourly:   []weather.HourlyForecast{{Temperature: 48.4, Unit: weather.Fahrenheit, ShortForecast: "Light Rain"}},
		Daily:    []weather.DailyForecast{{TempHigh: 51, TempLow: 40, PrecipChance: 60}},
		Alerts:   []weather.WeatherAlert{{Headline: "Wind Advisory"}},
	}
	got := summary(snap)
	for _, want := range []string{"Seattle, Washington", "48°F Light Rain", "H:51° L:40°", "60% precip", "1 alert(s): Wind Advisory"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary %q missing %q", got, want)
		}
	}

	if got := summary(weather.WeatherSnapshot{Location: "Nowhere"}); got != "Nowhere" {
		t.Errorf("empty snapshot summary = %q", got)
	}
}

func widgetConfig(dir, backend string) *config.AppConfig {
	return &config.AppConfig{
		CacheBackend:   backend,
		CacheNamespace: "group.weather-snapshot",
		CacheDir:       dir,
		SnapshotTTL:    time.Hour,
		AlertsTTL:      time.Hour,
	}
}

func TestRunReadsServerCache(t *testing.T) {
	dir := t.TempDir()
	cfg := widgetConfig(dir, "sqlite")
	coord := weather.Coordinate{Latitude: 47.6062, Longitude: -122.3321}

	// Populate the cache the way the server would, through its own handle.
	ctx := context.Background()
	st, err := store.OpenSQLite(ctx, dir, cfg.CacheNamespace, nil)
	if err != nil {
		t.Fatal(err)
	}
	cache := weather.NewSnapshotCache(st, time.Hour, time.Hour, nil)
	if err := cache.SaveSnapshot(ctx, coord.LocationID(), weather.WeatherSnapshot{Location: "Seattle, Washington"}); err != nil {
		t.Fatal(err)
	}
	st.Close()

	var out, errOut bytes.Buffer
	if code := run(cfg, zap.NewNop(), coord, false, &out, &errOut); code != 0 {
		t.Fatalf("exit code %d, stderr %q", code, errOut.String())
	}
	if !strings.Contains(out.String(), "Seattle, Washington") {
		t.Fatalf("unexpected output %q", out.String())
	}

	out.Reset()
	if code := run(cfg, zap.NewNop(), weather.Coordinate{Latitude: 40.71, Longitude: -74.01}, false, &out, &errOut); code != 1 {
		t.Fatalf("uncached coordinate should exit 1, got %d", code)
	}
}

func TestRunRefusesPrivateBackend(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(widgetConfig(t.TempDir(), "memory"), zap.NewNop(), weather.Coordinate{}, false, &out, &errOut)
	if code != 2 || !strings.Contains(errOut.String(), "CACHE_BACKEND") {
		t.Fatalf("expected a configuration error, got %d %q", code, errOut.String())
	}
}
