// Command snapshot-widget prints the cached snapshot for a coordinate without touching
// the network. It shares the cache namespace with the weather-snapshot server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-snapshot/internal/config"
	"github.com/i474232898/weather-snapshot/internal/logging"
	"github.com/i474232898/weather-snapshot/internal/store"
	"github.com/i474232898/weather-snapshot/internal/weather"
)

func main() {
	lat := flag.Float64("lat", 0, "latitude")
	lon := flag.Float64("lon", 0, "longitude")
	asJSON := flag.Bool("json", false, "print the full snapshot as JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	code := run(cfg, logger, weather.Coordinate{Latitude: *lat, Longitude: *lon}, *asJSON, os.Stdout, os.Stderr)
	_ = logger.Sync()
	os.Exit(code)
}

func run(cfg *config.AppConfig, logger *zap.Logger, coord weather.Coordinate, asJSON bool, stdout, stderr io.Writer) int {
	if !cfg.Shared() {
		fmt.Fprintf(stderr, "cache backend %q is private to the server process; set CACHE_BACKEND to sqlite, postgres or redis\n", cfg.CacheBackend)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	backend, closeBackend, err := store.Open(ctx, store.Settings{
		Backend:     cfg.CacheBackend,
		Namespace:   cfg.CacheNamespace,
		Dir:         cfg.CacheDir,
		DatabaseURL: cfg.DatabaseURL,
		RedisAddr:   cfg.RedisAddr,
	})
	if err != nil {
		logger.Error("failed to open cache backend", zap.Error(err))
		return 1
	}
	defer closeBackend()

	cache := weather.NewSnapshotCache(backend, cfg.SnapshotTTL, cfg.AlertsTTL, logger)
	agg := weather.NewAggregator(nil, nil, cache, logger, weather.Options{})

	snap, ok := agg.Cached(ctx, coord)
	if !ok {
		fmt.Fprintf(stderr, "no cached weather for %s\n", coord)
		return 1
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			logger.Error("encode snapshot", zap.Error(err))
			return 1
		}
		return 0
	}
	fmt.Fprintln(stdout, summary(snap))
	return 0
}

func summary(s weather.WeatherSnapshot) string {
	line := s.Location
	if len(s.Hourly) > 0 {
		h := s.Hourly[0]
		line += fmt.Sprintf("  %.0f°%s %s", h.Temperature, h.Unit, h.ShortForecast)
	}
	if len(s.Daily) > 0 {
		d := s.Daily[0]
		line += fmt.Sprintf("  H:%.0f° L:%.0f°  %d%% precip", d.TempHigh, d.TempLow, d.PrecipChance)
	}
	if n := len(s.Alerts); n > 0 {
		line += fmt.Sprintf("  %d alert(s): %s", n, s.Alerts[0].Headline)
	}
	return line
}
