package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/i474232898/weather-snapshot/internal/weather"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PrimaryBaseURL != "https://api.weather.gov" {
		t.Errorf("unexpected primary url %q", cfg.PrimaryBaseURL)
	}
	if cfg.CacheBackend != "sqlite" || cfg.SnapshotTTL != 30*time.Minute || cfg.AlertsTTL != 5*time.Minute {
		t.Errorf("unexpected cache defaults %+v", cfg)
	}
	if !cfg.Shared() || cfg.CacheDir == "" || cfg.CacheNamespace != "group.weather-snapshot" {
		t.Errorf("default cache must be shared between processes: backend=%s dir=%q", cfg.CacheBackend, cfg.CacheDir)
	}
	if cfg.SideFetchGrace != weather.DefaultSideGrace {
		t.Errorf("unexpected side fetch grace %s", cfg.SideFetchGrace)
	}
	if cfg.Units != weather.Fahrenheit || cfg.FallbackStrategy != weather.StrategyProvider {
		t.Errorf("unexpected defaults units=%s strategy=%s", cfg.Units, cfg.FallbackStrategy)
	}
	if len(cfg.Coverage.Territories) == 0 {
		t.Error("expected default territories")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"CACHE_BACKEND":        "redis",
		"REDIS_ADDR":           "localhost:6379",
		"SNAPSHOT_TTL_MINUTES": "60",
		"UNITS":                "c",
		"FALLBACK_STRATEGY":    "nearest-point",
		"WARM_LOCATIONS":       "47.6062,-122.3321; 40.7128,-74.0060",
		"HTTP_TIMEOUT":         "3s",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SnapshotTTL != time.Hour || cfg.Units != weather.Celsius || cfg.HTTPTimeout != 3*time.Second {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.FallbackStrategy != weather.StrategyNearestPoint {
		t.Errorf("unexpected strategy %s", cfg.FallbackStrategy)
	}
	if len(cfg.WarmLocations) != 2 || cfg.WarmLocations[1].Longitude != -74.0060 {
		t.Errorf("unexpected warm locations %+v", cfg.WarmLocations)
	}
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad backend":      {"CACHE_BACKEND": "mongo"},
		"redis no addr":    {"CACHE_BACKEND": "redis"},
		"postgres no dsn":  {"CACHE_BACKEND": "postgres"},
		"bad units":        {"UNITS": "K"},
		"bad duration":     {"HTTP_TIMEOUT": "soon"},
		"bad ttl":          {"ALERTS_TTL_MINUTES": "five"},
		"zero ttl":         {"SNAPSHOT_TTL_MINUTES": "0"},
		"bad location":     {"WARM_LOCATIONS": "47.6"},
		"location range":   {"WARM_LOCATIONS": "147.6,10"},
		"bad strategy":     {"FALLBACK_STRATEGY": "closest"},
		"bad primary url":  {"PRIMARY_BASE_URL": "not a url"},
		"missing coverage": {"COVERAGE_FILE": "/nonexistent/coverage.yaml"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := FromEnv(envMap(env)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadCoverage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coverage.yaml")
	doc := `
bounding_box:
  min_lat: 41.0
  max_lat: 42.0
  min_lon: -74.0
  max_lon: -73.0
territories:
  - name: Test Island
    center:
      latitude: 10.5
      longitude: 20.5
territory_radius_km: 50
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cov, err := LoadCoverage(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cov.Box.MinLat != 41 || cov.RadiusKm != 50 {
		t.Errorf("unexpected coverage %+v", cov)
	}
	if len(cov.Territories) != 1 || cov.Territories[0].Center.Longitude != 20.5 {
		t.Errorf("unexpected territories %+v", cov.Territories)
	}
	if len(cov.ReferencePoints) == 0 {
		t.Error("reference points should keep their defaults")
	}
}

func TestLoadCoverageRejectsInvertedBox(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coverage.yaml")
	doc := "bounding_box:\n  min_lat: 42\n  max_lat: 41\n  min_lon: -74\n  max_lon: -73\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCoverage(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestMemoryBackendIsNotShared(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{"CACHE_BACKEND": "memory"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Shared() {
		t.Fatal("memory backend is private to one process")
	}
}
