package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-snapshot/internal/location"
	"github.com/i474232898/weather-snapshot/internal/weather"
)

var validate = validator.New()

type AppConfig struct {
	PrimaryBaseURL  string `validate:"required,url"`
	FallbackBaseURL string `validate:"omitempty,url"`
	GeocoderBaseURL string `validate:"omitempty,url"`
	GeocoderAPIKey  string
	UserAgent       string `validate:"required"`

	HTTPTimeout      time.Duration `validate:"gt=0"`
	RequestDeadline  time.Duration `validate:"gte=0"`
	RetryMax         int           `validate:"gte=0,lte=10"`
	RetryInitial     time.Duration `validate:"gt=0"`
	RetryMaxInterval time.Duration `validate:"gte=0"`
	SideFetchGrace   time.Duration `validate:"gte=0"`

	// CacheBackend selects the shared cache: memory, sqlite, postgres or redis.
	// memory is private to one process, so the widget cannot read it.
	CacheBackend   string        `validate:"oneof=memory sqlite postgres redis"`
	CacheNamespace string        `validate:"required"`
	CacheDir       string        `validate:"required_if=CacheBackend sqlite"`
	DatabaseURL    string        `validate:"required_if=CacheBackend postgres"`
	RedisAddr      string        `validate:"required_if=CacheBackend redis"`
	SnapshotTTL    time.Duration `validate:"gt=0"`
	AlertsTTL      time.Duration `validate:"gt=0"`

	Units            weather.TemperatureUnit  `validate:"oneof=F C"`
	FallbackStrategy weather.FallbackStrategy `validate:"oneof=provider nearest-point"`

	// Locations kept warm by the scheduler.
	WarmLocations []weather.Coordinate `validate:"dive"`
	WarmInterval  time.Duration        `validate:"gte=0"`

	Coverage location.Coverage

	Port      string `validate:"required,numeric"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json console"`
}

// Shared reports whether the cache backend is visible to other processes.
func (c *AppConfig) Shared() bool {
	return c.CacheBackend != "" && c.CacheBackend != "memory"
}

// Load reads configuration from environment with sensible defaults.
// A .env file in the working directory is honoured when present.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates the configuration from getenv.
func FromEnv(getenv func(string) string) (*AppConfig, error) {
	env := envReader{getenv: getenv}
	cfg := &AppConfig{
		PrimaryBaseURL:  env.str("PRIMARY_BASE_URL", "https://api.weather.gov"),
		FallbackBaseURL: env.str("FALLBACK_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		GeocoderBaseURL: env.str("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderAPIKey:  env.str("GEOCODER_API_KEY", ""),
		UserAgent:       env.str("USER_AGENT", "weather-snapshot/1.0 (ops@example.com)"),

		HTTPTimeout:      env.duration("HTTP_TIMEOUT", 10*time.Second),
		RequestDeadline:  env.duration("REQUEST_DEADLINE", 30*time.Second),
		RetryMax:         env.integer("RETRY_MAX", 2),
		RetryInitial:     env.duration("RETRY_INITIAL", 500*time.Millisecond),
		RetryMaxInterval: env.duration("RETRY_MAX_INTERVAL", 5*time.Second),
		SideFetchGrace:   env.duration("SIDE_FETCH_GRACE", weather.DefaultSideGrace),

		CacheBackend:   strings.ToLower(env.str("CACHE_BACKEND", "sqlite")),
		CacheNamespace: env.str("CACHE_NAMESPACE", "group.weather-snapshot"),
		CacheDir:       env.str("CACHE_DIR", defaultCacheDir()),
		DatabaseURL:    env.str("DATABASE_URL", ""),
		RedisAddr:      env.str("REDIS_ADDR", ""),
		SnapshotTTL:    time.Duration(env.integer("SNAPSHOT_TTL_MINUTES", 30)) * time.Minute,
		AlertsTTL:      time.Duration(env.integer("ALERTS_TTL_MINUTES", 5)) * time.Minute,

		Units:            weather.TemperatureUnit(strings.ToUpper(env.str("UNITS", "F"))),
		FallbackStrategy: weather.FallbackStrategy(strings.ToLower(env.str("FALLBACK_STRATEGY", string(weather.StrategyProvider)))),
		WarmInterval:     env.duration("WARM_INTERVAL", 15*time.Minute),

		Port:      env.str("PORT", "8080"),
		LogLevel:  strings.ToLower(env.str("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(env.str("LOG_FORMAT", "json")),
	}
	if env.err != nil {
		return nil, env.err
	}

	locs, err := ParseLocations(env.str("WARM_LOCATIONS", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid WARM_LOCATIONS: %w", err)
	}
	cfg.WarmLocations = locs

	cfg.Coverage = location.DefaultCoverage()
	if path := env.str("COVERAGE_FILE", ""); path != "" {
		cov, err := LoadCoverage(path)
		if err != nil {
			return nil, err
		}
		cfg.Coverage = cov
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadCoverage reads coverage geometry from a YAML file. Fields absent from the file keep
// their default values.
func LoadCoverage(path string) (location.Coverage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return location.Coverage{}, fmt.Errorf("read coverage file: %w", err)
	}
	cov := location.DefaultCoverage()
	if err := yaml.Unmarshal(data, &cov); err != nil {
		return location.Coverage{}, fmt.Errorf("parse coverage file %s: %w", path, err)
	}
	if err := validate.Struct(cov); err != nil {
		return location.Coverage{}, fmt.Errorf("invalid coverage file %s: %w", path, err)
	}
	return cov, nil
}

// ParseLocations parses "lat,lon;lat,lon" into coordinates.
func ParseLocations(s string) ([]weather.Coordinate, error) {
	var out []weather.Coordinate
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		latStr, lonStr, ok := strings.Cut(part, ",")
		if !ok {
			return nil, fmt.Errorf("%q is not lat,lon", part)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil {
			return nil, fmt.Errorf("latitude in %q: %w", part, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil {
			return nil, fmt.Errorf("longitude in %q: %w", part, err)
		}
		out = append(out, weather.Coordinate{Latitude: lat, Longitude: lon})
	}
	return out, nil
}

// Fields returns the settings worth logging at startup. Secrets are omitted.
func (c *AppConfig) Fields() []zap.Field {
	return []zap.Field{
		zap.String("primary", c.PrimaryBaseURL),
		zap.String("fallback", c.FallbackBaseURL),
		zap.String("cache_backend", c.CacheBackend),
		zap.String("cache_namespace", c.CacheNamespace),
		zap.Duration("snapshot_ttl", c.SnapshotTTL),
		zap.Duration("alerts_ttl", c.AlertsTTL),
		zap.String("units", string(c.Units)),
		zap.String("fallback_strategy", string(c.FallbackStrategy)),
		zap.Int("warm_locations", len(c.WarmLocations)),
		zap.Bool("google_geocoder", c.GeocoderAPIKey != ""),
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return os.TempDir()
}

// envReader collects the first parse error so Load can report it after reading every key.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) str(key, def string) string {
	if v := e.getenv(key); v != "" {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return n
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return d
}
