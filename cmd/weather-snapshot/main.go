package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-snapshot/internal/api/http"
	"github.com/i474232898/weather-snapshot/internal/config"
	"github.com/i474232898/weather-snapshot/internal/location"
	"github.com/i474232898/weather-snapshot/internal/logging"
	"github.com/i474232898/weather-snapshot/internal/scheduler"
	"github.com/i474232898/weather-snapshot/internal/store"
	"github.com/i474232898/weather-snapshot/internal/weather"
	"github.com/i474232898/weather-snapshot/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("starting weather-snapshot", cfg.Fields()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	backoff := providers.BackoffConfig{
		MaxRetries:      cfg.RetryMax,
		InitialInterval: cfg.RetryInitial,
		MaxInterval:     cfg.RetryMaxInterval,
	}

	backend, closeBackend, err := store.Open(ctx, store.Settings{
		Backend:     cfg.CacheBackend,
		Namespace:   cfg.CacheNamespace,
		Dir:         cfg.CacheDir,
		DatabaseURL: cfg.DatabaseURL,
		RedisAddr:   cfg.RedisAddr,
	})
	if err != nil {
		logger.Fatal("failed to open cache backend", zap.Error(err))
	}
	defer closeBackend()
	if !cfg.Shared() {
		logger.Warn("cache backend is private to this process; snapshot-widget will not see it",
			zap.String("cache_backend", cfg.CacheBackend))
	}
	cache := weather.NewSnapshotCache(backend, cfg.SnapshotTTL, cfg.AlertsTTL, logger)

	var geocoder location.Geocoder = location.NewNominatimGeocoder(cfg.GeocoderBaseURL, cfg.UserAgent, cfg.HTTPTimeout)
	if cfg.GeocoderAPIKey != "" {
		geocoder = location.NewGoogleGeocoder(cfg.GeocoderAPIKey)
	}
	resolver := location.NewResolver(cfg.Coverage, geocoder, logger)

	// Providers with resilience (backoff + circuit breaker).
	primary := providers.NewNWSProvider(httpClient, cfg.PrimaryBaseURL, cfg.UserAgent, backoff, logger)
	fallback := providers.NewOpenMeteoProvider(httpClient, cfg.FallbackBaseURL, cfg.UserAgent, backoff, logger)

	agg := weather.NewAggregator(resolver, []weather.Source{primary.Source(), fallback.Source()}, cache, logger, weather.Options{
		Normalizer: weather.Normalizer{Units: cfg.Units},
		Strategy:   cfg.FallbackStrategy,
		Deadline:   cfg.RequestDeadline,
		SideGrace:  cfg.SideFetchGrace,
	})

	// Scheduler that keeps configured locations warm.
	pruner, _ := backend.(scheduler.Pruner)
	sched := scheduler.New(cfg.WarmLocations, cfg.WarmInterval, agg, pruner, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-snapshot",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.RequestDeadline + 5*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(requestid.New())
	app.Use(accessLog(logger))
	app.Use(recover.New())

	httpapi.RegisterOps(app, "weather-snapshot")
	httpapi.RegisterRoutes(app, agg)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}

func accessLog(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Info("request",
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
}
