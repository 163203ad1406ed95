package httpapi

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-snapshot/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, agg *weather.Aggregator) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		if place := strings.TrimSpace(c.Query("place")); place != "" {
			snap, err := agg.SnapshotForPlace(c.UserContext(), place)
			if err != nil {
				return respondError(c, err)
			}
			return c.JSON(snap)
		}

		coord, err := parseCoordQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		snap, err := agg.Snapshot(c.UserContext(), coord)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(snap)
	})

	v1.Get("/weather/cached", func(c *fiber.Ctx) error {
		coord, err := parseCoordQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		snap, ok := agg.Cached(c.UserContext(), coord)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no cached weather for requested location")
		}
		return c.JSON(snap)
	})

	v1.Post("/weather/refresh", func(c *fiber.Ctx) error {
		coord, err := parseCoordQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		snap, err := agg.Refresh(c.UserContext(), coord)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(snap)
	})

	v1.Get("/alerts", func(c *fiber.Ctx) error {
		coord, err := parseCoordQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{
			"coordinate": coord,
			"alerts":     agg.Alerts(c.UserContext(), coord),
		})
	})

	v1.Get("/coverage", func(c *fiber.Ctx) error {
		coord, err := parseCoordQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		cov, err := agg.Coverage(coord)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(cov)
	})

	v1.Delete("/cache", func(c *fiber.Ctx) error {
		coord, err := parseCoordQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := agg.Invalidate(c.UserContext(), coord); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to invalidate cache")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Delete("/cache/all", func(c *fiber.Ctx) error {
		if err := agg.InvalidateAll(c.UserContext()); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to invalidate cache")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// RegisterOps adds the health and Prometheus endpoints.
func RegisterOps(app *fiber.App, service string) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": service,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

// StatusFor maps a pipeline error onto an HTTP status.
func StatusFor(err error) int {
	switch weather.KindOf(err) {
	case weather.KindLocationNotFound:
		return fiber.StatusNotFound
	case weather.KindNotCovered:
		return fiber.StatusUnprocessableEntity
	case weather.KindTimeout:
		return fiber.StatusGatewayTimeout
	case weather.KindInvalidURL:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusBadGateway
	}
}

func respondError(c *fiber.Ctx, err error) error {
	body := fiber.Map{
		"error":   true,
		"kind":    weather.KindOf(err),
		"message": err.Error(),
	}
	var f *weather.Failure
	if errors.As(err, &f) {
		body["state"] = f.State.String()
	}
	return c.Status(StatusFor(err)).JSON(body)
}

// coordQuery holds query parameters for identifying a coordinate.
type coordQuery struct {
	Lat float64 `validate:"min=-90,max=90"`
	Lon float64 `validate:"min=-180,max=180"`
}

func parseCoordQuery(c *fiber.Ctx) (weather.Coordinate, error) {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" || lonStr == "" {
		return weather.Coordinate{}, errors.New("lat and lon query parameters are required")
	}

	var q coordQuery
	var err error
	if q.Lat, err = strconv.ParseFloat(latStr, 64); err != nil {
		return weather.Coordinate{}, errors.New("lat must be a number")
	}
	if q.Lon, err = strconv.ParseFloat(lonStr, 64); err != nil {
		return weather.Coordinate{}, errors.New("lon must be a number")
	}
	if err := validate.Struct(q); err != nil {
		return weather.Coordinate{}, err
	}

	return weather.Coordinate{Latitude: q.Lat, Longitude: q.Lon}, nil
}
