package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/weather-snapshot/internal/metrics"
	"github.com/i474232898/weather-snapshot/internal/weather"
)

// DefaultNWSBaseURL is the public National Weather Service API.
const DefaultNWSBaseURL = "https://api.weather.gov"

// NWSProvider is the primary provider. It implements weather.GridResolver,
// weather.ForecastFetcher and weather.AlertFetcher.
type NWSProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker

	// alerts trip separately so a failing alert endpoint never blocks forecasts.
	alertCircuit *gobreaker.CircuitBreaker
	logger       *zap.Logger
}

func NewNWSProvider(client *http.Client, baseURL, userAgent string, backoff BackoffConfig, logger *zap.Logger) *NWSProvider {
	if baseURL == "" {
		baseURL = DefaultNWSBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NWSProvider{
		name:    "nws",
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: HTTPClientConfig{
			Client:    client,
			UserAgent: userAgent,
			Backoff:   backoff,
		},
		circuit:      newCircuitBreaker("nws"),
		alertCircuit: newCircuitBreaker("nws-alerts"),
		logger:       logger.With(zap.String("provider", "nws")),
	}
}

func (p *NWSProvider) Name() string {
	return p.name
}

// Source exposes the provider as the primary pipeline source.
func (p *NWSProvider) Source() weather.Source {
	return weather.Source{
		Kind:     weather.ProviderPrimary,
		Grid:     p,
		Forecast: p,
		Alerts:   p,
	}
}

type pointsResponse struct {
	Properties struct {
		GridID         string `json:"gridId"`
		GridX          int    `json:"gridX"`
		GridY          int    `json:"gridY"`
		Forecast       string `json:"forecast"`
		ForecastHourly string `json:"forecastHourly"`
		TimeZone       string `json:"timeZone"`
	} `json:"properties"`
}

// Resolve looks up the forecast office, grid cell and endpoints for a coordinate.
func (p *NWSProvider) Resolve(ctx context.Context, coord weather.Coordinate) (weather.GridReference, error) {
	if err := validCoordinate(coord); err != nil {
		return weather.GridReference{}, err
	}
	u := fmt.Sprintf("%s/points/%.4f,%.4f", p.baseURL, coord.Latitude, coord.Longitude)

	var pt pointsResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &pt); err != nil {
		return weather.GridReference{}, err
	}

	props := pt.Properties
	if props.GridID == "" || props.Forecast == "" || props.ForecastHourly == "" {
		return weather.GridReference{}, fmt.Errorf("%w: points response for %s lacks grid or forecast endpoints", weather.ErrDecoding, coord)
	}

	return weather.GridReference{
		Provider:  weather.ProviderPrimary,
		Office:    props.GridID,
		GridX:     props.GridX,
		GridY:     props.GridY,
		Timezone:  props.TimeZone,
		DailyURL:  props.Forecast,
		HourlyURL: props.ForecastHourly,
	}, nil
}

type quantitativeValue struct {
	UnitCode string   `json:"unitCode"`
	Value    *float64 `json:"value"`
}

type forecastPeriod struct {
	Number                     int               `json:"number"`
	Name                       string            `json:"name"`
	StartTime                  time.Time         `json:"startTime"`
	EndTime                    time.Time         `json:"endTime"`
	IsDaytime                  bool              `json:"isDaytime"`
	Temperature                float64           `json:"temperature"`
	TemperatureUnit            string            `json:"temperatureUnit"`
	ProbabilityOfPrecipitation quantitativeValue `json:"probabilityOfPrecipitation"`
	Dewpoint                   quantitativeValue `json:"dewpoint"`
	RelativeHumidity           quantitativeValue `json:"relativeHumidity"`
	WindSpeed                  string            `json:"windSpeed"`
	WindDirection              string            `json:"windDirection"`
	Icon                       string            `json:"icon"`
	ShortForecast              string            `json:"shortForecast"`
	DetailedForecast           string            `json:"detailedForecast"`
}

type forecastResponse struct {
	Properties struct {
		Periods []forecastPeriod `json:"periods"`
	} `json:"properties"`
}

func (p *NWSProvider) FetchDaily(ctx context.Context, grid weather.GridReference) ([]weather.RawPeriod, error) {
	return p.fetchPeriods(ctx, grid.DailyURL)
}

func (p *NWSProvider) FetchHourly(ctx context.Context, grid weather.GridReference) ([]weather.RawPeriod, error) {
	return p.fetchPeriods(ctx, grid.HourlyURL)
}

func (p *NWSProvider) fetchPeriods(ctx context.Context, endpoint string) ([]weather.RawPeriod, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: empty forecast endpoint", weather.ErrInvalidURL)
	}

	var fc forecastResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, endpoint, &fc); err != nil {
		return nil, err
	}

	periods := make([]weather.RawPeriod, 0, len(fc.Properties.Periods))
	for _, fp := range fc.Properties.Periods {
		periods = append(periods, toRawPeriod(fp))
	}
	return periods, nil
}

func toRawPeriod(fp forecastPeriod) weather.RawPeriod {
	rp := weather.RawPeriod{
		Number:           fp.Number,
		Name:             fp.Name,
		IsDaytime:        fp.IsDaytime,
		Start:            fp.StartTime,
		End:              fp.EndTime,
		Temperature:      fp.Temperature,
		TemperatureUnit:  weather.TemperatureUnit(strings.ToUpper(fp.TemperatureUnit)),
		WindSpeed:        fp.WindSpeed,
		WindDirection:    fp.WindDirection,
		PrecipChance:     fp.ProbabilityOfPrecipitation.Value,
		RelativeHumidity: fp.RelativeHumidity.Value,
		ShortForecast:    fp.ShortForecast,
		DetailedForecast: fp.DetailedForecast,
		Icon:             fp.Icon,
	}
	if rp.TemperatureUnit == "" {
		rp.TemperatureUnit = weather.Fahrenheit
	}
	if v := fp.Dewpoint.Value; v != nil {
		d := *v
		if strings.HasSuffix(fp.Dewpoint.UnitCode, "degF") {
			d = weather.FahrenheitToCelsius(d)
		}
		rp.DewpointC = &d
	}
	return rp
}

type alertsResponse struct {
	Features []struct {
		Properties struct {
			ID          string     `json:"id"`
			Event       string     `json:"event"`
			Headline    string     `json:"headline"`
			Description string     `json:"description"`
			Severity    string     `json:"severity"`
			Onset       *time.Time `json:"onset"`
			Effective   *time.Time `json:"effective"`
			Ends        *time.Time `json:"ends"`
			Expires     *time.Time `json:"expires"`
		} `json:"properties"`
	} `json:"features"`
}

// FetchAlerts returns active alerts for coord. Any failure yields an empty list.
func (p *NWSProvider) FetchAlerts(ctx context.Context, coord weather.Coordinate) []weather.WeatherAlert {
	alerts, err := p.fetchAlerts(ctx, coord)
	if err != nil {
		metrics.AlertFailures.WithLabelValues(p.name).Inc()
		p.logger.Warn("alert fetch failed; continuing without alerts",
			zap.Stringer("coord", coord), zap.Error(err))
		return []weather.WeatherAlert{}
	}
	return alerts
}

func (p *NWSProvider) fetchAlerts(ctx context.Context, coord weather.Coordinate) ([]weather.WeatherAlert, error) {
	if err := validCoordinate(coord); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("point", fmt.Sprintf("%.4f,%.4f", coord.Latitude, coord.Longitude))
	u := p.baseURL + "/alerts/active?" + q.Encode()

	var al alertsResponse
	if err := getJSON(ctx, p.httpCfg, p.alertCircuit, u, &al); err != nil {
		return nil, err
	}

	alerts := make([]weather.WeatherAlert, 0, len(al.Features))
	for _, f := range al.Features {
		props := f.Properties
		a := weather.WeatherAlert{
			ID:          props.ID,
			Headline:    props.Headline,
			Description: props.Description,
			Severity:    parseSeverity(props.Severity),
			Event:       props.Event,
		}
		if a.Headline == "" {
			a.Headline = props.Event
		}
		switch {
		case props.Onset != nil:
			a.Start = *props.Onset
		case props.Effective != nil:
			a.Start = *props.Effective
		}
		switch {
		case props.Ends != nil:
			a.End = props.Ends
		case props.Expires != nil:
			a.End = props.Expires
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// parseSeverity maps provider severities onto the four-level scale; unknown values become minor.
func parseSeverity(s string) weather.Severity {
	switch strings.ToLower(s) {
	case "extreme":
		return weather.SeverityExtreme
	case "severe":
		return weather.SeveritySevere
	case "moderate":
		return weather.SeverityModerate
	default:
		return weather.SeverityMinor
	}
}
