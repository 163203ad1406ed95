package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/weather-snapshot/internal/common"
	"github.com/i474232898/weather-snapshot/internal/weather"
)

// DefaultOpenMeteoBaseURL is the global forecast endpoint.
const DefaultOpenMeteoBaseURL = "https://api.open-meteo.com/v1/forecast"

const (
	openMeteoDaily  = "temperature_2m_max,temperature_2m_min,precipitation_probability_max,weather_code,wind_speed_10m_max,wind_direction_10m_dominant,uv_index_max"
	openMeteoHourly = "temperature_2m,weather_code,wind_speed_10m,wind_direction_10m,is_day,precipitation_probability,relative_humidity_2m"
)

// OpenMeteoProvider is the fallback global provider. It has no point lookup and no alerts;
// its daily arrays are expanded into day/night periods so normalization is shared with the primary.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewOpenMeteoProvider(client *http.Client, baseURL, userAgent string, backoff BackoffConfig, logger *zap.Logger) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client:    client,
			UserAgent: userAgent,
			Backoff:   backoff,
		},
		circuit: newCircuitBreaker("openmeteo"),
		logger:  logger.With(zap.String("provider", "openmeteo")),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// Source exposes the provider as the fallback pipeline source.
func (p *OpenMeteoProvider) Source() weather.Source {
	return weather.Source{
		Kind:     weather.ProviderFallback,
		Grid:     p,
		Forecast: p,
	}
}

// Resolve builds the grid reference locally; the endpoints are addressed by coordinate.
func (p *OpenMeteoProvider) Resolve(_ context.Context, coord weather.Coordinate) (weather.GridReference, error) {
	if err := validCoordinate(coord); err != nil {
		return weather.GridReference{}, err
	}
	base, err := url.Parse(p.baseURL)
	if err != nil {
		return weather.GridReference{}, fmt.Errorf("%w: %w", weather.ErrInvalidURL, err)
	}

	build := func(param, fields string) string {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%.4f", coord.Latitude))
		values.Set("longitude", fmt.Sprintf("%.4f", coord.Longitude))
		values.Set(param, fields)
		values.Set("temperature_unit", "fahrenheit")
		values.Set("wind_speed_unit", "mph")
		values.Set("timezone", "auto")
		values.Set("forecast_days", "7")
		u := *base
		u.RawQuery = values.Encode()
		return u.String()
	}

	// Timezone stays empty: Open-Meteo picks the zone and it travels on the period times.
	return weather.GridReference{
		Provider:  weather.ProviderFallback,
		Office:    p.name,
		GridX:     int(math.Round(coord.Latitude * 100)),
		GridY:     int(math.Round(coord.Longitude * 100)),
		DailyURL:  build("daily", openMeteoDaily),
		HourlyURL: build("hourly", openMeteoHourly),
	}, nil
}

type openMeteoResponse struct {
	Timezone         string `json:"timezone"`
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`
	Daily            struct {
		Time          []string   `json:"time"`
		TempMax       []*float64 `json:"temperature_2m_max"`
		TempMin       []*float64 `json:"temperature_2m_min"`
		PrecipMax     []*float64 `json:"precipitation_probability_max"`
		WeatherCode   []int      `json:"weather_code"`
		WindSpeedMax  []*float64 `json:"wind_speed_10m_max"`
		WindDirection []*float64 `json:"wind_direction_10m_dominant"`
		UVIndexMax    []*float64 `json:"uv_index_max"`
	} `json:"daily"`
	Hourly struct {
		Time             []string   `json:"time"`
		Temperature      []*float64 `json:"temperature_2m"`
		WeatherCode      []int      `json:"weather_code"`
		WindSpeed        []*float64 `json:"wind_speed_10m"`
		WindDirection    []*float64 `json:"wind_direction_10m"`
		IsDay            []int      `json:"is_day"`
		Precipitation    []*float64 `json:"precipitation_probability"`
		RelativeHumidity []*float64 `json:"relative_humidity_2m"`
	} `json:"hourly"`
}

func (r openMeteoResponse) location() *time.Location {
	name := r.Timezone
	if name == "" {
		name = "UTC"
	}
	return time.FixedZone(name, r.UTCOffsetSeconds)
}

func (p *OpenMeteoProvider) FetchDaily(ctx context.Context, grid weather.GridReference) ([]weather.RawPeriod, error) {
	var payload openMeteoResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, grid.DailyURL, &payload); err != nil {
		return nil, err
	}

	d := payload.Daily
	loc := payload.location()
	periods := make([]weather.RawPeriod, 0, 2*len(d.Time))
	for i, ds := range d.Time {
		date, err := time.ParseInLocation("2006-01-02", ds, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: daily time %q: %w", weather.ErrDecoding, ds, err)
		}
		if i >= len(d.TempMax) || i >= len(d.TempMin) {
			return nil, fmt.Errorf("%w: daily arrays shorter than time axis", weather.ErrDecoding)
		}

		short := wmoDescription(at(d.WeatherCode, i))
		precip := valueAt(d.PrecipMax, i)
		wind := fmt.Sprintf("%.0f mph", floatOrZero(valueAt(d.WindSpeedMax, i)))
		dir := compass(valueAt(d.WindDirection, i))
		detailed := short + "."
		if uv := valueAt(d.UVIndexMax, i); uv != nil {
			detailed = fmt.Sprintf("%s. UV index %.0f.", short, *uv)
		}

		periods = append(periods,
			weather.RawPeriod{
				Number:           2*i + 1,
				Name:             date.Format("Monday"),
				IsDaytime:        true,
				Start:            date.Add(6 * time.Hour),
				End:              date.Add(18 * time.Hour),
				Temperature:      floatOrZero(d.TempMax[i]),
				TemperatureUnit:  weather.Fahrenheit,
				WindSpeed:        wind,
				WindDirection:    dir,
				PrecipChance:     precip,
				ShortForecast:    short,
				DetailedForecast: detailed,
			},
			weather.RawPeriod{
				Number:           2*i + 2,
				Name:             date.Format("Monday") + " Night",
				IsDaytime:        false,
				Start:            date.Add(18 * time.Hour),
				End:              date.Add(30 * time.Hour),
				Temperature:      floatOrZero(d.TempMin[i]),
				TemperatureUnit:  weather.Fahrenheit,
				WindSpeed:        wind,
				WindDirection:    dir,
				PrecipChance:     precip,
				ShortForecast:    short,
				DetailedForecast: short + ".",
			},
		)
	}
	return periods, nil
}

func (p *OpenMeteoProvider) FetchHourly(ctx context.Context, grid weather.GridReference) ([]weather.RawPeriod, error) {
	var payload openMeteoResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, grid.HourlyURL, &payload); err != nil {
		return nil, err
	}

	h := payload.Hourly
	loc := payload.location()
	periods := make([]weather.RawPeriod, 0, len(h.Time))
	for i, ts := range h.Time {
		start, err := time.ParseInLocation("2006-01-02T15:04", ts, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: hourly time %q: %w", weather.ErrDecoding, ts, err)
		}
		if i >= len(h.Temperature) {
			return nil, fmt.Errorf("%w: hourly arrays shorter than time axis", weather.ErrDecoding)
		}
		periods = append(periods, weather.RawPeriod{
			Number:           i + 1,
			IsDaytime:        at(h.IsDay, i) == 1,
			Start:            start,
			End:              start.Add(time.Hour),
			Temperature:      floatOrZero(h.Temperature[i]),
			TemperatureUnit:  weather.Fahrenheit,
			WindSpeed:        fmt.Sprintf("%.0f mph", floatOrZero(valueAt(h.WindSpeed, i))),
			WindDirection:    compass(valueAt(h.WindDirection, i)),
			PrecipChance:     valueAt(h.Precipitation, i),
			RelativeHumidity: valueAt(h.RelativeHumidity, i),
			ShortForecast:    wmoDescription(at(h.WeatherCode, i)),
		})
	}
	return periods, nil
}

// wmoDescription renders a WMO weather code in the vocabulary the text estimators understand.
func wmoDescription(code int) string {
	var text string
	switch {
	case code == 0:
		text = "clear"
	case code == 1:
		text = "mostly clear"
	case code == 2:
		text = "partly cloudy"
	case code == 3:
		text = "cloudy"
	case code == 45 || code == 48:
		text = "fog"
	case code >= 51 && code <= 57:
		text = "drizzle"
	case code == 61 || code == 66:
		text = "light rain"
	case code == 63 || code == 67:
		text = "rain"
	case code == 65:
		text = "heavy rain"
	case code == 71 || code == 77:
		text = "light snow"
	case code == 73:
		text = "snow"
	case code == 75:
		text = "heavy snow"
	case code >= 80 && code <= 81:
		text = "rain showers"
	case code == 82:
		text = "heavy rain showers"
	case code == 85 || code == 86:
		text = "snow showers"
	case code >= 95:
		text = "thunderstorms"
	default:
		text = "unknown"
	}
	return common.Title(text)
}

var compassPoints = strings.Fields("N NNE NE ENE E ESE SE SSE S SSW SW WSW W WNW NW NNW")

func compass(deg *float64) string {
	if deg == nil {
		return ""
	}
	d := math.Mod(*deg, 360)
	if d < 0 {
		d += 360
	}
	return compassPoints[int(math.Round(d/22.5))%len(compassPoints)]
}

func valueAt(s []*float64, i int) *float64 {
	if i < len(s) {
		return s[i]
	}
	return nil
}

func at(s []int, i int) int {
	if i < len(s) {
		return s[i]
	}
	return -1
}
