package weather

import (
	"fmt"
	"math"
	"time"
)

// Condition represents a normalized high-level weather condition used as the icon category.
type Condition string

const (
	ConditionUnknown      Condition = "unknown"
	ConditionClear        Condition = "clear"
	ConditionPartlyCloudy Condition = "partly-cloudy"
	ConditionCloudy       Condition = "cloudy"
	ConditionRain         Condition = "rain"
	ConditionSnow         Condition = "snow"
	ConditionStorm        Condition = "storm"
	ConditionMist         Condition = "mist"
	ConditionWind         Condition = "wind"
)

// TemperatureUnit is either Fahrenheit or Celsius.
type TemperatureUnit string

const (
	Fahrenheit TemperatureUnit = "F"
	Celsius    TemperatureUnit = "C"
)

// ProviderKind identifies which upstream data source serves a coordinate.
type ProviderKind string

const (
	ProviderPrimary  ProviderKind = "primary"
	ProviderFallback ProviderKind = "fallback"
)

// Coordinate is an immutable WGS84 position in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// LocationID returns the canonical cache identifier for the coordinate.
// Coordinates are rounded to 2 decimals (about 1.1km) so nearby requests share entries.
func (c Coordinate) LocationID() string {
	const precision = 100.0
	lat := math.Round(c.Latitude*precision) / precision
	lon := math.Round(c.Longitude*precision) / precision
	return fmt.Sprintf("%.2f,%.2f", lat, lon)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

// LocationInfo is the result of reverse geocoding a coordinate.
type LocationInfo struct {
	DisplayName string `json:"displayName"`
	Locality    string `json:"locality"`
	Region      string `json:"region"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
}

// GridReference is the provider-specific addressing unit for a coordinate.
type GridReference struct {
	Provider  ProviderKind `json:"provider"`
	Office    string       `json:"office"`
	GridX     int          `json:"gridX"`
	GridY     int          `json:"gridY"`
	Timezone  string       `json:"timezone"`
	DailyURL  string       `json:"dailyUrl"`
	HourlyURL string       `json:"hourlyUrl"`
}

// Key returns the provider grid key, e.g. "SEW/124,67".
func (g GridReference) Key() string {
	return fmt.Sprintf("%s/%d,%d", g.Office, g.GridX, g.GridY)
}

// RawPeriod is a provider-native forecast segment. It is never cached.
type RawPeriod struct {
	Number           int
	Name             string
	IsDaytime        bool
	Start            time.Time
	End              time.Time
	Temperature      float64
	TemperatureUnit  TemperatureUnit
	WindSpeed        string
	WindDirection    string
	PrecipChance     *float64
	RelativeHumidity *float64
	DewpointC        *float64
	ShortForecast    string
	DetailedForecast string
	Icon             string
}

// DailyForecast is one calendar day built from a day/night period pair.
type DailyForecast struct {
	ID               string          `json:"id"`
	ShortLabel       string          `json:"shortLabel"`
	FullLabel        string          `json:"fullLabel"`
	Date             time.Time       `json:"date"`
	TempHigh         float64         `json:"tempHigh"`
	TempLow          float64         `json:"tempLow"`
	Unit             TemperatureUnit `json:"unit"`
	PrecipChance     int             `json:"precipChance"`
	UVIndex          int             `json:"uvIndex"`
	WindSpeed        float64         `json:"windSpeed"`
	WindDirection    string          `json:"windDirection"`
	Icon             Condition       `json:"icon"`
	ShortForecast    string          `json:"shortForecast"`
	DetailedForecast string          `json:"detailedForecast"`
	Humidity         *int            `json:"humidity,omitempty"`
	Dewpoint         *float64        `json:"dewpoint,omitempty"`
	PressureHpa      *float64        `json:"pressureHpa,omitempty"`
	SkyCover         *int            `json:"skyCover,omitempty"`
}

// HourlyForecast is a single hour of the forecast.
type HourlyForecast struct {
	ID            int             `json:"id"`
	TimeLabel     string          `json:"timeLabel"`
	Time          time.Time       `json:"time"`
	Temperature   float64         `json:"temperature"`
	Unit          TemperatureUnit `json:"unit"`
	Icon          Condition       `json:"icon"`
	ShortForecast string          `json:"shortForecast"`
	WindSpeed     float64         `json:"windSpeed"`
	WindDirection string          `json:"windDirection"`
	IsDaytime     bool            `json:"isDaytime"`
}

// Severity of an active alert.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityExtreme  Severity = "extreme"
)

// WeatherAlert is an active watch, warning or advisory for a coordinate.
type WeatherAlert struct {
	ID          string     `json:"id"`
	Headline    string     `json:"headline"`
	Description string     `json:"description"`
	Severity    Severity   `json:"severity"`
	Event       string     `json:"event"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end,omitempty"`
}

// SnapshotMetadata describes where and when a snapshot was produced.
type SnapshotMetadata struct {
	Provider    ProviderKind `json:"provider"`
	Region      string       `json:"region"`
	GridKey     string       `json:"gridKey"`
	Timezone    string       `json:"timezone"`
	GeneratedAt time.Time    `json:"generatedAt"` // always UTC
	Coordinate  Coordinate   `json:"coordinate"`
}

// WeatherSnapshot is the aggregated result of one pipeline run.
// Once built it is never mutated; republishing builds a new value with WithAlerts.
type WeatherSnapshot struct {
	Location string           `json:"location"`
	Metadata SnapshotMetadata `json:"metadata"`
	Daily    []DailyForecast  `json:"daily"`
	Hourly   []HourlyForecast `json:"hourly"`
	Alerts   []WeatherAlert   `json:"alerts"`
}

// WithAlerts returns a copy of the snapshot carrying the given alerts.
func (s WeatherSnapshot) WithAlerts(alerts []WeatherAlert) WeatherSnapshot {
	out := s
	out.Daily = append([]DailyForecast(nil), s.Daily...)
	out.Hourly = append([]HourlyForecast(nil), s.Hourly...)
	out.Alerts = append(make([]WeatherAlert, 0, len(alerts)), alerts...)
	return out
}

// DataKind is the second half of a cache key.
type DataKind string

const (
	KindSnapshot DataKind = "snapshot"
	KindAlerts   DataKind = "alerts"
)

// CacheKey addresses one cache entry.
type CacheKey struct {
	LocationID string
	Kind       DataKind
}

func (k CacheKey) String() string {
	return k.LocationID + ":" + string(k.Kind)
}
