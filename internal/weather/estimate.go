package weather

import (
	"math"
	"regexp"
	"strconv"

	"github.com/i474232898/weather-snapshot/internal/common"
)

var (
	precipBeforeRe = regexp.MustCompile(`(?i)(\d{1,3})\s*%\s*chance of (?:precipitation|rain|snow)`)
	precipAfterRe  = regexp.MustCompile(`(?i)chance of (?:precipitation|rain|snow)(?:\s+is)?\s*(?:near\s+|around\s+)?(\d{1,3})\s*%`)
	uvIndexRe      = regexp.MustCompile(`(?i)UV index[^0-9]{0,20}(\d+(?:\.\d+)?)`)
	digitsRe       = regexp.MustCompile(`\d+`)
)

// FahrenheitToCelsius converts without intermediate rounding.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// CelsiusToFahrenheit converts without intermediate rounding.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// ConvertTemperature converts v from one unit to another. Same-unit values pass through untouched.
func ConvertTemperature(v float64, from, to TemperatureUnit) float64 {
	switch {
	case from == to || from == "" || to == "":
		return v
	case from == Fahrenheit && to == Celsius:
		return FahrenheitToCelsius(v)
	default:
		return CelsiusToFahrenheit(v)
	}
}

// ParseWindSpeed extracts the first number from text like "10 to 15 mph". Unparseable input yields 0.
func ParseWindSpeed(text string) float64 {
	m := digitsRe.FindString(text)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return float64(n)
}

// PrecipitationFromText resolves a chance of precipitation for one period.
// An explicit non-zero value wins, then a percentage in the detailed text, then short-text keywords.
func PrecipitationFromText(explicit *float64, detailed, short string) int {
	if explicit != nil && *explicit != 0 {
		return clampPercent(int(math.Round(*explicit)))
	}
	for _, re := range []*regexp.Regexp{precipBeforeRe, precipAfterRe} {
		if m := re.FindStringSubmatch(detailed); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return clampPercent(n)
			}
		}
	}
	return precipitationKeyword(short)
}

func precipitationKeyword(short string) int {
	switch {
	case common.HasAny(short, "Slight Chance"):
		return 20
	case common.HasAny(short, "Chance"):
		return 40
	case common.HasAny(short, "Likely"):
		return 70
	case common.HasAny(short, "Definite", "Heavy"):
		return 90
	case common.HasAny(short, "Rain", "Showers", "Thunderstorms", "Snow", "Drizzle", "Sleet"):
		return 50
	default:
		return 0
	}
}

// UVIndexFromText reads "UV index of 7" style text, falling back to a sky keyword guess.
func UVIndexFromText(detailed, short string) int {
	if m := uvIndexRe.FindStringSubmatch(detailed); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return int(math.Round(v))
		}
	}
	switch {
	case common.HasAny(short, "partly sunny"):
		return 5
	case common.HasAny(short, "sunny"):
		return 8
	case common.HasAny(short, "cloudy"):
		return 2
	default:
		return 3
	}
}

// HumidityFromText prefers an explicit relative humidity and otherwise guesses from the text.
func HumidityFromText(explicit *float64, text string) int {
	if explicit != nil {
		return clampPercent(int(math.Round(*explicit)))
	}
	switch {
	case common.HasAny(text, "rain", "shower"):
		return 85
	case common.HasAny(text, "fog", "mist"):
		return 95
	case common.HasAny(text, "humid"):
		return 80
	case common.HasAny(text, "dry"):
		return 30
	default:
		return 60
	}
}

// SkyCoverFromText maps a short forecast to a cloud cover band in percent.
func SkyCoverFromText(short string) int {
	switch {
	case common.HasAny(short, "Mostly Clear", "Mostly Sunny"):
		return 25
	case common.HasAny(short, "Partly Cloudy", "Partly Sunny"):
		return 50
	case common.HasAny(short, "Mostly Cloudy"):
		return 75
	case common.HasAny(short, "Clear", "Sunny"):
		return 0
	case common.HasAny(short, "Cloudy", "Overcast"):
		return 100
	default:
		return 50
	}
}

// ConditionFromIcon maps a provider icon reference (or short text) to an icon category.
func ConditionFromIcon(icon, short string) Condition {
	if c := conditionFromIconURL(icon); c != ConditionUnknown {
		return c
	}
	switch {
	case common.HasAny(short, "thunder", "storm"):
		return ConditionStorm
	case common.HasAny(short, "snow", "sleet", "flurries", "blizzard"):
		return ConditionSnow
	case common.HasAny(short, "rain", "shower", "drizzle"):
		return ConditionRain
	case common.HasAny(short, "fog", "mist", "haze", "smoke"):
		return ConditionMist
	case common.HasAny(short, "partly", "mostly sunny", "mostly clear"):
		return ConditionPartlyCloudy
	case common.HasAny(short, "cloudy", "overcast"):
		return ConditionCloudy
	case common.HasAny(short, "sunny", "clear"):
		return ConditionClear
	case common.HasAny(short, "wind", "breezy"):
		return ConditionWind
	default:
		return ConditionUnknown
	}
}

func conditionFromIconURL(icon string) Condition {
	switch {
	case icon == "":
		return ConditionUnknown
	case common.HasAny(icon, "/tsra"):
		return ConditionStorm
	case common.HasAny(icon, "/snow", "/sleet", "/blizzard"):
		return ConditionSnow
	case common.HasAny(icon, "/rain", "/showers"):
		return ConditionRain
	case common.HasAny(icon, "/fog", "/haze", "/smoke", "/dust"):
		return ConditionMist
	case common.HasAny(icon, "/wind"):
		return ConditionWind
	case common.HasAny(icon, "/ovc"):
		return ConditionCloudy
	case common.HasAny(icon, "/sct", "/bkn"):
		return ConditionPartlyCloudy
	case common.HasAny(icon, "/skc", "/few"):
		return ConditionClear
	default:
		return ConditionUnknown
	}
}

func clampPercent(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
