package weather

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxHourly caps the hourly series.
	MaxHourly = 24
	// fallbackLowDelta is subtracted from the high when a day has no night period.
	fallbackLowDelta = 10
)

// Normalizer converts raw provider periods into canonical daily and hourly records.
type Normalizer struct {
	Units TemperatureUnit
}

func (n Normalizer) units() TemperatureUnit {
	if n.Units == "" {
		return Fahrenheit
	}
	return n.Units
}

// PairPeriods groups an ordered period sequence into day/night pairs.
// A daytime period immediately followed by the next-numbered night period forms a pair.
// A night that starts on the same calendar date as the following day (an "Overnight"
// period issued after midnight) joins that day's group. Any other leading night or
// trailing day forms a group of one.
func PairPeriods(periods []RawPeriod) [][]RawPeriod {
	groups := make([][]RawPeriod, 0, len(periods)/2+1)
	for i := 0; i < len(periods); {
		var group []RawPeriod
		if i+1 < len(periods) && !periods[i].IsDaytime && periods[i+1].IsDaytime && sameDate(periods[i], periods[i+1]) {
			group = append(group, periods[i])
			i++
		}
		p := periods[i]
		if p.IsDaytime && i+1 < len(periods) && closesPair(p, periods[i+1]) {
			group = append(group, p, periods[i+1])
			i += 2
		} else {
			group = append(group, p)
			i++
		}
		groups = append(groups, group)
	}
	return groups
}

func sameDate(a, b RawPeriod) bool {
	if a.Start.IsZero() || b.Start.IsZero() {
		return false
	}
	return startOfDay(a.Start).Equal(startOfDay(b.Start.In(a.Start.Location())))
}

func closesPair(day, next RawPeriod) bool {
	if next.IsDaytime {
		return false
	}
	if day.Number != 0 && next.Number != 0 {
		return next.Number == day.Number+1
	}
	return true
}

// Daily builds one DailyForecast per day/night group, in source order.
// seed scopes the deterministic record ids (typically the grid key).
func (n Normalizer) Daily(seed string, periods []RawPeriod) []DailyForecast {
	groups := PairPeriods(periods)
	out := make([]DailyForecast, 0, len(groups))
	for _, g := range groups {
		out = append(out, n.dailyFromGroup(seed, g))
	}
	return out
}

func (n Normalizer) dailyFromGroup(seed string, group []RawPeriod) DailyForecast {
	// The last night wins, so an overnight period only supplies the low
	// when the day has no evening partner.
	var day, night *RawPeriod
	for i := range group {
		if group[i].IsDaytime {
			day = &group[i]
		} else {
			night = &group[i]
		}
	}

	unit := n.units()
	primary := day
	if primary == nil {
		primary = night
	}

	high := ConvertTemperature(primary.Temperature, primary.TemperatureUnit, unit)
	var low float64
	switch {
	case day != nil && night != nil:
		low = ConvertTemperature(night.Temperature, night.TemperatureUnit, unit)
	case day == nil:
		low = high
	default:
		low = high - fallbackLowDelta
	}

	precip := 0
	for _, p := range group {
		if c := PrecipitationFromText(p.PrecipChance, p.DetailedForecast, p.ShortForecast); c > precip {
			precip = c
		}
	}

	rh := primary.RelativeHumidity
	if rh == nil && night != nil {
		rh = night.RelativeHumidity
	}
	humidity := HumidityFromText(rh, primary.ShortForecast+" "+primary.DetailedForecast)
	sky := SkyCoverFromText(primary.ShortForecast)

	var dewpoint *float64
	if primary.DewpointC != nil {
		d := ConvertTemperature(*primary.DewpointC, Celsius, unit)
		dewpoint = &d
	}

	date := startOfDay(primary.Start)
	label := primary.Name
	if label == "" {
		label = date.Format("Monday")
	}

	return DailyForecast{
		ID:               dailyID(seed, date),
		ShortLabel:       date.Format("Mon"),
		FullLabel:        label,
		Date:             date,
		TempHigh:         high,
		TempLow:          low,
		Unit:             unit,
		PrecipChance:     precip,
		UVIndex:          UVIndexFromText(primary.DetailedForecast, primary.ShortForecast),
		WindSpeed:        ParseWindSpeed(primary.WindSpeed),
		WindDirection:    primary.WindDirection,
		Icon:             ConditionFromIcon(primary.Icon, primary.ShortForecast),
		ShortForecast:    primary.ShortForecast,
		DetailedForecast: primary.DetailedForecast,
		Humidity:         &humidity,
		Dewpoint:         dewpoint,
		SkyCover:         &sky,
	}
}

// Hourly converts periods into at most MaxHourly entries in chronological order,
// starting with the first period that has not ended by now.
func (n Normalizer) Hourly(periods []RawPeriod, now time.Time) []HourlyForecast {
	sorted := append([]RawPeriod(nil), periods...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	unit := n.units()
	out := make([]HourlyForecast, 0, MaxHourly)
	for _, p := range sorted {
		if len(out) == MaxHourly {
			break
		}
		if !p.End.IsZero() && !p.End.After(now) {
			continue
		}
		out = append(out, HourlyForecast{
			ID:            len(out),
			TimeLabel:     hourLabel(p),
			Time:          p.Start,
			Temperature:   ConvertTemperature(p.Temperature, p.TemperatureUnit, unit),
			Unit:          unit,
			Icon:          ConditionFromIcon(p.Icon, p.ShortForecast),
			ShortForecast: p.ShortForecast,
			WindSpeed:     ParseWindSpeed(p.WindSpeed),
			WindDirection: p.WindDirection,
			IsDaytime:     p.IsDaytime,
		})
	}
	return out
}

func hourLabel(p RawPeriod) string {
	if p.Start.IsZero() {
		return p.Name
	}
	return p.Start.Format("3 PM")
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dailyID(seed string, date time.Time) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed+"/"+date.Format("2006-01-02"))).String()
}
