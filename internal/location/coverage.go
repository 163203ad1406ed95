package location

import (
	"math"

	"github.com/i474232898/weather-snapshot/internal/weather"
)

const earthRadiusKm = 6371.0

// DefaultTerritoryRadiusKm is how close to a territory center a coordinate must be to count as covered.
const DefaultTerritoryRadiusKm = 100.0

// BoundingBox is an inclusive latitude/longitude rectangle.
type BoundingBox struct {
	MinLat float64 `yaml:"min_lat" validate:"min=-90,max=90"`
	MaxLat float64 `yaml:"max_lat" validate:"min=-90,max=90,gtefield=MinLat"`
	MinLon float64 `yaml:"min_lon" validate:"min=-180,max=180"`
	MaxLon float64 `yaml:"max_lon" validate:"min=-180,max=180,gtefield=MinLon"`
}

func (b BoundingBox) Contains(c weather.Coordinate) bool {
	return c.Latitude >= b.MinLat && c.Latitude <= b.MaxLat &&
		c.Longitude >= b.MinLon && c.Longitude <= b.MaxLon
}

// NamedPoint is a labelled coordinate such as a territory center.
type NamedPoint struct {
	Name   string             `yaml:"name"`
	Center weather.Coordinate `yaml:"center"`
}

// Coverage is the static geometry of the primary provider.
type Coverage struct {
	Box         BoundingBox  `yaml:"bounding_box"`
	Territories []NamedPoint `yaml:"territories"`
	// ReferencePoints are extra candidates for NearestCoveredPoint along the box edges.
	ReferencePoints []NamedPoint       `yaml:"reference_points"`
	CentralFallback weather.Coordinate `yaml:"central_fallback"`
	RadiusKm        float64            `yaml:"territory_radius_km" validate:"gte=0"`
}

// DefaultCoverage describes the contiguous United States plus outlying states and territories.
func DefaultCoverage() Coverage {
	return Coverage{
		Box: BoundingBox{MinLat: 24.396308, MaxLat: 49.384358, MinLon: -125.0, MaxLon: -66.93457},
		Territories: []NamedPoint{
			{Name: "Alaska", Center: weather.Coordinate{Latitude: 64.2008, Longitude: -149.4937}},
			{Name: "Hawaii", Center: weather.Coordinate{Latitude: 19.8968, Longitude: -155.5828}},
			{Name: "Puerto Rico", Center: weather.Coordinate{Latitude: 18.2208, Longitude: -66.5901}},
			{Name: "Guam", Center: weather.Coordinate{Latitude: 13.4443, Longitude: 144.7937}},
			{Name: "U.S. Virgin Islands", Center: weather.Coordinate{Latitude: 18.3358, Longitude: -64.8963}},
			{Name: "American Samoa", Center: weather.Coordinate{Latitude: -14.2710, Longitude: -170.1322}},
			{Name: "Northern Mariana Islands", Center: weather.Coordinate{Latitude: 15.0979, Longitude: 145.6739}},
		},
		ReferencePoints: []NamedPoint{
			{Name: "Seattle", Center: weather.Coordinate{Latitude: 47.6062, Longitude: -122.3321}},
			{Name: "San Diego", Center: weather.Coordinate{Latitude: 32.7157, Longitude: -117.1611}},
			{Name: "El Paso", Center: weather.Coordinate{Latitude: 31.7619, Longitude: -106.4850}},
			{Name: "Brownsville", Center: weather.Coordinate{Latitude: 25.9017, Longitude: -97.4975}},
			{Name: "Miami", Center: weather.Coordinate{Latitude: 25.7617, Longitude: -80.1918}},
			{Name: "Boston", Center: weather.Coordinate{Latitude: 42.3601, Longitude: -71.0589}},
			{Name: "Bangor", Center: weather.Coordinate{Latitude: 44.8012, Longitude: -68.7778}},
			{Name: "Detroit", Center: weather.Coordinate{Latitude: 42.3314, Longitude: -83.0458}},
			{Name: "Duluth", Center: weather.Coordinate{Latitude: 46.7867, Longitude: -92.1005}},
		},
		CentralFallback: weather.Coordinate{Latitude: 39.8283, Longitude: -98.5795},
		RadiusKm:        DefaultTerritoryRadiusKm,
	}
}

// candidates returns the points NearestCoveredPoint may choose from.
func (c Coverage) candidates() []weather.Coordinate {
	out := make([]weather.Coordinate, 0, len(c.Territories)+len(c.ReferencePoints))
	for _, t := range c.Territories {
		out = append(out, t.Center)
	}
	for _, p := range c.ReferencePoints {
		out = append(out, p.Center)
	}
	return out
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b weather.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
