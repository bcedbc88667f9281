package core

import (
	"fmt"
	"math"
)

// earthRadiusKm is the mean radius of the Earth used for great-circle math.
const earthRadiusKm = 6371.0

// Coordinate is a geographic point. Elevation is carried for display only
// and never participates in distance calculations.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation,omitempty"`
}

// Validate checks that the coordinate lies within valid lat/lon ranges
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return &ValidationError{Field: "latitude", Reason: fmt.Sprintf("latitude must be in [-90, 90], got %v", c.Latitude)}
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return &ValidationError{Field: "longitude", Reason: fmt.Sprintf("longitude must be in [-180, 180], got %v", c.Longitude)}
	}
	return nil
}

// HaversineKm returns the great-circle distance in kilometers between two
// coordinates. Elevation is ignored.
func HaversineKm(a, b Coordinate) float64 {
	latA := a.Latitude * math.Pi / 180
	latB := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLon*sinLon

	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
