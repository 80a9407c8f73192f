package domain

import (
	"fmt"
	"math"
)

// Immutable geographic coordinates (latitude, longitude).
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates fall inside the WGS84 range.
// The exact (0, 0) point is treated as a missing location because that is
// what broken geocoding upstream produces in practice.
func (c Coordinates) Valid() bool {
	if c.Lat == 0 && c.Lng == 0 {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Return coordinates as [lng, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lng, c.Lat} }

// CacheKey rounds the coordinates to the given number of decimal degrees so
// that near-duplicate points collapse into one cache entry. Four decimals is
// roughly 11 meters at the equator.
func (c Coordinates) CacheKey(precision int) string {
	p := math.Pow10(precision)
	lat := math.Round(c.Lat*p) / p
	lng := math.Round(c.Lng*p) / p
	return fmt.Sprintf("%.*f,%.*f", precision, lat, precision, lng)
}

const earthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b Coordinates) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
