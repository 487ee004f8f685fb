// Package geo computes great-circle distances between device and candidate
// coordinates.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by HaversineKm.
const EarthRadiusKm = 6371.0

// Coordinate is a WGS 84 point in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// FallbackLocation is substituted when the device cannot report a position.
// It points at Uruará (PA), the centre of the cocoa belt the app serves.
var FallbackLocation = Coordinate{Latitude: -3.7156, Longitude: -53.7397}

// HaversineKm returns the great-circle distance between a and b in kilometers.
func HaversineKm(a, b Coordinate) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// Rounding can push h a hair past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistanceToCandidate returns nil when the candidate has no recorded position.
// A nil distance means "unknown", never zero.
func DistanceToCandidate(user Coordinate, candidate *Coordinate) *float64 {
	if candidate == nil {
		return nil
	}
	d := HaversineKm(user, *candidate)
	return &d
}

// Resolve returns loc, or fallback when the device reported no position.
func Resolve(loc *Coordinate, fallback Coordinate) Coordinate {
	if loc == nil {
		return fallback
	}
	return *loc
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
