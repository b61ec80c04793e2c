// Package geo holds the small amount of spherical geometry the service needs:
// great-circle distance, nearest-point search and inverse-distance weighting.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for all distances.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Asin(math.Min(1, math.Sqrt(h)))
	return EarthRadiusKm * c
}

// Nearest returns the index of the candidate closest to origin and its
// distance in km. It returns -1 when candidates is empty. Ties keep the
// earliest candidate.
func Nearest(origin Point, candidates []Point) (int, float64) {
	best := -1
	bestDist := math.MaxFloat64
	for i, c := range candidates {
		d := Haversine(origin, c)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, bestDist
}

func toRadians(deg float64) float64 {
	return deg * (math.Pi / 180)
}
