package geo

import (
	"errors"
	"math"
)

// ErrNoSamples is returned when an interpolation has nothing to work with.
var ErrNoSamples = errors.New("no samples to interpolate")

// Sample is a known value at a point.
type Sample struct {
	Point
	Value float64
}

// DefaultPower is the IDW exponent used by the dashboard map.
const DefaultPower = 2.0

// IDW estimates the value at p from samples using inverse-distance weighting
// with the given power. Distances are great-circle km. A sample that sits
// exactly on p is returned as-is.
func IDW(p Point, samples []Sample, power float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}
	if power <= 0 {
		power = DefaultPower
	}

	var weighted, weights float64
	for _, s := range samples {
		d := Haversine(p, s.Point)
		if d < 1e-9 {
			return s.Value, nil
		}
		w := 1 / math.Pow(d, power)
		weighted += s.Value * w
		weights += w
	}
	return weighted / weights, nil
}

// Bounds is a lat/lon rectangle.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Netherlands covers every Buienradar station with a small margin.
var Netherlands = Bounds{MinLat: 50.7, MaxLat: 53.7, MinLon: 3.2, MaxLon: 7.3}

// Grid evaluates IDW on a width x height raster covering b. Row 0 is the
// northern edge. Values are returned row-major.
func Grid(b Bounds, width, height int, samples []Sample, power float64) ([]float64, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("grid dimensions must be positive")
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	out := make([]float64, width*height)
	for y := 0; y < height; y++ {
		lat := b.MaxLat - (b.MaxLat-b.MinLat)*(float64(y)+0.5)/float64(height)
		for x := 0; x < width; x++ {
			lon := b.MinLon + (b.MaxLon-b.MinLon)*(float64(x)+0.5)/float64(width)
			v, err := IDW(Point{Lat: lat, Lon: lon}, samples, power)
			if err != nil {
				return nil, err
			}
			out[y*width+x] = v
		}
	}
	return out, nil
}
