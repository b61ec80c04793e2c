package render

import (
	"bytes"
	"errors"
	"math"

	"github.com/fogleman/gg"

	"github.com/i474232898/weatherservice/internal/geo"
	"github.com/i474232898/weatherservice/internal/weather"
)

// ramp runs from cold blue through green and yellow to red.
var ramp = [][3]float64{
	{0.19, 0.21, 0.58},
	{0.27, 0.46, 0.71},
	{0.45, 0.68, 0.82},
	{0.67, 0.85, 0.91},
	{0.99, 0.88, 0.56},
	{0.99, 0.68, 0.38},
	{0.96, 0.43, 0.26},
	{0.84, 0.19, 0.15},
}

// Color maps t in [0, 1] onto the ramp.
func Color(t float64) (r, g, b float64) {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	pos := t * float64(len(ramp)-1)
	i := int(math.Floor(pos))
	if i >= len(ramp)-1 {
		c := ramp[len(ramp)-1]
		return c[0], c[1], c[2]
	}
	f := pos - float64(i)
	a, c := ramp[i], ramp[i+1]
	return a[0] + (c[0]-a[0])*f, a[1] + (c[1]-a[1])*f, a[2] + (c[2]-a[2])*f
}

// HeatMap draws r as a PNG with each raster cell scale pixels wide and
// marks the given station positions.
func HeatMap(r weather.Raster, scale int, stations []weather.Station) ([]byte, error) {
	if r.Width <= 0 || r.Height <= 0 || len(r.Values) != r.Width*r.Height {
		return nil, errors.New("render: raster is empty or inconsistent")
	}
	if scale <= 0 {
		scale = 1
	}

	dc := gg.NewContext(r.Width*scale, r.Height*scale)
	span := r.Max - r.Min
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			t := 0.5
			if span > 0 {
				t = (r.Values[y*r.Width+x] - r.Min) / span
			}
			dc.SetRGB(Color(t))
			dc.DrawRectangle(float64(x*scale), float64(y*scale), float64(scale), float64(scale))
			dc.Fill()
		}
	}

	dc.SetRGB(0, 0, 0)
	for _, st := range stations {
		px, py, ok := project(r.Bounds, st.Lat, st.Lon, dc.Width(), dc.Height())
		if !ok {
			continue
		}
		dc.DrawCircle(px, py, 3)
		dc.Fill()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// project maps a coordinate into pixel space; row 0 is the northern edge.
func project(b geo.Bounds, lat, lon float64, width, height int) (float64, float64, bool) {
	if lat < b.MinLat || lat > b.MaxLat || lon < b.MinLon || lon > b.MaxLon {
		return 0, 0, false
	}
	x := (lon - b.MinLon) / (b.MaxLon - b.MinLon) * float64(width)
	y := (b.MaxLat - lat) / (b.MaxLat - b.MinLat) * float64(height)
	return x, y, true
}
