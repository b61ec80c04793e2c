package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/i474232898/weatherservice/internal/geo"
	"github.com/i474232898/weatherservice/internal/weather"
)

func TestColorEnds(t *testing.T) {
	r, g, b := Color(0)
	if r != ramp[0][0] || g != ramp[0][1] || b != ramp[0][2] {
		t.Fatalf("Color(0) = %v %v %v", r, g, b)
	}
	last := ramp[len(ramp)-1]
	r, g, b = Color(2)
	if r != last[0] || g != last[1] || b != last[2] {
		t.Fatalf("Color(2) = %v %v %v, want clamped", r, g, b)
	}
}

func TestHeatMap(t *testing.T) {
	raster := weather.Raster{
		Field:  weather.FieldTemperature,
		Bounds: geo.Netherlands,
		Width:  4,
		Height: 3,
		Values: []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21},
		Min:    10,
		Max:    21,
	}
	stations := []weather.Station{
		{StationID: 6260, Lat: 52.1, Lon: 5.18},
		{StationID: 1, Lat: 10, Lon: 10},
	}

	raw, err := HeatMap(raster, 5, stations)
	if err != nil {
		t.Fatalf("HeatMap: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 15 {
		t.Fatalf("image size = %v, want 20x15", b)
	}

	if _, err := HeatMap(weather.Raster{Width: 2, Height: 2, Values: []float64{1}}, 1, nil); err == nil {
		t.Fatalf("expected inconsistent raster error")
	}
}
