package geocode

import (
	"context"
	"errors"
	"testing"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weatherservice/internal/weather"
)

func TestGeocode(t *testing.T) {
	var got geocoder.Address
	g := &GoogleGeocoder{country: "Netherlands", lookup: func(a geocoder.Address) (geocoder.Location, error) {
		got = a
		return geocoder.Location{Latitude: 52.30, Longitude: 4.86}, nil
	}}

	loc, err := g.Geocode(context.Background(), " Amstelveen ")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if got.City != "Amstelveen" || got.Country != "Netherlands" {
		t.Fatalf("unexpected address %+v", got)
	}
	if loc.Woonplaats != "Amstelveen" || loc.Lat != 52.30 || loc.Lon != 4.86 {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestGeocodeNoResult(t *testing.T) {
	g := &GoogleGeocoder{lookup: func(geocoder.Address) (geocoder.Location, error) {
		return geocoder.Location{}, nil
	}}
	if _, err := g.Geocode(context.Background(), "Atlantis"); !errors.Is(err, weather.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestGeocodeCancelled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	g := &GoogleGeocoder{lookup: func(geocoder.Address) (geocoder.Location, error) {
		<-block
		return geocoder.Location{}, nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Geocode(ctx, "Utrecht"); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestNewGoogleGeocoderRequiresKey(t *testing.T) {
	if _, err := NewGoogleGeocoder(" "); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
