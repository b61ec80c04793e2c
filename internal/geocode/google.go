package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weatherservice/internal/weather"
)

// lookupFunc matches geocoder.Geocoding.
type lookupFunc func(geocoder.Address) (geocoder.Location, error)

// GoogleGeocoder resolves Dutch place names through the Google Geocoding
// API. It is used only when the location catalogue has no match.
type GoogleGeocoder struct {
	country string
	lookup  lookupFunc
}

// NewGoogleGeocoder sets the process-wide API key of the geocoder package.
func NewGoogleGeocoder(apiKey string) (*GoogleGeocoder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("geocode: api key is required")
	}
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{country: "Netherlands", lookup: geocoder.Geocoding}, nil
}

// Geocode returns a Location for name. The call itself cannot be cancelled;
// ctx only stops the wait.
func (g *GoogleGeocoder) Geocode(ctx context.Context, name string) (weather.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return weather.Location{}, errors.New("geocode: empty name")
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	ch := make(chan result, 1)
	go func() {
		loc, err := g.lookup(geocoder.Address{City: name, Country: g.country})
		ch <- result{loc, err}
	}()

	select {
	case <-ctx.Done():
		return weather.Location{}, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return weather.Location{}, r.err
		}
		if r.loc.Latitude == 0 && r.loc.Longitude == 0 {
			return weather.Location{}, weather.ErrNotFound
		}
		return weather.Location{
			Woonplaats: name,
			Lat:        r.loc.Latitude,
			Lon:        r.loc.Longitude,
			Soort:      "geocoded",
		}, nil
	}
}
