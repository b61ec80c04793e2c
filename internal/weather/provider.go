package weather

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a station, location or observation does not exist.
var ErrNotFound = errors.New("not found")

// Feed abstracts the upstream source of station measurements (e.g. Buienradar).
type Feed interface {
	Name() string
	FetchStations(ctx context.Context) ([]FeedRecord, error)
}

// StationBatchItem is one station upsert plus the observation that goes with it.
type StationBatchItem struct {
	Station     Station
	Observation Observation
}

// Store is the contract the SQL and in-memory stores satisfy.
type Store interface {
	Init(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	// SaveBatch upserts every station and inserts its observation unless one
	// with the same station and timestamp already exists. It returns the
	// number of observations actually inserted.
	SaveBatch(ctx context.Context, items []StationBatchItem) (int, error)

	Stations(ctx context.Context) ([]Station, error)
	StationByName(ctx context.Context, name string) (Station, error)
	LatestObservation(ctx context.Context, stationID int) (Observation, error)
	History(ctx context.Context, stationID int, from, to time.Time) ([]Observation, error)

	LocationByName(ctx context.Context, name string) (Location, error)
	Locations(ctx context.Context, limit, offset int) ([]Location, error)
	SaveLocations(ctx context.Context, locs []Location) error
}

// Publisher pushes freshly stored observations to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, items []StationObservation) error
}

// Geocoder resolves a place name the location catalogue does not know.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (Location, error)
}
