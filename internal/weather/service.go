package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/i474232898/weatherservice/internal/geo"
	"github.com/i474232898/weatherservice/internal/metrics"
)

// ErrInvalidArgument marks caller mistakes such as a blank location name.
var ErrInvalidArgument = errors.New("invalid argument")

// MaxLocations caps a single page of the location catalogue.
const MaxLocations = 5000

const stationsWithLatestKey = "stations-with-latest"

// Options holds the optional collaborators of a Service.
type Options struct {
	Logger    *slog.Logger
	Metrics   *metrics.Collector
	Publisher Publisher
	Geocoder  Geocoder
	// CacheTTL bounds how long read results are reused; <= 0 disables caching.
	CacheTTL time.Duration
	// Now is overridable in tests.
	Now func() time.Time
}

// Service coordinates feed collection and the read side used by the API.
type Service struct {
	store     Store
	feed      Feed
	logger    *slog.Logger
	metrics   *metrics.Collector
	publisher Publisher
	geocoder  Geocoder
	cache     *cache.Cache
	now       func() time.Time
}

// NewService creates a new Service.
func NewService(store Store, feed Feed, opts Options) *Service {
	s := &Service{
		store:     store,
		feed:      feed,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
		geocoder:  opts.Geocoder,
		now:       opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.CacheTTL > 0 {
		s.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return s
}

// CollectAndStore fetches the feed, drops records without a temperature and
// saves the rest as one batch.
func (s *Service) CollectAndStore(ctx context.Context) (CollectionResult, error) {
	timer := s.metrics.StartCollection()
	if s.feed == nil {
		return CollectionResult{}, errors.New("no weather feed configured")
	}

	records, err := s.feed.FetchStations(ctx)
	if err != nil {
		s.recordCollection(0, 0, 0, err)
		return CollectionResult{}, fmt.Errorf("fetch %s: %w", s.feed.Name(), err)
	}

	now := s.now()
	batch := make([]StationBatchItem, 0, len(records))
	published := make([]StationObservation, 0, len(records))
	for _, r := range records {
		if !r.Valid() {
			s.logger.Debug("skipping station without temperature", "station_id", r.StationID, "station", r.StationName)
			continue
		}
		st, obs := r.Split(now)
		batch = append(batch, StationBatchItem{Station: st, Observation: obs})
		published = append(published, StationObservation{Station: st, Observation: obs})
	}
	res := CollectionResult{Total: len(records), Valid: len(batch)}

	stored := 0
	if len(batch) > 0 {
		stored, err = s.store.SaveBatch(ctx, batch)
		if err != nil {
			s.recordCollection(res.Valid, res.Invalid(), 0, err)
			return res, fmt.Errorf("save batch: %w", err)
		}
	}
	s.invalidate()

	if s.publisher != nil && len(published) > 0 {
		if err := s.publisher.Publish(ctx, published); err != nil {
			s.logger.Warn("publishing observations failed", "error", err)
		}
	}

	s.recordCollection(res.Valid, res.Invalid(), stored, nil)
	elapsed := timer.Stop()
	s.logger.Info("collection finished",
		"feed", s.feed.Name(),
		"total", res.Total,
		"valid", res.Valid,
		"invalid", res.Invalid(),
		"stored", stored,
		"duration_ms", elapsed.Milliseconds(),
	)
	return res, nil
}

func (s *Service) recordCollection(valid, invalid, stored int, err error) {
	if s.metrics != nil {
		s.metrics.RecordCollection(valid, invalid, stored, err)
	}
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

func (s *Service) cached(key string) (interface{}, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(key)
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(ok)
	}
	return v, ok
}

func (s *Service) remember(key string, v interface{}) {
	if s.cache != nil {
		s.cache.Set(key, v, cache.DefaultExpiration)
	}
}

// ListStationsWithLatest returns every station that has an observation,
// paired with its newest one.
func (s *Service) ListStationsWithLatest(ctx context.Context) ([]StationObservation, error) {
	if v, ok := s.cached(stationsWithLatestKey); ok {
		return v.([]StationObservation), nil
	}

	stations, err := s.store.Stations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	out := make([]StationObservation, 0, len(stations))
	for _, st := range stations {
		obs, err := s.store.LatestObservation(ctx, st.StationID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("latest observation for %d: %w", st.StationID, err)
		}
		out = append(out, StationObservation{Station: st, Observation: obs})
	}

	s.remember(stationsWithLatestKey, out)
	return out, nil
}

// ListStations returns the stations that have reported at least once.
func (s *Service) ListStations(ctx context.Context) ([]Station, error) {
	pairs, err := s.ListStationsWithLatest(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Station, len(pairs))
	for i, p := range pairs {
		out[i] = p.Station
	}
	return out, nil
}

// StationByName finds the first station whose name contains name. The
// observation is nil when the station has not reported yet.
func (s *Service) StationByName(ctx context.Context, name string) (Station, *Observation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Station{}, nil, fmt.Errorf("%w: station name is required", ErrInvalidArgument)
	}
	st, err := s.store.StationByName(ctx, name)
	if err != nil {
		return Station{}, nil, err
	}
	obs, err := s.latest(ctx, st.StationID)
	if err != nil {
		return Station{}, nil, err
	}
	return st, obs, nil
}

func (s *Service) latest(ctx context.Context, stationID int) (*Observation, error) {
	obs, err := s.store.LatestObservation(ctx, stationID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest observation for %d: %w", stationID, err)
	}
	return &obs, nil
}

// History returns the observations of a station in [from, to], newest first.
func (s *Service) History(ctx context.Context, stationID int, from, to time.Time) ([]Observation, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end must not be before start", ErrInvalidArgument)
	}
	return s.store.History(ctx, stationID, from.UTC(), to.UTC())
}

// Nearest resolves a place name and returns the closest station to it.
func (s *Service) Nearest(ctx context.Context, locationName string) (NearestResult, error) {
	locationName = strings.TrimSpace(locationName)
	if locationName == "" {
		return NearestResult{}, fmt.Errorf("%w: location is required", ErrInvalidArgument)
	}

	loc, err := s.resolveLocation(ctx, locationName)
	if err != nil {
		return NearestResult{}, err
	}

	stations, err := s.store.Stations(ctx)
	if err != nil {
		return NearestResult{}, fmt.Errorf("list stations: %w", err)
	}
	points := make([]geo.Point, len(stations))
	for i, st := range stations {
		points[i] = geo.Point{Lat: st.Lat, Lon: st.Lon}
	}
	idx, dist := geo.Nearest(geo.Point{Lat: loc.Lat, Lon: loc.Lon}, points)
	if idx < 0 {
		return NearestResult{}, fmt.Errorf("%w: no stations", ErrNotFound)
	}

	obs, err := s.latest(ctx, stations[idx].StationID)
	if err != nil {
		return NearestResult{}, err
	}
	return NearestResult{
		Station:     stations[idx],
		Observation: obs,
		Location:    loc,
		DistanceKm:  dist,
	}, nil
}

func (s *Service) resolveLocation(ctx context.Context, name string) (Location, error) {
	loc, err := s.store.LocationByName(ctx, name)
	if err == nil {
		return loc, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Location{}, fmt.Errorf("lookup location %q: %w", name, err)
	}
	if s.geocoder == nil {
		return Location{}, fmt.Errorf("%w: location %q", ErrNotFound, name)
	}

	loc, gerr := s.geocoder.Geocode(ctx, name)
	if gerr != nil {
		s.logger.Warn("geocoding failed", "location", name, "error", gerr)
		return Location{}, fmt.Errorf("%w: location %q", ErrNotFound, name)
	}
	return loc, nil
}

// Locations pages through the catalogue. A limit above MaxLocations is
// capped; a limit <= 0 yields an empty page.
func (s *Service) Locations(ctx context.Context, limit, offset int) ([]Location, error) {
	if limit <= 0 {
		return []Location{}, nil
	}
	if limit > MaxLocations {
		limit = MaxLocations
	}
	if offset < 0 {
		offset = 0
	}
	key := "locations:" + strconv.Itoa(limit) + ":" + strconv.Itoa(offset)
	if v, ok := s.cached(key); ok {
		return v.([]Location), nil
	}
	locs, err := s.store.Locations(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	s.remember(key, locs)
	return locs, nil
}

func (s *Service) samples(ctx context.Context, field Field) ([]geo.Sample, error) {
	pairs, err := s.ListStationsWithLatest(ctx)
	if err != nil {
		return nil, err
	}
	samples := make([]geo.Sample, 0, len(pairs))
	for _, p := range pairs {
		v, ok := field.Value(p.Observation)
		if !ok {
			continue
		}
		samples = append(samples, geo.Sample{
			Point: geo.Point{Lat: p.Station.Lat, Lon: p.Station.Lon},
			Value: v,
		})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no %s readings", ErrNotFound, field)
	}
	return samples, nil
}

// Estimate is an interpolated value at a point.
type Estimate struct {
	Field   Field   `json:"field"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Value   float64 `json:"value"`
	Samples int     `json:"samples"`
}

// Interpolate estimates field at (lat, lon) by inverse distance weighting
// over the latest observation of every station.
func (s *Service) Interpolate(ctx context.Context, lat, lon float64, field Field) (Estimate, error) {
	samples, err := s.samples(ctx, field)
	if err != nil {
		return Estimate{}, err
	}
	v, err := geo.IDW(geo.Point{Lat: lat, Lon: lon}, samples, geo.DefaultPower)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Field: field, Lat: lat, Lon: lon, Value: v, Samples: len(samples)}, nil
}

// Raster is an IDW grid over Bounds, row-major with row 0 at the north edge.
type Raster struct {
	Field  Field
	Bounds geo.Bounds
	Width  int
	Height int
	Values []float64
	Min    float64
	Max    float64
}

// Raster interpolates field over the Netherlands bounding box.
func (s *Service) Raster(ctx context.Context, field Field, width, height int) (Raster, error) {
	if width <= 0 || height <= 0 {
		return Raster{}, fmt.Errorf("%w: raster size must be positive", ErrInvalidArgument)
	}
	samples, err := s.samples(ctx, field)
	if err != nil {
		return Raster{}, err
	}
	values, err := geo.Grid(geo.Netherlands, width, height, samples, geo.DefaultPower)
	if err != nil {
		return Raster{}, err
	}
	r := Raster{Field: field, Bounds: geo.Netherlands, Width: width, Height: height, Values: values}
	r.Min, r.Max = samples[0].Value, samples[0].Value
	for _, smp := range samples[1:] {
		if smp.Value < r.Min {
			r.Min = smp.Value
		}
		if smp.Value > r.Max {
			r.Max = smp.Value
		}
	}
	return r, nil
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
