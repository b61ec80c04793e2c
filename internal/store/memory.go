package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/weatherservice/internal/weather"
)

// ErrNotFound is returned when no station, observation or location matches.
var ErrNotFound = weather.ErrNotFound

// stationHistory holds the time-ordered observations of one station.
type stationHistory struct {
	station      weather.Station
	observations []weather.Observation
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: station id
	data map[int]*stationHistory

	locations []weather.Location
	nextObsID int64
	nextLocID int64

	// max number of observations kept per station; <= 0 is unlimited
	maxHistory int
}

// NewMemoryStore creates a new MemoryStore.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{
		data:       make(map[int]*stationHistory),
		maxHistory: maxHistory,
	}
}

func (s *MemoryStore) Init(context.Context) error { return nil }
func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }

// SaveBatch upserts stations and appends observations that are not yet stored.
func (s *MemoryStore) SaveBatch(ctx context.Context, items []weather.StationBatchItem) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		history, ok := s.data[it.Station.StationID]
		if !ok {
			history = &stationHistory{}
			s.data[it.Station.StationID] = history
		}
		history.station = it.Station

		obs := it.Observation
		obs.StationID = it.Station.StationID
		if history.has(obs.Timestamp) {
			continue
		}
		s.nextObsID++
		obs.ID = s.nextObsID
		history.insert(obs)
		inserted++

		// Enforce retention by count.
		if s.maxHistory > 0 && len(history.observations) > s.maxHistory {
			over := len(history.observations) - s.maxHistory
			history.observations = history.observations[over:]
		}
	}
	return inserted, nil
}

func (h *stationHistory) has(ts time.Time) bool {
	i := sort.Search(len(h.observations), func(i int) bool {
		return !h.observations[i].Timestamp.Before(ts)
	})
	return i < len(h.observations) && h.observations[i].Timestamp.Equal(ts)
}

// insert keeps observations ordered by timestamp.
func (h *stationHistory) insert(obs weather.Observation) {
	i := sort.Search(len(h.observations), func(i int) bool {
		return h.observations[i].Timestamp.After(obs.Timestamp)
	})
	h.observations = append(h.observations, weather.Observation{})
	copy(h.observations[i+1:], h.observations[i:])
	h.observations[i] = obs
}

func (s *MemoryStore) Stations(context.Context) ([]weather.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]weather.Station, 0, len(s.data))
	for _, h := range s.data {
		out = append(out, h.station)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationID < out[j].StationID })
	return out, nil
}

// StationByName returns the lowest-id station whose name contains name, ignoring case.
func (s *MemoryStore) StationByName(ctx context.Context, name string) (weather.Station, error) {
	stations, _ := s.Stations(ctx)
	needle := strings.ToLower(name)
	for _, st := range stations {
		if strings.Contains(strings.ToLower(st.StationName), needle) {
			return st, nil
		}
	}
	return weather.Station{}, ErrNotFound
}

// LatestObservation returns the most recent observation for a station.
func (s *MemoryStore) LatestObservation(_ context.Context, stationID int) (weather.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[stationID]
	if !ok || len(history.observations) == 0 {
		return weather.Observation{}, ErrNotFound
	}
	return history.observations[len(history.observations)-1], nil
}

// History returns observations between from and to (inclusive), newest first.
func (s *MemoryStore) History(_ context.Context, stationID int, from, to time.Time) ([]weather.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[stationID]
	if !ok {
		return []weather.Observation{}, nil
	}

	result := []weather.Observation{}
	for i := len(history.observations) - 1; i >= 0; i-- {
		ts := history.observations[i].Timestamp
		if !ts.Before(from) && !ts.After(to) {
			result = append(result, history.observations[i])
		}
	}
	return result, nil
}

// LocationByName tries an exact, then prefix, then substring match on woonplaats.
func (s *MemoryStore) LocationByName(_ context.Context, name string) (weather.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return weather.Location{}, ErrNotFound
	}
	matchers := []func(string) bool{
		func(v string) bool { return v == needle },
		func(v string) bool { return strings.HasPrefix(v, needle) },
		func(v string) bool { return strings.Contains(v, needle) },
	}
	for _, match := range matchers {
		for _, loc := range s.locations {
			if match(strings.ToLower(loc.Woonplaats)) {
				return loc, nil
			}
		}
	}
	return weather.Location{}, ErrNotFound
}

// Locations pages through the catalogue ordered by woonplaats.
func (s *MemoryStore) Locations(_ context.Context, limit, offset int) ([]weather.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := make([]weather.Location, len(s.locations))
	copy(sorted, s.locations)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Woonplaats < sorted[j].Woonplaats })

	if offset < 0 {
		offset = 0
	}
	if offset >= len(sorted) {
		return []weather.Location{}, nil
	}
	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return sorted[offset:end], nil
}

func (s *MemoryStore) SaveLocations(_ context.Context, locs []weather.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, loc := range locs {
		s.nextLocID++
		loc.ID = s.nextLocID
		s.locations = append(s.locations, loc)
	}
	return nil
}

func (s *MemoryStore) CountLocations(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.locations), nil
}
