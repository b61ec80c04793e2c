package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/i474232898/weatherservice/internal/metrics"
	"github.com/i474232898/weatherservice/internal/weather"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// SQLStore implements weather.Store on top of sqlx for mysql, sqlite3 and postgres.
type SQLStore struct {
	db      *sqlx.DB
	logger  *slog.Logger
	metrics *metrics.Collector
}

// NewSQLStore wraps an open connection. metrics may be nil.
func NewSQLStore(db *sqlx.DB, logger *slog.Logger, m *metrics.Collector) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{db: db, logger: logger, metrics: m}
}

// Init creates the tables for the connected dialect when they do not exist.
func (s *SQLStore) Init(ctx context.Context) error {
	raw, err := schemaFS.ReadFile("schema/" + s.db.DriverName() + ".sql")
	if err != nil {
		return fmt.Errorf("no schema for driver %q: %w", s.db.DriverName(), err)
	}
	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	s.logger.Info("database schema ready", "driver", s.db.DriverName())
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// observe times a query and counts it as an error when *errp is set on return.
func (s *SQLStore) observe(queryType string, errp *error) func() {
	timer := s.metrics.StartQuery(queryType)
	return func() {
		d := timer.Stop()
		if errp != nil && *errp != nil && !errors.Is(*errp, ErrNotFound) {
			if s.metrics != nil {
				s.metrics.RecordDBError(queryType)
			}
			s.logger.Error("db query failed", "query_type", queryType, "duration_ms", d.Milliseconds(), "error", *errp)
			return
		}
		s.logger.Debug("db query executed", "query_type", queryType, "duration_ms", d.Milliseconds())
	}
}

const (
	stationColumns     = "station_id, station_name, latitude, longitude, regio, last_updated"
	observationColumns = "id, station_id, weather_description, air_pressure, wind_direction, wind_direction_degrees, " +
		"temperature, ground_temperature, feel_temperature, humidity, wind_speed, wind_speed_bft, " +
		"rainfall_last_hour, sun_power, observed_at"
	locationColumns = "id, postcode, woonplaats, gemeente, provincie, latitude, longitude, soort"
)

// SaveBatch upserts stations and inserts new observations in one transaction.
func (s *SQLStore) SaveBatch(ctx context.Context, items []weather.StationBatchItem) (inserted int, err error) {
	defer s.observe("save_batch", &err)()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, it := range items {
		if err = upsertStation(ctx, tx, it.Station); err != nil {
			return 0, err
		}
		var ok bool
		ok, err = insertObservation(ctx, tx, it.Station.StationID, it.Observation)
		if err != nil {
			return 0, err
		}
		if ok {
			inserted++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func upsertStation(ctx context.Context, tx *sqlx.Tx, st weather.Station) error {
	var n int
	err := tx.GetContext(ctx, &n, tx.Rebind("SELECT COUNT(*) FROM stations WHERE station_id = ?"), st.StationID)
	if err != nil {
		return fmt.Errorf("lookup station %d: %w", st.StationID, err)
	}
	updated := st.LastUpdated.UTC()
	if n > 0 {
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE stations
			SET station_name = ?, latitude = ?, longitude = ?, regio = ?, last_updated = ?
			WHERE station_id = ?`),
			st.StationName, st.Lat, st.Lon, st.Regio, updated, st.StationID)
	} else {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO stations (`+stationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)`),
			st.StationID, st.StationName, st.Lat, st.Lon, st.Regio, updated)
	}
	if err != nil {
		return fmt.Errorf("upsert station %d: %w", st.StationID, err)
	}
	return nil
}

// insertObservation reports false when the (station, timestamp) pair already exists.
func insertObservation(ctx context.Context, tx *sqlx.Tx, stationID int, o weather.Observation) (bool, error) {
	ts := o.Timestamp.UTC().Truncate(time.Second)

	var n int
	err := tx.GetContext(ctx, &n,
		tx.Rebind("SELECT COUNT(*) FROM weather_data WHERE station_id = ? AND observed_at = ?"), stationID, ts)
	if err != nil {
		return false, fmt.Errorf("lookup observation %d@%s: %w", stationID, ts.Format(time.RFC3339), err)
	}
	if n > 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO weather_data (
			station_id, weather_description, air_pressure, wind_direction, wind_direction_degrees,
			temperature, ground_temperature, feel_temperature, humidity, wind_speed, wind_speed_bft,
			rainfall_last_hour, sun_power, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		stationID, o.WeatherDescription, o.AirPressure, o.WindDirection, o.WindDirectionDegrees,
		o.Temperature, o.GroundTemperature, o.FeelTemperature, o.Humidity, o.WindSpeed, o.WindSpeedBft,
		o.RainfallLastHour, o.SunPower, ts)
	if err != nil {
		return false, fmt.Errorf("insert observation %d: %w", stationID, err)
	}
	return true, nil
}

func (s *SQLStore) Stations(ctx context.Context) (out []weather.Station, err error) {
	defer s.observe("stations", &err)()

	out = []weather.Station{}
	if err = s.db.SelectContext(ctx, &out, "SELECT "+stationColumns+" FROM stations ORDER BY station_id"); err != nil {
		return nil, fmt.Errorf("select stations: %w", err)
	}
	for i := range out {
		out[i].LastUpdated = out[i].LastUpdated.UTC()
	}
	return out, nil
}

func (s *SQLStore) StationByName(ctx context.Context, name string) (st weather.Station, err error) {
	defer s.observe("station_by_name", &err)()

	q := s.db.Rebind("SELECT " + stationColumns + " FROM stations WHERE LOWER(station_name) LIKE LOWER(?) ESCAPE '!' ORDER BY station_id LIMIT 1")
	if err = s.db.GetContext(ctx, &st, q, "%"+escapeLike(name)+"%"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return weather.Station{}, ErrNotFound
		}
		return weather.Station{}, fmt.Errorf("select station %q: %w", name, err)
	}
	st.LastUpdated = st.LastUpdated.UTC()
	return st, nil
}

func (s *SQLStore) LatestObservation(ctx context.Context, stationID int) (o weather.Observation, err error) {
	defer s.observe("latest_observation", &err)()

	q := s.db.Rebind("SELECT " + observationColumns + " FROM weather_data WHERE station_id = ? ORDER BY observed_at DESC LIMIT 1")
	if err = s.db.GetContext(ctx, &o, q, stationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return weather.Observation{}, ErrNotFound
		}
		return weather.Observation{}, fmt.Errorf("select latest observation %d: %w", stationID, err)
	}
	o.Timestamp = o.Timestamp.UTC()
	return o, nil
}

func (s *SQLStore) History(ctx context.Context, stationID int, from, to time.Time) (out []weather.Observation, err error) {
	defer s.observe("history", &err)()

	out = []weather.Observation{}
	q := s.db.Rebind("SELECT " + observationColumns + ` FROM weather_data
		WHERE station_id = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at DESC`)
	if err = s.db.SelectContext(ctx, &out, q, stationID, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("select history %d: %w", stationID, err)
	}
	for i := range out {
		out[i].Timestamp = out[i].Timestamp.UTC()
	}
	return out, nil
}

// LocationByName tries an exact, then prefix, then substring match on woonplaats.
func (s *SQLStore) LocationByName(ctx context.Context, name string) (loc weather.Location, err error) {
	defer s.observe("location_by_name", &err)()

	name = strings.TrimSpace(name)
	if name == "" {
		return weather.Location{}, ErrNotFound
	}
	esc := escapeLike(name)
	attempts := []struct {
		where string
		arg   string
	}{
		{"LOWER(woonplaats) = LOWER(?)", name},
		{"LOWER(woonplaats) LIKE LOWER(?) ESCAPE '!'", esc + "%"},
		{"LOWER(woonplaats) LIKE LOWER(?) ESCAPE '!'", "%" + esc + "%"},
	}
	for _, a := range attempts {
		q := s.db.Rebind("SELECT " + locationColumns + " FROM locations WHERE " + a.where + " ORDER BY id LIMIT 1")
		err = s.db.GetContext(ctx, &loc, q, a.arg)
		if err == nil {
			return loc, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return weather.Location{}, fmt.Errorf("select location %q: %w", name, err)
		}
	}
	err = ErrNotFound
	return weather.Location{}, err
}

func (s *SQLStore) Locations(ctx context.Context, limit, offset int) (out []weather.Location, err error) {
	defer s.observe("locations", &err)()

	if offset < 0 {
		offset = 0
	}
	out = []weather.Location{}
	q := s.db.Rebind("SELECT " + locationColumns + " FROM locations ORDER BY woonplaats, id LIMIT ? OFFSET ?")
	if err = s.db.SelectContext(ctx, &out, q, limit, offset); err != nil {
		return nil, fmt.Errorf("select locations: %w", err)
	}
	return out, nil
}

func (s *SQLStore) SaveLocations(ctx context.Context, locs []weather.Location) (err error) {
	defer s.observe("save_locations", &err)()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	q := tx.Rebind(`INSERT INTO locations (postcode, woonplaats, gemeente, provincie, latitude, longitude, soort)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for _, l := range locs {
		if _, err = tx.ExecContext(ctx, q, l.Postcode, l.Woonplaats, l.Gemeente, l.Provincie, l.Lat, l.Lon, l.Soort); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert location %q: %w", l.Woonplaats, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CountLocations is used to decide whether the catalogue needs seeding.
func (s *SQLStore) CountLocations(ctx context.Context) (n int, err error) {
	defer s.observe("count_locations", &err)()
	err = s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM locations")
	return n, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
