package weather

import (
	"time"
)

// MissingValue marks a temperature the feed did not report.
const MissingValue = -999.0

// Station is a fixed observation point from the feed.
type Station struct {
	StationID   int       `json:"stationId" db:"station_id"`
	StationName string    `json:"stationName" db:"station_name"`
	Lat         float64   `json:"lat" db:"latitude"`
	Lon         float64   `json:"lon" db:"longitude"`
	Regio       string    `json:"regio" db:"regio"`
	LastUpdated time.Time `json:"lastUpdated" db:"last_updated"`
}

// Observation is a single timestamped measurement of a station.
// Timestamp is always UTC with second precision.
type Observation struct {
	ID                   int64     `json:"id" db:"id"`
	StationID            int       `json:"stationId" db:"station_id"`
	WeatherDescription   string    `json:"weatherDescription" db:"weather_description"`
	AirPressure          float64   `json:"airPressure" db:"air_pressure"`
	WindDirection        string    `json:"windDirection" db:"wind_direction"`
	WindDirectionDegrees float64   `json:"windDirectionDegrees" db:"wind_direction_degrees"`
	Temperature          float64   `json:"temperature" db:"temperature"`
	GroundTemperature    float64   `json:"groundTemperature" db:"ground_temperature"`
	FeelTemperature      float64   `json:"feelTemperature" db:"feel_temperature"`
	Humidity             float64   `json:"humidity" db:"humidity"`
	WindSpeed            float64   `json:"windSpeed" db:"wind_speed"`
	WindSpeedBft         float64   `json:"windSpeedBft" db:"wind_speed_bft"`
	RainfallLastHour     float64   `json:"rainfallLastHour" db:"rainfall_last_hour"`
	SunPower             float64   `json:"sunPower" db:"sun_power"`
	Timestamp            time.Time `json:"timestamp" db:"observed_at"`
}

// Location is a named place used to resolve nearest-station queries.
type Location struct {
	ID         int64   `json:"id" db:"id"`
	Postcode   int     `json:"postcode" db:"postcode"`
	Woonplaats string  `json:"woonplaats" db:"woonplaats"`
	Gemeente   string  `json:"gemeente" db:"gemeente"`
	Provincie  string  `json:"provincie" db:"provincie"`
	Lat        float64 `json:"lat" db:"latitude"`
	Lon        float64 `json:"lon" db:"longitude"`
	Soort      string  `json:"soort" db:"soort"`
}

// StationObservation pairs a station with its most recent observation.
type StationObservation struct {
	Station     Station
	Observation Observation
}

// NearestResult is the answer to a nearest-station query.
type NearestResult struct {
	Station     Station
	Observation *Observation
	Location    Location
	DistanceKm  float64
}

// FeedRecord is one station measurement as delivered by the upstream feed,
// already normalized to UTC and with MissingValue for absent temperatures.
type FeedRecord struct {
	StationID            int
	StationName          string
	Lat                  float64
	Lon                  float64
	Regio                string
	WeatherDescription   string
	AirPressure          float64
	WindDirection        string
	WindDirectionDegrees float64
	Temperature          float64
	GroundTemperature    float64
	FeelTemperature      float64
	Humidity             float64
	WindSpeed            float64
	WindSpeedBft         float64
	RainfallLastHour     float64
	SunPower             float64
	Timestamp            time.Time
}

// Valid reports whether the record carries a usable air temperature.
func (r FeedRecord) Valid() bool {
	return r.Temperature != MissingValue
}

// Split converts the record into its persisted station and observation parts.
func (r FeedRecord) Split(now time.Time) (Station, Observation) {
	st := Station{
		StationID:   r.StationID,
		StationName: r.StationName,
		Lat:         r.Lat,
		Lon:         r.Lon,
		Regio:       r.Regio,
		LastUpdated: now.UTC().Truncate(time.Second),
	}
	windDir := r.WindDirection
	if windDir == "" {
		windDir = "null"
	}
	obs := Observation{
		StationID:            r.StationID,
		WeatherDescription:   r.WeatherDescription,
		AirPressure:          r.AirPressure,
		WindDirection:        windDir,
		WindDirectionDegrees: r.WindDirectionDegrees,
		Temperature:          r.Temperature,
		GroundTemperature:    r.GroundTemperature,
		FeelTemperature:      r.FeelTemperature,
		Humidity:             r.Humidity,
		WindSpeed:            r.WindSpeed,
		WindSpeedBft:         r.WindSpeedBft,
		RainfallLastHour:     r.RainfallLastHour,
		SunPower:             r.SunPower,
		Timestamp:            r.Timestamp.UTC().Truncate(time.Second),
	}
	return st, obs
}

// CollectionResult summarizes one fetch-and-store run.
type CollectionResult struct {
	Total int `json:"total"`
	Valid int `json:"valid"`
}

// Invalid is the number of records skipped because they had no temperature.
func (c CollectionResult) Invalid() int {
	return c.Total - c.Valid
}
