package httpapi

import (
	"math"
	"time"

	"github.com/i474232898/weatherservice/internal/meteo"
	"github.com/i474232898/weatherservice/internal/weather"
)

type stationDTO struct {
	StationID   int       `json:"stationId"`
	StationName string    `json:"stationName"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Regio       string    `json:"regio"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type weatherDataDTO struct {
	ID                   int64   `json:"id"`
	StationID            int     `json:"stationId"`
	WeatherDescription   string  `json:"weatherDescription"`
	AirPressure          float64 `json:"airPressure"`
	WindDirection        string  `json:"windDirection"`
	WindDirectionDegrees float64 `json:"windDirectionDegrees"`
	Temperature          float64 `json:"temperature"`
	GroundTemperature    float64 `json:"groundTemperature"`
	FeelTemperature      float64 `json:"feelTemperature"`
	// FeelTemperatureCalculated is set when the feed had no feel temperature
	// and it was derived from temperature, humidity and wind.
	FeelTemperatureCalculated bool      `json:"feelTemperatureCalculated,omitempty"`
	Humidity                  float64   `json:"humidity"`
	WindSpeed                 float64   `json:"windSpeed"`
	WindSpeedBft              float64   `json:"windSpeedBft"`
	RainfallLastHour          float64   `json:"rainfallLastHour"`
	SunPower                  float64   `json:"sunPower"`
	Timestamp                 time.Time `json:"timestamp"`
}

// stationWithWeatherDTO is flat: the station fields shadow the embedded
// observation's stationId, and the observation is omitted when nil.
type stationWithWeatherDTO struct {
	StationID   int       `json:"stationId"`
	StationName string    `json:"stationName"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Regio       string    `json:"regio"`
	LastUpdated time.Time `json:"lastUpdated"`
	*weatherDataDTO
}

type nearestDTO struct {
	stationWithWeatherDTO
	LocationName      string  `json:"locationName"`
	LocationLatitude  float64 `json:"locationLatitude"`
	LocationLongitude float64 `json:"locationLongitude"`
	DistanceKm        float64 `json:"distanceKm"`
}

type locationDTO struct {
	ID         int64   `json:"id"`
	Postcode   int     `json:"postcode"`
	Woonplaats string  `json:"woonplaats"`
	Gemeente   string  `json:"gemeente"`
	Provincie  string  `json:"provincie"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Soort      string  `json:"soort"`
}

func toStationDTO(s weather.Station) stationDTO {
	return stationDTO{
		StationID:   s.StationID,
		StationName: s.StationName,
		Lat:         s.Lat,
		Lon:         s.Lon,
		Regio:       s.Regio,
		LastUpdated: s.LastUpdated,
	}
}

func toWeatherDataDTO(o weather.Observation) weatherDataDTO {
	d := weatherDataDTO{
		ID:                   o.ID,
		StationID:            o.StationID,
		WeatherDescription:   o.WeatherDescription,
		AirPressure:          o.AirPressure,
		WindDirection:        o.WindDirection,
		WindDirectionDegrees: o.WindDirectionDegrees,
		Temperature:          o.Temperature,
		GroundTemperature:    o.GroundTemperature,
		FeelTemperature:      o.FeelTemperature,
		Humidity:             o.Humidity,
		WindSpeed:            o.WindSpeed,
		WindSpeedBft:         o.WindSpeedBft,
		RainfallLastHour:     o.RainfallLastHour,
		SunPower:             o.SunPower,
		Timestamp:            o.Timestamp,
	}
	if v, ok := apparentTemperature(o); ok {
		d.FeelTemperature = v
		d.FeelTemperatureCalculated = true
	}
	return d
}

const (
	fallbackHumidity  = 60.0
	fallbackWindSpeed = 0.0
)

// apparentTemperature fills a missing feel temperature. Only the air
// temperature is required; humidity and wind fall back to 60% and calm.
func apparentTemperature(o weather.Observation) (float64, bool) {
	if o.FeelTemperature != weather.MissingValue || o.Temperature == weather.MissingValue {
		return 0, false
	}
	humidity, wind := o.Humidity, o.WindSpeed
	if humidity <= 0 || humidity > 100 {
		humidity = fallbackHumidity
	}
	if wind < 0 {
		wind = fallbackWindSpeed
	}
	v := meteo.ApparentTemperature(o.Temperature, humidity, wind)
	return math.Round(v*10) / 10, true
}

func toStationWithWeatherDTO(s weather.Station, o *weather.Observation) stationWithWeatherDTO {
	d := stationWithWeatherDTO{
		StationID:   s.StationID,
		StationName: s.StationName,
		Lat:         s.Lat,
		Lon:         s.Lon,
		Regio:       s.Regio,
		LastUpdated: s.LastUpdated,
	}
	if o != nil {
		w := toWeatherDataDTO(*o)
		d.weatherDataDTO = &w
	}
	return d
}

func toNearestDTO(r weather.NearestResult) nearestDTO {
	return nearestDTO{
		stationWithWeatherDTO: toStationWithWeatherDTO(r.Station, r.Observation),
		LocationName:          r.Location.Woonplaats,
		LocationLatitude:      r.Location.Lat,
		LocationLongitude:     r.Location.Lon,
		DistanceKm:            math.Round(r.DistanceKm*100) / 100,
	}
}

func toLocationDTO(l weather.Location) locationDTO {
	return locationDTO{
		ID:         l.ID,
		Postcode:   l.Postcode,
		Woonplaats: l.Woonplaats,
		Gemeente:   l.Gemeente,
		Provincie:  l.Provincie,
		Lat:        l.Lat,
		Lon:        l.Lon,
		Soort:      l.Soort,
	}
}
