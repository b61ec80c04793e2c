package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weatherservice/internal/weather"
)

const (
	DefaultBuienradarURL = "https://data.buienradar.nl/2.0/feed/json"

	buienradarTimeLayout = "2006-01-02T15:04:05"
)

// BuienradarProvider implements weather.Feed for the Buienradar JSON feed.
type BuienradarProvider struct {
	name    string
	url     string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	loc     *time.Location
}

func NewBuienradarProvider(client *http.Client, url string) (*BuienradarProvider, error) {
	if url == "" {
		url = DefaultBuienradarURL
	}
	ams, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		return nil, fmt.Errorf("load feed time zone: %w", err)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "buienradar",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &BuienradarProvider{
		name: "buienradar",
		url:  url,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
		loc:     ams,
	}, nil
}

func (p *BuienradarProvider) Name() string {
	return p.name
}

type buienradarPayload struct {
	Actual struct {
		StationMeasurements []buienradarMeasurement `json:"stationmeasurements"`
	} `json:"actual"`
}

// Numeric fields are pointers so absent values can be told apart from zero.
type buienradarMeasurement struct {
	StationID            int      `json:"stationid"`
	StationName          string   `json:"stationname"`
	Lat                  float64  `json:"lat"`
	Lon                  float64  `json:"lon"`
	Regio                string   `json:"regio"`
	Timestamp            string   `json:"timestamp"`
	WeatherDescription   string   `json:"weatherdescription"`
	WindDirection        string   `json:"winddirection"`
	AirPressure          *float64 `json:"airpressure"`
	Temperature          *float64 `json:"temperature"`
	GroundTemperature    *float64 `json:"groundtemperature"`
	FeelTemperature      *float64 `json:"feeltemperature"`
	WindSpeed            *float64 `json:"windspeed"`
	WindSpeedBft         *float64 `json:"windspeedBft"`
	Humidity             *float64 `json:"humidity"`
	RainFallLastHour     *float64 `json:"rainFallLastHour"`
	SunPower             *float64 `json:"sunpower"`
	WindDirectionDegrees *float64 `json:"winddirectiondegrees"`
}

// FetchStations downloads the feed and returns one record per station
// measurement. Invalid records are returned as well; callers filter with Valid.
func (p *BuienradarProvider) FetchStations(ctx context.Context) ([]weather.FeedRecord, error) {
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, p.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	defer resp.Body.Close()

	var payload buienradarPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%s: decode feed: %w", p.name, err)
	}

	now := time.Now().UTC()
	out := make([]weather.FeedRecord, 0, len(payload.Actual.StationMeasurements))
	for _, m := range payload.Actual.StationMeasurements {
		out = append(out, p.toRecord(m, now))
	}
	return out, nil
}

func (p *BuienradarProvider) toRecord(m buienradarMeasurement, now time.Time) weather.FeedRecord {
	ts, err := time.ParseInLocation(buienradarTimeLayout, m.Timestamp, p.loc)
	if err != nil {
		ts = now
	}
	return weather.FeedRecord{
		StationID:            m.StationID,
		StationName:          m.StationName,
		Lat:                  m.Lat,
		Lon:                  m.Lon,
		Regio:                m.Regio,
		WeatherDescription:   m.WeatherDescription,
		WindDirection:        m.WindDirection,
		AirPressure:          orZero(m.AirPressure),
		WindDirectionDegrees: orZero(m.WindDirectionDegrees),
		Temperature:          orMissing(m.Temperature),
		GroundTemperature:    orMissing(m.GroundTemperature),
		FeelTemperature:      orMissing(m.FeelTemperature),
		Humidity:             orZero(m.Humidity),
		WindSpeed:            orZero(m.WindSpeed),
		WindSpeedBft:         orZero(m.WindSpeedBft),
		RainfallLastHour:     orZero(m.RainFallLastHour),
		SunPower:             orZero(m.SunPower),
		Timestamp:            ts.UTC().Truncate(time.Second),
	}
}

// orMissing is for the temperature fields, which carry the -999 sentinel.
func orMissing(v *float64) float64 {
	if v == nil {
		return weather.MissingValue
	}
	return *v
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
