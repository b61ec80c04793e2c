package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/weatherservice/internal/weather"
)

const sampleFeed = `{
  "actual": {
    "stationmeasurements": [
      {
        "stationid": 6260,
        "stationname": "Meetstation De Bilt",
        "lat": 52.1,
        "lon": 5.18,
        "regio": "Utrecht",
        "timestamp": "2024-07-01T14:50:00",
        "weatherdescription": "Zwaar bewolkt",
        "winddirection": "ZW",
        "airpressure": 1012.3,
        "temperature": 18.4,
        "groundtemperature": 17.9,
        "feeltemperature": 18.4,
        "windspeed": 4.2,
        "windspeedBft": 3,
        "humidity": 71,
        "rainFallLastHour": 0,
        "sunpower": 210,
        "winddirectiondegrees": 225
      },
      {
        "stationid": 6225,
        "stationname": "Meetstation IJmuiden",
        "lat": 52.47,
        "lon": 4.57,
        "regio": "IJmuiden",
        "timestamp": "2024-01-15T09:00:00",
        "weatherdescription": "Onbekend"
      }
    ]
  }
}`

func TestBuienradarFetchStations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	p, err := NewBuienradarProvider(srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	recs, err := p.FetchStations(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	first := recs[0]
	if first.StationID != 6260 || first.StationName != "Meetstation De Bilt" {
		t.Fatalf("unexpected station: %+v", first)
	}
	if !first.Valid() {
		t.Fatalf("expected first record to be valid")
	}
	// CEST is UTC+2 in July.
	wantTS := time.Date(2024, 7, 1, 12, 50, 0, 0, time.UTC)
	if !first.Timestamp.Equal(wantTS) {
		t.Fatalf("expected timestamp %v, got %v", wantTS, first.Timestamp)
	}
	if first.Humidity != 71 || first.WindDirection != "ZW" {
		t.Fatalf("unexpected measurements: %+v", first)
	}

	second := recs[1]
	if second.Valid() {
		t.Fatalf("expected record without temperature to be invalid")
	}
	if second.Temperature != weather.MissingValue || second.FeelTemperature != weather.MissingValue {
		t.Fatalf("expected missing temperatures, got %+v", second)
	}
	if second.Humidity != 0 || second.SunPower != 0 || second.RainfallLastHour != 0 || second.WindSpeed != 0 {
		t.Fatalf("expected unreported measurements to be zero, got %+v", second)
	}
	// CET is UTC+1 in January.
	wantTS = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	if !second.Timestamp.Equal(wantTS) {
		t.Fatalf("expected timestamp %v, got %v", wantTS, second.Timestamp)
	}
}

func TestBuienradarRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	p, err := NewBuienradarProvider(srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	p.httpCfg.Backoff.InitialInterval = time.Millisecond

	recs, err := p.FetchStations(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestBuienradarBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	p, err := NewBuienradarProvider(srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := p.FetchStations(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}
