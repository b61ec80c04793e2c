package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/weatherservice/internal/metrics"
	"github.com/i474232898/weatherservice/internal/perflog"
	"github.com/i474232898/weatherservice/internal/store"
	"github.com/i474232898/weatherservice/internal/weather"
)

type testEnv struct {
	perf  *perflog.Service
	store *store.MemoryStore
}

func newTestEnv(t *testing.T) (*testEnv, func(*http.Request) *http.Response) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemoryStore(100)
	ctx := context.Background()

	observedAt := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	items := []weather.StationBatchItem{
		{
			Station: weather.Station{StationID: 6260, StationName: "Meetstation De Bilt", Lat: 52.10, Lon: 5.18, Regio: "Utrecht", LastUpdated: observedAt},
			Observation: weather.Observation{
				StationID: 6260, WeatherDescription: "Zonnig", Temperature: 20, GroundTemperature: 19,
				FeelTemperature: weather.MissingValue, Humidity: 60, WindSpeed: 3, Timestamp: observedAt,
			},
		},
		{
			Station: weather.Station{StationID: 6240, StationName: "Meetstation Schiphol", Lat: 52.30, Lon: 4.77, Regio: "Amsterdam", LastUpdated: observedAt},
			Observation: weather.Observation{
				StationID: 6240, WeatherDescription: "Bewolkt", Temperature: 22, GroundTemperature: 21,
				FeelTemperature: 21.5, Humidity: 70, WindSpeed: 5, Timestamp: observedAt,
			},
		},
	}
	if _, err := mem.SaveBatch(ctx, items); err != nil {
		t.Fatalf("seed observations: %v", err)
	}
	if err := mem.SaveLocations(ctx, []weather.Location{
		{Postcode: 3731, Woonplaats: "De Bilt", Gemeente: "De Bilt", Provincie: "Utrecht", Lat: 52.11, Lon: 5.18},
		{Postcode: 1011, Woonplaats: "Amsterdam", Gemeente: "Amsterdam", Provincie: "Noord-Holland", Lat: 52.37, Lon: 4.89},
	}); err != nil {
		t.Fatalf("seed locations: %v", err)
	}

	perf, err := perflog.New(filepath.Join(t.TempDir(), "perf.json"), 100, logger)
	if err != nil {
		t.Fatalf("perflog: %v", err)
	}
	reg := prometheus.NewRegistry()
	svc := weather.NewService(mem, nil, weather.Options{Logger: logger})
	app := NewApp(Deps{
		Service:  svc,
		PerfLog:  perf,
		Metrics:  metrics.NewCollector("test", reg),
		Gatherer: reg,
		Logger:   logger,
	})

	do := func(req *http.Request) *http.Response {
		t.Helper()
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("app.Test %s: %v", req.URL, err)
		}
		return resp
	}
	return &testEnv{perf: perf, store: mem}, do
}

func get(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestRootAndHealth(t *testing.T) {
	_, do := newTestEnv(t)

	resp := do(get("/"))
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "Testing that it's working!" {
		t.Fatalf("GET / = %d %q", resp.StatusCode, body)
	}

	resp = do(get("/health"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /health = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestStationsEndpoints(t *testing.T) {
	_, do := newTestEnv(t)

	var stations []map[string]interface{}
	resp := do(get("/api/stations"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	decode(t, resp, &stations)
	if len(stations) != 2 || stations[0]["stationId"] != float64(6240) {
		t.Fatalf("unexpected stations %v", stations)
	}

	var withWeather []map[string]interface{}
	resp = do(get("/api/stationsWithWeather"))
	decode(t, resp, &withWeather)
	if len(withWeather) != 2 {
		t.Fatalf("got %d rows, want 2", len(withWeather))
	}
	first := withWeather[0]
	if first["stationName"] != "Meetstation Schiphol" || first["temperature"] != float64(22) {
		t.Fatalf("unexpected row %v", first)
	}
	if first["stationId"] != float64(6240) {
		t.Fatalf("stationId missing from flat row: %v", first)
	}
}

func TestStationByName(t *testing.T) {
	_, do := newTestEnv(t)

	var got map[string]interface{}
	resp := do(get("/api/station/bilt"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	decode(t, resp, &got)
	if got["stationId"] != float64(6260) {
		t.Fatalf("unexpected station %v", got)
	}
	if got["feelTemperatureCalculated"] != true {
		t.Fatalf("expected calculated feel temperature, got %v", got)
	}

	resp = do(get("/api/station/Atlantis"))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var errBody map[string]interface{}
	decode(t, resp, &errBody)
	if errBody["error"] != true {
		t.Fatalf("unexpected error body %v", errBody)
	}
}

func TestNearest(t *testing.T) {
	_, do := newTestEnv(t)

	for _, path := range []string{"/api/nearest", "/api/nearest?location=%20%20"} {
		if resp := do(get(path)); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("GET %s = %d, want 400", path, resp.StatusCode)
		}
	}
	if resp := do(get("/api/nearest?location=Atlantis")); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown location = %d, want 404", resp.StatusCode)
	}

	var got map[string]interface{}
	resp := do(get("/api/nearest?location=Amsterdam"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	decode(t, resp, &got)
	if got["stationId"] != float64(6240) || got["locationName"] != "Amsterdam" {
		t.Fatalf("unexpected nearest %v", got)
	}
	if d, ok := got["distanceKm"].(float64); !ok || d <= 0 || d > 20 {
		t.Fatalf("unexpected distance %v", got["distanceKm"])
	}
}

func TestHistory(t *testing.T) {
	_, do := newTestEnv(t)

	var rows []map[string]interface{}
	resp := do(get("/api/history/6260"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	decode(t, resp, &rows)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 in the default window", len(rows))
	}

	resp = do(get("/api/history/6260?start=2020-01-01&end=2020-01-02"))
	decode(t, resp, &rows)
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want none", len(rows))
	}

	for _, path := range []string{
		"/api/history/abc",
		"/api/history/6260?start=yesterday",
		"/api/history/6260?start=2024-02-01&end=2024-01-01",
	} {
		if resp := do(get(path)); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("GET %s = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestLocations(t *testing.T) {
	_, do := newTestEnv(t)

	var locs []map[string]interface{}
	resp := do(get("/api/locations?limit=1&offset=1"))
	decode(t, resp, &locs)
	if len(locs) != 1 {
		t.Fatalf("got %d locations, want 1", len(locs))
	}
	resp = do(get("/api/locations?limit=0"))
	decode(t, resp, &locs)
	if len(locs) != 0 {
		t.Fatalf("limit=0 returned %d locations, want none", len(locs))
	}
	decode(t, do(get("/api/locations")), &locs)
	if len(locs) != 2 {
		t.Fatalf("default limit returned %d locations, want 2", len(locs))
	}
	if resp := do(get("/api/locations?limit=x")); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit = %d, want 400", resp.StatusCode)
	}
}

func TestInterpolateAndMap(t *testing.T) {
	_, do := newTestEnv(t)

	var est map[string]interface{}
	resp := do(get("/api/interpolate?lat=52.10&lon=5.18&field=temperature"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	decode(t, resp, &est)
	if v, ok := est["value"].(float64); !ok || v < 20 || v > 22 {
		t.Fatalf("unexpected estimate %v", est)
	}
	if resp := do(get("/api/interpolate?lat=100&lon=5")); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("out of range lat = %d, want 400", resp.StatusCode)
	}
	if resp := do(get("/api/interpolate?lat=52&lon=5&field=colour")); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field = %d, want 400", resp.StatusCode)
	}

	resp = do(get("/api/map/temperature?width=10&height=12&scale=2"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("map status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	if resp := do(get("/api/map/temperature?width=1000")); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("oversized map = %d, want 400", resp.StatusCode)
	}
}

func TestPerformanceEndpoints(t *testing.T) {
	env, do := newTestEnv(t)

	do(get("/api/stations"))
	do(get("/api/history/6260"))
	do(get("/api/history/6240"))
	do(get("/api/station/Atlantis"))

	var stats perflog.Stats
	decode(t, do(get("/api/performance/stats")), &stats)
	if stats.RequestCountByEndpoint["/api/history/{id}"] != 2 {
		t.Fatalf("unexpected counts %v", stats.RequestCountByEndpoint)
	}
	if rate := stats.SuccessRateByEndpoint["/api/station/Atlantis"]; rate != 0 {
		t.Fatalf("success rate = %v, want 0", rate)
	}

	var logs []map[string]interface{}
	decode(t, do(get("/api/performance/logs?path=history")), &logs)
	if len(logs) != 2 {
		t.Fatalf("got %d history entries, want 2", len(logs))
	}
	if logs[0]["isSuccessful"] != true || logs[0]["requestId"] == nil {
		t.Fatalf("unexpected entry %v", logs[0])
	}

	if resp := do(get("/api/performance/logs?startDate=nope")); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad startDate = %d, want 400", resp.StatusCode)
	}
	if len(env.perf.Logs(perflog.Filter{Path: "/metrics"})) != 0 {
		t.Fatalf("metrics scrapes must not be logged")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, do := newTestEnv(t)

	do(get("/api/stations"))
	resp := do(get("/metrics"))
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "test_api_requests_total") {
		t.Fatalf("request counter missing from scrape")
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-07-01T00:00:00Z", "2024-07-01T02:00:00+02:00", "2024-07-01", "2024-07-01T00:00:00", "1719792000"} {
		got, err := parseTime(s)
		if err != nil {
			t.Fatalf("parseTime(%q): %v", s, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parseTime(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := parseTime("soon"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPerformanceLogKeepsRequestPaths(t *testing.T) {
	env, do := newTestEnv(t)

	paths := []string{
		"/api/history/6260",
		"/api/stationsWithWeather",
		"/api/stations",
		"/api/station/Meetstation%20Schiphol",
		"/api/locations?limit=1",
	}
	for _, p := range paths {
		do(get(p))
	}

	entries := env.perf.Logs(perflog.Filter{})
	want := []string{
		"/api/history/6260",
		"/api/stationsWithWeather",
		"/api/stations",
		"/api/station/Meetstation%20Schiphol",
		"/api/locations",
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	seen := map[string]bool{}
	for i, e := range entries {
		if e.Path != want[i] || e.Method != http.MethodGet {
			t.Fatalf("entry %d = %s %q, want GET %q", i, e.Method, e.Path, want[i])
		}
		if e.RequestID == "" || seen[e.RequestID] {
			t.Fatalf("entry %d has empty or reused request id %q", i, e.RequestID)
		}
		seen[e.RequestID] = true
	}
}
