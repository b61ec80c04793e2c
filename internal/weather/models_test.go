package weather

import (
	"testing"
	"time"
)

func TestFeedRecordSplit(t *testing.T) {
	ams := time.FixedZone("CEST", 2*3600)
	r := FeedRecord{
		StationID:   6260,
		StationName: "Meetstation De Bilt",
		Lat:         52.1,
		Lon:         5.18,
		Temperature: 18.4,
		Timestamp:   time.Date(2024, 7, 1, 14, 50, 0, 500, ams),
	}
	now := time.Date(2024, 7, 1, 12, 55, 3, 900, time.UTC)

	st, obs := r.Split(now)
	if st.StationID != 6260 || obs.StationID != 6260 {
		t.Fatalf("station id not carried: %+v %+v", st, obs)
	}
	if !st.LastUpdated.Equal(now.Truncate(time.Second)) {
		t.Fatalf("LastUpdated = %v", st.LastUpdated)
	}
	want := time.Date(2024, 7, 1, 12, 50, 0, 0, time.UTC)
	if !obs.Timestamp.Equal(want) || obs.Timestamp.Location() != time.UTC {
		t.Fatalf("Timestamp = %v, want %v", obs.Timestamp, want)
	}
	if obs.WindDirection != "null" {
		t.Fatalf("WindDirection = %q, want null", obs.WindDirection)
	}
}

func TestFeedRecordValid(t *testing.T) {
	if (FeedRecord{Temperature: MissingValue}).Valid() {
		t.Fatalf("missing temperature must be invalid")
	}
	if !(FeedRecord{Temperature: 0}).Valid() {
		t.Fatalf("zero degrees is a valid temperature")
	}
}

func TestFieldValue(t *testing.T) {
	obs := Observation{Temperature: 12.5, Humidity: MissingValue, SunPower: 0}

	if _, err := ParseField("dewPoint"); err == nil {
		t.Fatalf("expected unknown field error")
	}
	f, err := ParseField("temperature")
	if err != nil {
		t.Fatalf("ParseField: %v", err)
	}
	if v, ok := f.Value(obs); !ok || v != 12.5 {
		t.Fatalf("temperature = %v, %v", v, ok)
	}
	if _, ok := FieldHumidity.Value(obs); ok {
		t.Fatalf("missing humidity must not be reported")
	}
	if v, ok := FieldSunPower.Value(obs); !ok || v != 0 {
		t.Fatalf("sun power = %v, %v", v, ok)
	}
}
