package publish

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/weatherservice/internal/weather"
)

type sent struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	open bool
	sent []sent
}

func (f *fakeClient) Connect() mqtt.Token {
	f.open = true
	return &mqtt.DummyToken{}
}

func (f *fakeClient) Disconnect(uint) { f.open = false }

func (f *fakeClient) IsConnectionOpen() bool { return f.open }

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.sent = append(f.sent, sent{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return &mqtt.DummyToken{}
}

func TestPublishRetainedPerStation(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, "weather", slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.Connect()

	items := []weather.StationObservation{
		{
			Station:     weather.Station{StationID: 6260, StationName: "De Bilt", Lat: 52.1, Lon: 5.18},
			Observation: weather.Observation{StationID: 6260, Temperature: 18.4, Timestamp: time.Date(2024, 7, 1, 12, 50, 0, 0, time.UTC)},
		},
		{
			Station:     weather.Station{StationID: 6240, StationName: "Schiphol"},
			Observation: weather.Observation{StationID: 6240, Temperature: 19.1},
		},
	}
	if err := p.Publish(context.Background(), items); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(fc.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(fc.sent))
	}
	first := fc.sent[0]
	if first.topic != "weather/stations/6260" || first.qos != 0 || !first.retained {
		t.Fatalf("unexpected publish %+v", first)
	}

	var msg Message
	if err := json.Unmarshal(first.payload, &msg); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if msg.StationName != "De Bilt" || msg.Observation.Temperature != 18.4 {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestPublishRequiresConnection(t *testing.T) {
	p := newPublisher(&fakeClient{}, "weather", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := p.Publish(context.Background(), []weather.StationObservation{{}}); err == nil {
		t.Fatalf("expected not connected error")
	}
}
