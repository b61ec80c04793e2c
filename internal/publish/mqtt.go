package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/weatherservice/internal/config"
	"github.com/i474232898/weatherservice/internal/logging"
	"github.com/i474232898/weatherservice/internal/weather"
)

// client is the part of mqtt.Client the publisher needs.
type client interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Message is the retained payload for one station.
type Message struct {
	StationID   int                 `json:"stationId"`
	StationName string              `json:"stationName"`
	Lat         float64             `json:"lat"`
	Lon         float64             `json:"lon"`
	Regio       string              `json:"regio"`
	Observation weather.Observation `json:"observation"`
}

// MQTTPublisher publishes the latest observation of every station as a
// retained message on {prefix}/stations/{stationId}.
type MQTTPublisher struct {
	client  client
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

func NewMQTTPublisher(cfg config.MQTT, logger *slog.Logger) *MQTTPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.Component(logger, "mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	return newPublisher(mqtt.NewClient(opts), cfg.TopicPrefix, logger)
}

func newPublisher(c client, prefix string, logger *slog.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client:  c,
		prefix:  prefix,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Connect starts connecting in the background; with connect-retry enabled
// the client keeps trying until the broker is reachable.
func (p *MQTTPublisher) Connect() {
	p.client.Connect()
}

// Topic returns the topic for a station.
func (p *MQTTPublisher) Topic(stationID int) string {
	return p.prefix + "/stations/" + strconv.Itoa(stationID)
}

// Publish sends one retained QoS 0 message per item.
func (p *MQTTPublisher) Publish(ctx context.Context, items []weather.StationObservation) error {
	if !p.client.IsConnectionOpen() {
		return errors.New("mqtt: not connected")
	}

	var errs []error
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := json.Marshal(Message{
			StationID:   it.Station.StationID,
			StationName: it.Station.StationName,
			Lat:         it.Station.Lat,
			Lon:         it.Station.Lon,
			Regio:       it.Station.Regio,
			Observation: it.Observation,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		token := p.client.Publish(p.Topic(it.Station.StationID), 0, true, payload)
		if !token.WaitTimeout(p.timeout) {
			errs = append(errs, fmt.Errorf("mqtt: publish to %s timed out", p.Topic(it.Station.StationID)))
			continue
		}
		if err := token.Error(); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: publish to %s: %w", p.Topic(it.Station.StationID), err))
		}
	}
	if len(errs) == 0 {
		p.logger.Debug("published observations", "count", len(items))
	}
	return errors.Join(errs...)
}

// Close disconnects, waiting briefly for in-flight messages.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
