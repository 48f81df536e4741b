package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/wunderground-weather/internal/config"
	"github.com/i474232898/wunderground-weather/internal/weather"
)

const (
	qos            = byte(1) // At least once delivery
	publishTimeout = 5 * time.Second

	payloadOnline  = "online"
	payloadOffline = "offline"
)

// client is the subset of mqtt.Client the publisher needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher mirrors station entities to Home Assistant through MQTT discovery.
type Publisher struct {
	client client
	cfg    config.MQTTConfig
	logger *slog.Logger

	mu        sync.Mutex
	announced map[string]bool
}

// NewPublisher creates a publisher with an unconnected paho client.
// The bridge status topic carries a retained "offline" will.
func NewPublisher(cfg config.MQTTConfig, logger *slog.Logger) *Publisher {
	logger = logger.With("component", "mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetWill(bridgeStatusTopic(cfg), payloadOffline, qos, true)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
		c.Publish(bridgeStatusTopic(cfg), qos, true, payloadOnline)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	return newPublisher(mqtt.NewClient(opts), cfg, logger)
}

func newPublisher(c client, cfg config.MQTTConfig, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:    c,
		cfg:       cfg,
		logger:    logger,
		announced: make(map[string]bool),
	}
}

// Connect establishes the broker connection, honouring ctx cancellation.
func (p *Publisher) Connect(ctx context.Context) error {
	c, ok := p.client.(mqtt.Client)
	if !ok {
		return nil
	}
	if c.IsConnected() {
		return nil
	}

	token := c.Connect()
	const poll = 200 * time.Millisecond
	for !token.WaitTimeout(poll) {
		select {
		case <-ctx.Done():
			c.Disconnect(0)
			return ctx.Err()
		default:
		}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Close marks the bridge offline and disconnects.
func (p *Publisher) Close() {
	c, ok := p.client.(mqtt.Client)
	if !ok || !c.IsConnected() {
		return
	}
	c.Publish(bridgeStatusTopic(p.cfg), qos, true, payloadOffline).WaitTimeout(publishTimeout)
	c.Disconnect(250)
}

// Publish implements weather.Sink. Discovery configs are sent once per station,
// then availability and (when available) the state document.
func (p *Publisher) Publish(ctx context.Context, station weather.Station, state weather.StationState) error {
	var msgs []message

	p.mu.Lock()
	if !p.announced[station.ID] {
		disc, err := discoveryMessages(p.cfg, station)
		if err != nil {
			p.mu.Unlock()
			return err
		}
		msgs = append(msgs, disc...)
		p.announced[station.ID] = true
	}
	p.mu.Unlock()

	stateMsgs, err := stateMessages(p.cfg, station, state)
	if err != nil {
		return err
	}
	msgs = append(msgs, stateMsgs...)

	if err := p.send(ctx, msgs); err != nil {
		// Resend discovery on the next attempt.
		p.mu.Lock()
		delete(p.announced, station.ID)
		p.mu.Unlock()
		return err
	}

	p.logger.Debug("published station state", "station", station.ID, "messages", len(msgs))
	return nil
}

func (p *Publisher) send(ctx context.Context, msgs []message) error {
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		token := p.client.Publish(m.Topic, qos, m.Retained, m.Payload)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish timeout for topic %s", m.Topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish to %s: %w", m.Topic, err)
		}
	}
	return nil
}

type message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

func bridgeStatusTopic(cfg config.MQTTConfig) string {
	return cfg.TopicPrefix + "/status"
}

func stationTopic(cfg config.MQTTConfig, stationID, leaf string) string {
	return fmt.Sprintf("%s/%s/%s", cfg.TopicPrefix, stationID, leaf)
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

type discoveryAvailability struct {
	Topic string `json:"topic"`
}

type discoveryConfig struct {
	Name              string                  `json:"name"`
	UniqueID          string                  `json:"unique_id"`
	StateTopic        string                  `json:"state_topic"`
	ValueTemplate     string                  `json:"value_template"`
	UnitOfMeasurement string                  `json:"unit_of_measurement,omitempty"`
	Icon              string                  `json:"icon,omitempty"`
	DeviceClass       string                  `json:"device_class,omitempty"`
	StateClass        string                  `json:"state_class,omitempty"`
	Availability      []discoveryAvailability `json:"availability"`
	AvailabilityMode  string                  `json:"availability_mode"`
	Device            discoveryDevice         `json:"device"`
}

const conditionKey = "condition"

// valueTemplate reads key from the state document. Absent readings are left
// out of the document and render as None, which Home Assistant shows as unknown.
func valueTemplate(key string) string {
	return fmt.Sprintf("{{ value_json.get('%s') }}", key)
}

// discoveryMessages builds one retained sensor config per registry entry plus
// one for the derived condition.
func discoveryMessages(cfg config.MQTTConfig, station weather.Station) ([]message, error) {
	device := discoveryDevice{
		Identifiers:  []string{"wunderground_" + station.ID},
		Name:         station.DisplayName(),
		Manufacturer: "Weather Underground",
		Model:        "Personal Weather Station",
	}
	availability := []discoveryAvailability{
		{Topic: bridgeStatusTopic(cfg)},
		{Topic: stationTopic(cfg, station.ID, "availability")},
	}
	stateTopic := stationTopic(cfg, station.ID, "state")

	configs := make([]discoveryConfig, 0, len(weather.SensorTypes)+1)
	for _, desc := range weather.SensorTypes {
		configs = append(configs, discoveryConfig{
			Name:              fmt.Sprintf("%s %s", desc.Name, station.ID),
			UniqueID:          fmt.Sprintf("%s_%s", station.ID, desc.Kind),
			StateTopic:        stateTopic,
			ValueTemplate:     valueTemplate(string(desc.Kind)),
			UnitOfMeasurement: desc.Unit,
			Icon:              desc.Icon,
			DeviceClass:       desc.DeviceClass,
			StateClass:        desc.StateClass,
			Availability:      availability,
			AvailabilityMode:  "all",
			Device:            device,
		})
	}
	configs = append(configs, discoveryConfig{
		Name:             fmt.Sprintf("Condition %s", station.ID),
		UniqueID:         fmt.Sprintf("%s_%s", station.ID, conditionKey),
		StateTopic:       stateTopic,
		ValueTemplate:    valueTemplate(conditionKey),
		Icon:             "mdi:weather-partly-cloudy",
		Availability:     availability,
		AvailabilityMode: "all",
		Device:           device,
	})

	msgs := make([]message, 0, len(configs))
	for _, c := range configs {
		payload, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal discovery config %s: %w", c.UniqueID, err)
		}
		msgs = append(msgs, message{
			Topic:    fmt.Sprintf("%s/sensor/wunderground_%s/config", cfg.DiscoveryPrefix, c.UniqueID),
			Payload:  payload,
			Retained: true,
		})
	}
	return msgs, nil
}

// stateMessages renders availability and, when available, the state document.
func stateMessages(cfg config.MQTTConfig, station weather.Station, state weather.StationState) ([]message, error) {
	availabilityTopic := stationTopic(cfg, station.ID, "availability")
	if !state.Available() {
		return []message{{Topic: availabilityTopic, Payload: []byte(payloadOffline), Retained: true}}, nil
	}

	obs := state.Latest.Observation
	doc := make(map[string]any, len(weather.SensorTypes)+2)
	for _, desc := range weather.SensorTypes {
		if v := desc.Value(obs); v != nil {
			doc[string(desc.Kind)] = *v
		}
	}
	doc[conditionKey] = weather.Classify(obs)
	if obs.ObservationTimeLocal != nil {
		doc["observed_at"] = *obs.ObservationTimeLocal
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return []message{
		{Topic: availabilityTopic, Payload: []byte(payloadOnline), Retained: true},
		{Topic: stationTopic(cfg, station.ID, "state"), Payload: payload, Retained: true},
	}, nil
}
