package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// mqttClient is the subset of mqtt.Client used for publishing.
type mqttClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	PublishTimeout time.Duration
}

// MQTTPublisher publishes retained snapshots to
// <prefix>/patients/<id>/alerts so a late subscriber sees the current set.
type MQTTPublisher struct {
	cfg    MQTTConfig
	client mqttClient
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewMQTTPublisher connects to the broker. Auto-reconnect is enabled so a
// broker restart does not require a server restart.
func NewMQTTPublisher(ctx context.Context, cfg MQTTConfig, logger zerolog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info().Str("broker", cfg.Broker).Msg("connected to mqtt broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Str("broker", cfg.Broker).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()

	wait := 30 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		wait = time.Until(dl)
	}
	if !token.WaitTimeout(wait) {
		return nil, fmt.Errorf("connect to %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}
	return newMQTTPublisher(cfg, client, logger), nil
}

func newMQTTPublisher(cfg MQTTConfig, client mqttClient, logger zerolog.Logger) *MQTTPublisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "ward"
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}
	return &MQTTPublisher{cfg: cfg, client: client, logger: logger}
}

// Topic returns the alert topic for a patient.
func (p *MQTTPublisher) Topic(snap AlertSnapshot) string {
	return fmt.Sprintf("%s/patients/%s/alerts", p.cfg.TopicPrefix, snap.PatientID)
}

func (p *MQTTPublisher) PublishAlerts(ctx context.Context, snap AlertSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnected() {
		return fmt.Errorf("not connected to mqtt broker")
	}

	if snap.Alerts == nil {
		snap.Alerts = []Alert{}
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode alert snapshot: %w", err)
	}

	topic := p.Topic(snap)
	token := p.client.Publish(topic, 1, true, payload)

	timeout := p.cfg.PublishTimeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.logger.Debug().Str("topic", topic).Int("alerts", len(snap.Alerts)).Msg("published alert snapshot")
	return nil
}

// IsConnected reports broker connectivity for the health endpoint.
func (p *MQTTPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Ping adapts IsConnected to the health check signature.
func (p *MQTTPublisher) Ping(context.Context) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("not connected to mqtt broker")
	}
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
