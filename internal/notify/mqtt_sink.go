package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/fleetdesk/leaveguard/internal/app"
)

type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	// PublishTimeoutMS bounds each publish; zero means 5s.
	PublishTimeoutMS int `json:"publish_timeout_ms"`
}

func (c MQTTConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker is required when mqtt is enabled")
	}
	if c.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.QoS)
	}
	return nil
}

// pahoClient is the subset of the paho client used by MQTTSink.
type pahoClient interface {
	IsConnected() bool
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

var newMQTTClient = func(cfg MQTTConfig) (pahoClient, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

// MQTTSink publishes each event as JSON to <topic_prefix>/<event type>.
type MQTTSink struct {
	client  pahoClient
	prefix  string
	qos     byte
	timeout time.Duration
}

func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "leaveguard"
	}
	client, err := newMQTTClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", cfg.Broker, err)
	}
	prefix := strings.TrimSuffix(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = "leaveguard/events"
	}
	timeout := time.Duration(cfg.PublishTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTSink{client: client, prefix: prefix, qos: cfg.QoS, timeout: timeout}, nil
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Topic(t app.EventType) string {
	return s.prefix + "/" + string(t)
}

func (s *MQTTSink) Publish(ctx context.Context, event app.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", event.ID, err)
	}
	token := s.client.Publish(s.Topic(event.Type), s.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
		return fmt.Errorf("publishing event %s: timed out after %s", event.ID, s.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing event %s: %w", event.ID, err)
	}
	return nil
}

func (s *MQTTSink) Close() {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}
