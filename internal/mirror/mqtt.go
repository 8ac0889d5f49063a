// v1
// internal/mirror/mqtt.go
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nrg-champ/telemetry-stream/internal/telemetry"
)

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttQoS            = 0
)

var ErrMQTTTimeout = errors.New("mqtt operation timed out")

// MQTTPublisher copies every sample to an MQTT topic.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	runID  string
	log    *slog.Logger
}

func NewMQTTPublisher(broker, topic, runID string, log *slog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("telemetry-stream-" + runID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout)
	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("connect %s: %w", broker, ErrMQTTTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, err)
	}
	log.Info("mqtt mirror ready", "broker", broker, "topic", topic)
	return &MQTTPublisher{client: c, topic: topic, runID: runID, log: log}, nil
}

func (m *MQTTPublisher) Name() string { return "mqtt" }

func (m *MQTTPublisher) Publish(ctx context.Context, s telemetry.Sample) error {
	payload, err := encode(m.runID, s)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}
	token := m.client.Publish(m.topic, mqttQoS, false, payload)

	wait := mqttPublishTimeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < wait {
		wait = time.Until(dl)
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("publish to %s: %w", m.topic, ErrMQTTTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

func (m *MQTTPublisher) Close() error {
	m.client.Disconnect(250)
	return nil
}
