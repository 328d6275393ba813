// Package mqtt publishes fired alerts to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/logger"
	"firewatch/internal/models"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	alertQoS       = 1
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// ErrNotConnected is returned by Notify while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt not connected")

// publishClient is the part of paho.Client the publisher uses.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Publisher sends alerts as JSON to "<topic>/<camera>".
type Publisher struct {
	broker   string
	clientID string
	topic    string
	logger   *logger.Logger

	mu        sync.RWMutex
	client    publishClient
	closer    func()
	connected bool
	published uint64
}

// NewPublisher creates a publisher for the configured broker. Call Connect before use.
func NewPublisher(cfg *config.Config, log *logger.Logger) *Publisher {
	return &Publisher{
		broker:   brokerURL(cfg.MQTTBroker),
		clientID: cfg.MQTTClientID,
		topic:    strings.TrimSuffix(cfg.MQTTTopic, "/"),
		logger:   log,
	}
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Connect dials the broker. Lost connections are re-established in the background.
func (p *Publisher) Connect(ctx context.Context) error {
	opts := paho.NewClientOptions()
	opts.AddBroker(p.broker)
	opts.SetClientID(p.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(paho.Client) {
		p.setConnected(true)
		p.logger.Info("MQTT connected to %s", p.broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		p.setConnected(false)
		p.logger.Warning("MQTT connection lost, reconnecting: %v", err)
	}

	client := paho.NewClient(opts)
	token := client.Connect()

	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		client.Disconnect(0)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	p.mu.Lock()
	p.client = client
	p.closer = func() { client.Disconnect(250) }
	p.connected = true
	p.mu.Unlock()
	return nil
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

// Topic returns the topic alerts for camera are published on.
func (p *Publisher) Topic(camera string) string {
	return p.topic + "/" + camera
}

// Notify publishes the alert with QoS 1.
func (p *Publisher) Notify(ctx context.Context, alert models.Alert) error {
	p.mu.RLock()
	client, connected := p.client, p.connected
	p.mu.RUnlock()

	if client == nil || !connected {
		return ErrNotConnected
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	topic := p.Topic(alert.Camera)
	token := client.Publish(topic, alertQoS, false, payload)

	select {
	case <-token.Done():
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish to %s timed out", topic)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()
	p.logger.Info("Alert %s published to %s", alert.AlertID, topic)
	return nil
}

// Published returns how many alerts were delivered.
func (p *Publisher) Published() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.published
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.mu.Lock()
	closer := p.closer
	p.closer = nil
	p.connected = false
	p.mu.Unlock()

	if closer != nil {
		closer()
	}
	return nil
}
