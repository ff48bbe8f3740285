// Package mqtt publishes STAMP payloads to an MQTT broker, one message per
// packet.
package mqtt

import (
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const defaultTimeout = 5 * time.Second

var ErrTimeout = errors.New("mqtt: publish timed out")

type Config struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Topic    string
	QoS      byte
	Retain   bool
	Timeout  time.Duration
}

// publishClient is the part of paho.Client the publisher uses.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

type Publisher struct {
	client  publishClient
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
}

// Connect dials the broker and returns a publisher for cfg.Topic.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("mqtt: topic is required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt: qos must be 0, 1 or 2")
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeoutOrDefault(cfg.Timeout))

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeoutOrDefault(cfg.Timeout)) {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}
	return newPublisher(client, cfg), nil
}

func newPublisher(c publishClient, cfg Config) *Publisher {
	return &Publisher{
		client:  c,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		retain:  cfg.Retain,
		timeout: timeoutOrDefault(cfg.Timeout),
	}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}

// Send publishes payload and waits for the broker acknowledgement the QoS
// level calls for.
func (p *Publisher) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	token := p.client.Publish(p.topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("%w: topic %s", ErrTimeout, p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) String() string { return "mqtt:" + p.topic }

func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
