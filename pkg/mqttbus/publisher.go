package mqttbus

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// ErrPublishTimeout is returned when the broker does not acknowledge a
// publish within the publisher's timeout.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

const DefaultPublishTimeout = 3 * time.Second

// IPublisher publishes payloads to MQTT topics.
type IPublisher interface {
	PublishMessage(payload []byte) error
	PublishToQos(topic string, qos byte, retained bool, payload []byte) error
	Close()
}

// Publisher publishes to a default topic, or to any topic through PublishToQos.
type Publisher struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
	log     *zap.SugaredLogger
}

func NewPublisher(client mqtt.Client, topic string, timeout time.Duration, log *zap.SugaredLogger) *Publisher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Publisher{client: client, topic: topic, timeout: timeout, log: log}
}

// PublishMessage publishes payload to the default topic at QoS 0.
func (p *Publisher) PublishMessage(payload []byte) error {
	return p.PublishToQos(p.topic, 0, false, payload)
}

// PublishToQos waits at most the publisher timeout for the broker to
// acknowledge the message.
func (p *Publisher) PublishToQos(topic string, qos byte, retained bool, payload []byte) error {
	if topic == "" {
		return errors.New("publish: empty topic")
	}
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s: %w", topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.log.Debugf("mqtt: published %d bytes to %s (qos=%d)", len(payload), topic, qos)
	return nil
}

func (p *Publisher) Close() {
	Close(p.client, p.log)
}
