package mqttbus

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Handler processes one message received on topic.
type Handler func(topic string, message mqtt.Message) error

// IConsumer subscribes to topics until its context is done.
type IConsumer interface {
	ConsumeMessage(ctx context.Context) error
	SetHandler(handler Handler)
}

// Consumer subscribes to a set of topic filters with a single handler.
type Consumer struct {
	client  mqtt.Client
	topics  []string
	qos     byte
	handler Handler
	log     *zap.SugaredLogger
}

func NewConsumer(client mqtt.Client, qos byte, log *zap.SugaredLogger, topics ...string) *Consumer {
	return &Consumer{client: client, topics: topics, qos: qos, log: log}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// ConsumeMessage subscribes to every topic and blocks until ctx is done.
// A failed subscription unsubscribes the topics already taken.
func (c *Consumer) ConsumeMessage(ctx context.Context) error {
	subscribed := make([]string, 0, len(c.topics))
	for _, topic := range c.topics {
		token := c.client.Subscribe(topic, c.qos, c.dispatch)
		token.Wait()
		if err := token.Error(); err != nil {
			c.unsubscribe(subscribed)
			return err
		}
		subscribed = append(subscribed, topic)
		c.log.Infof("mqtt: subscribed to %s (qos=%d)", topic, c.qos)
	}

	<-ctx.Done()
	c.unsubscribe(subscribed)
	return nil
}

func (c *Consumer) dispatch(_ mqtt.Client, msg mqtt.Message) {
	if c.handler == nil {
		c.log.Warnf("mqtt: no handler set, dropping message on %s", msg.Topic())
		return
	}
	if err := c.handler(msg.Topic(), msg); err != nil {
		c.log.Warnf("mqtt: handling message on %s: %v", msg.Topic(), err)
	}
}

func (c *Consumer) unsubscribe(topics []string) {
	if len(topics) == 0 || !c.client.IsConnected() {
		return
	}
	c.client.Unsubscribe(topics...).Wait()
}
