// Package mqtttest provides in-memory stand-ins for the paho client used in tests.
package mqtttest

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Token is a completed (or never completing) mqtt.Token.
type Token struct {
	err   error
	hangs bool
}

func DoneToken(err error) *Token { return &Token{err: err} }

// HangingToken never completes.
func HangingToken() *Token { return &Token{hangs: true} }

func (t *Token) Wait() bool { return !t.hangs }

func (t *Token) WaitTimeout(d time.Duration) bool {
	if t.hangs {
		time.Sleep(d)
		return false
	}
	return true
}

func (t *Token) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.hangs {
		close(ch)
	}
	return ch
}

func (t *Token) Error() error { return t.err }

// Published is one recorded call to Publish.
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// Client records publishes and delivers injected messages to subscribers.
// Methods not overridden panic through the nil embedded interface.
type Client struct {
	mqtt.Client

	mu           sync.Mutex
	connected    bool
	published    []Published
	handlers     map[string]mqtt.MessageHandler
	PublishErr   error
	HangPublish  bool
	SubscribeErr error
}

func NewClient() *Client {
	return &Client{connected: true, handlers: map[string]mqtt.MessageHandler{}}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) IsConnectionOpen() bool { return c.IsConnected() }

func (c *Client) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.HangPublish {
		return HangingToken()
	}
	if c.PublishErr != nil {
		return DoneToken(c.PublishErr)
	}
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = append([]byte(nil), p...)
	case string:
		b = []byte(p)
	}
	c.published = append(c.published, Published{Topic: topic, QoS: qos, Retained: retained, Payload: b})
	return DoneToken(nil)
}

func (c *Client) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubscribeErr != nil {
		return DoneToken(c.SubscribeErr)
	}
	c.handlers[topic] = callback
	return DoneToken(nil)
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.handlers, t)
	}
	return DoneToken(nil)
}

// Published returns a copy of everything published so far.
func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

// Subscribed reports whether a handler is registered for the topic filter.
func (c *Client) Subscribed(filter string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[filter]
	return ok
}

// Deliver hands msg to the handler registered for filter.
func (c *Client) Deliver(filter string, msg mqtt.Message) bool {
	c.mu.Lock()
	h, ok := c.handlers[filter]
	c.mu.Unlock()
	if !ok {
		return false
	}
	h(c, msg)
	return true
}

// Message is a minimal mqtt.Message.
type Message struct {
	TopicName string
	Body      []byte
	ID        uint16
	QoSLevel  byte
}

func (m *Message) Duplicate() bool   { return false }
func (m *Message) Qos() byte         { return m.QoSLevel }
func (m *Message) Retained() bool    { return false }
func (m *Message) Topic() string     { return m.TopicName }
func (m *Message) MessageID() uint16 { return m.ID }
func (m *Message) Payload() []byte   { return m.Body }
func (m *Message) Ack()              {}
