// Package mqttbus wraps the paho MQTT client with connection retry,
// bounded publishing and topic consumers.
package mqttbus

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string

	// MaxRetries bounds the initial connection attempts.
	MaxRetries int
	// MaxElapsed bounds the total time spent retrying.
	MaxElapsed time.Duration
}

func (c *Config) brokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// ClientOptions returns the paho options used by NewConn.
func (c *Config) ClientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.brokerURL())
	if c.User != "" {
		opts.SetUsername(c.User)
		opts.SetPassword(c.Password)
	}
	opts.SetClientID(c.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(10 * time.Second)
	return opts
}

// NewConn connects to the broker, retrying with exponential backoff.
// The connection is closed when ctx is done.
func NewConn(ctx context.Context, cfg *Config, log *zap.SugaredLogger) (mqtt.Client, error) {
	opts := cfg.ClientOptions()
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnf("mqtt: connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Infof("mqtt: connected to %s as %s", cfg.brokerURL(), cfg.ClientID)
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.MaxElapsed
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Warnf("mqtt: connect to %s failed: %v", cfg.brokerURL(), token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	go func() {
		<-ctx.Done()
		Close(client, log)
	}()

	return client, nil
}

// Close disconnects the client if it is still connected.
func Close(client mqtt.Client, log *zap.SugaredLogger) {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		log.Infof("mqtt: connection closed")
	}
}
