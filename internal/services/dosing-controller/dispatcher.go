package dosing_controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/pond_doser/internal/model/messages"
	"github.com/LeonardoBeccarini/pond_doser/pkg/mqttbus"
)

const (
	DefaultCommandTopic = "pond/doser/cmd"
	commandQoS          = 1
)

// ErrNothingToDispatch is returned for decisions that dose nothing.
var ErrNothingToDispatch = errors.New("decision doses nothing")

// Dispatcher turns decisions into one QoS 1 publish each. It never retries;
// a circuit breaker fails fast while the broker keeps rejecting publishes.
type Dispatcher struct {
	pub   mqttbus.IPublisher
	topic string
	cb    *gobreaker.CircuitBreaker
	log   *zap.SugaredLogger
}

type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func NewDispatcher(pub mqttbus.IPublisher, topic string, bc BreakerConfig, log *zap.SugaredLogger) *Dispatcher {
	if topic == "" {
		topic = DefaultCommandTopic
	}
	if bc.ConsecutiveFailures == 0 {
		bc.ConsecutiveFailures = 5
	}
	if bc.OpenTimeout <= 0 {
		bc.OpenTimeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "dose-publish",
		Timeout: bc.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= bc.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("dispatcher: breaker %s %s -> %s", name, from, to)
		},
	})
	return &Dispatcher{pub: pub, topic: topic, cb: cb, log: log}
}

// Dispatch publishes the command for dec once.
func (d *Dispatcher) Dispatch(dec Decision) error {
	if !dec.AnyDosed {
		return ErrNothingToDispatch
	}
	cmd := messages.NewDoseCommand(dec.PondID, dec.Rotations)
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode dose command: %w", err)
	}
	_, err = d.cb.Execute(func() (interface{}, error) {
		return nil, d.pub.PublishToQos(d.topic, commandQoS, false, payload)
	})
	if err != nil {
		return fmt.Errorf("dispatch pond %s: %w", dec.PondID, err)
	}
	d.log.Infof("dispatcher: sent %s to %s", payload, d.topic)
	return nil
}

func (d *Dispatcher) BreakerState() gobreaker.State { return d.cb.State() }
