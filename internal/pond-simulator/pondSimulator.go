package pond_simulator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/LeonardoBeccarini/pond_doser/internal/model/messages"
	"github.com/LeonardoBeccarini/pond_doser/pkg/dedup"
	"github.com/LeonardoBeccarini/pond_doser/pkg/mqttbus"
)

const (
	SensorTopicPrefix = "pond/sensor/"
	CommandTopic      = "pond/doser/cmd"
)

// PondSimulator publishes a reading every interval and feeds received dose
// commands for its pond back into the generator.
type PondSimulator struct {
	pondID    string
	generator *Generator
	publisher mqttbus.IPublisher
	consumer  mqttbus.IConsumer
	deduper   *dedup.Deduper
	clock     clock.WithTicker
	log       *zap.SugaredLogger
}

func NewPondSimulator(consumer mqttbus.IConsumer, publisher mqttbus.IPublisher, gen *Generator,
	pondID string, clk clock.WithTicker, log *zap.SugaredLogger) *PondSimulator {
	return &PondSimulator{
		pondID:    pondID,
		generator: gen,
		publisher: publisher,
		consumer:  consumer,
		deduper:   dedup.New(2*time.Minute, 10000),
		clock:     clk,
		log:       log,
	}
}

// Topic is where readings of this pond go.
func (s *PondSimulator) Topic() string { return SensorTopicPrefix + s.pondID }

// Start blocks until ctx is done.
func (s *PondSimulator) Start(ctx context.Context, interval time.Duration) {
	s.consumer.SetHandler(s.handleMessage)
	go func() {
		if err := s.consumer.ConsumeMessage(ctx); err != nil {
			s.log.Errorf("sim: command consumer: %v", err)
		}
	}()

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.publisher.Close()
			return
		case <-ticker.C():
			if err := s.publishOnce(); err != nil {
				s.log.Warnf("sim: publish error: %v", err)
			}
		}
	}
}

func (s *PondSimulator) publishOnce() error {
	r := s.generator.Next(s.clock.Now())
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	s.log.Debugf("sim: pond=%s ph=%.2f temp=%.2f do=%.2f", r.PondID, r.PH, r.Temperature, r.DO)
	return s.publisher.PublishToQos(s.Topic(), 1, false, payload)
}

func (s *PondSimulator) handleMessage(_ string, msg mqtt.Message) error {
	h := sha256.Sum256(msg.Payload())
	if !s.deduper.ShouldProcess(hex.EncodeToString(h[:])) {
		return nil
	}

	var cmd messages.DoseCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		return fmt.Errorf("invalid dose command: %w", err)
	}
	if cmd.Type != messages.DoseCommandType || string(cmd.PondID) != s.pondID {
		return nil
	}
	s.generator.ApplyDose(cmd)
	s.log.Infof("sim: pond %s dosed %v", s.pondID, cmd.Rounds)
	return nil
}
