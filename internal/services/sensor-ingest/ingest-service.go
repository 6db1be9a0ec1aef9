package sensor_ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/pond_doser/internal/model/messages"
	"github.com/LeonardoBeccarini/pond_doser/internal/sources"
	"github.com/LeonardoBeccarini/pond_doser/pkg/dedup"
	"github.com/LeonardoBeccarini/pond_doser/pkg/mqttbus"
)

const DefaultTopic = "pond/sensor/#"

// Stats counts what the service did with incoming messages.
type Stats struct {
	Received   int64 `json:"received"`
	Stored     int64 `json:"stored"`
	Duplicates int64 `json:"duplicates"`
	Rejected   int64 `json:"rejected"`
	Failed     int64 `json:"failed"`
}

// Service appends every valid sensor message to the sensor store.
type Service struct {
	consumer     mqttbus.IConsumer
	writer       sources.SensorWriter
	deduper      *dedup.Deduper
	writeTimeout time.Duration
	log          *zap.SugaredLogger

	received, stored, duplicates, rejected, failed atomic.Int64
	lastStoredAt                                   atomic.Int64
}

func NewService(consumer mqttbus.IConsumer, writer sources.SensorWriter, log *zap.SugaredLogger) *Service {
	s := &Service{
		consumer:     consumer,
		writer:       writer,
		deduper:      dedup.New(10*time.Minute, 20000),
		writeTimeout: 5 * time.Second,
		log:          log,
	}
	consumer.SetHandler(s.handle)
	return s
}

// Start consumes until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	return s.consumer.ConsumeMessage(ctx)
}

func (s *Service) handle(topic string, msg mqtt.Message) error {
	s.received.Add(1)

	// QoS 1 redeliveries carry the same payload. The key is marked only once
	// the reading is stored so a resend after a failed write goes through.
	h := sha256.Sum256(msg.Payload())
	key := hex.EncodeToString(h[:])
	if s.deduper.Seen(key) {
		s.duplicates.Add(1)
		return nil
	}

	if missing := messages.MissingSensorKeys(msg.Payload()); len(missing) > 0 {
		s.rejected.Add(1)
		s.log.Warnf("ingest: drop message on %s: missing %s", topic, strings.Join(missing, ", "))
		return nil
	}
	reading, err := messages.DecodeSensorReading(msg.Payload())
	if err != nil {
		s.rejected.Add(1)
		s.log.Warnf("ingest: drop message on %s: %v", topic, err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := s.writer.Append(ctx, reading); err != nil {
		s.failed.Add(1)
		return err
	}
	s.deduper.Mark(key)
	s.stored.Add(1)
	s.lastStoredAt.Store(time.Now().UnixNano())
	s.log.Infof("ingest: stored pond=%s ph=%.2f temp=%.1f do=%.1f",
		reading.PondID, reading.PH, reading.Temperature, reading.DO)
	return nil
}

func (s *Service) Stats() Stats {
	return Stats{
		Received:   s.received.Load(),
		Stored:     s.stored.Load(),
		Duplicates: s.duplicates.Load(),
		Rejected:   s.rejected.Load(),
		Failed:     s.failed.Load(),
	}
}

// LastStoredAt is zero until the first reading is stored.
func (s *Service) LastStoredAt() time.Time {
	n := s.lastStoredAt.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
