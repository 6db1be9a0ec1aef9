package main

import (
	"context"
	"flag"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/utils/clock"

	pondSimulator "github.com/LeonardoBeccarini/pond_doser/internal/pond-simulator"
	"github.com/LeonardoBeccarini/pond_doser/pkg/logging"
	"github.com/LeonardoBeccarini/pond_doser/pkg/mqttbus"
)

func main() {
	pondID := flag.String("pond-id", "1", "pond identifier")
	clientID := flag.String("client-id", "pondSimulator1", "MQTT client ID")
	host := flag.String("host", "localhost", "MQTT broker host")
	port := flag.Int("port", 1883, "MQTT broker port")
	interval := flag.Duration("interval", 10*time.Second, "publish interval")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	ph := flag.Float64("ph", 7.2, "initial pH")
	temp := flag.Float64("temp", 29, "initial water temperature")
	do := flag.Float64("do", 6, "initial dissolved oxygen")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logging.Must(*logLevel, "console")
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &mqttbus.Config{
		Host:     *host,
		Port:     *port,
		User:     "guest",
		Password: "guest",
		ClientID: *clientID,
	}
	client, err := mqttbus.NewConn(ctx, cfg, log)
	if err != nil {
		log.Fatal(err)
	}

	publisher := mqttbus.NewPublisher(client, pondSimulator.SensorTopicPrefix+*pondID, mqttbus.DefaultPublishTimeout, log)
	consumer := mqttbus.NewConsumer(client, 1, log, pondSimulator.CommandTopic)

	generator := pondSimulator.NewGenerator(*pondID, rand.New(rand.NewSource(*seed)))
	generator.Set(*ph, *temp, *do)

	sim := pondSimulator.NewPondSimulator(consumer, publisher, generator, *pondID, clock.RealClock{}, log)
	sim.Start(ctx, *interval)
}
