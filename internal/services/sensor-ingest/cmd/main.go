package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"k8s.io/utils/clock"

	ingest "github.com/LeonardoBeccarini/pond_doser/internal/services/sensor-ingest"
	"github.com/LeonardoBeccarini/pond_doser/internal/sources"
	"github.com/LeonardoBeccarini/pond_doser/pkg/logging"
	"github.com/LeonardoBeccarini/pond_doser/pkg/mqttbus"
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	log := logging.Must(env("LOG_LEVEL", "info"), env("LOG_FORMAT", "json"))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mqCfg := &mqttbus.Config{
		Host:     env("MQTT_HOST", "localhost"),
		Port:     envInt("MQTT_PORT", 1883),
		User:     env("MQTT_USER", ""),
		Password: env("MQTT_PASSWORD", ""),
		ClientID: env("MQTT_CLIENT_ID", fmt.Sprintf("pond-ingest-%s", env("HOSTNAME", "local"))),
	}
	mqClient, err := mqttbus.NewConn(ctx, mqCfg, log)
	if err != nil {
		log.Fatalf("ingest: mqtt connect failed: %v", err)
	}
	consumer := mqttbus.NewConsumer(mqClient, 1, log, env("SENSOR_TOPIC", ingest.DefaultTopic))

	var writer sources.SensorWriter
	switch backend := env("SENSOR_BACKEND", "file"); backend {
	case "influx":
		st, err := sources.NewInfluxSensorStore(sources.InfluxConfig{
			URL:    env("INFLUX_URL", "http://localhost:8086"),
			Token:  env("INFLUX_TOKEN", ""),
			Org:    env("INFLUX_ORG", "pond"),
			Bucket: env("INFLUX_BUCKET", "sensors"),
		})
		if err != nil {
			log.Fatalf("ingest: influx init failed: %v", err)
		}
		defer st.Close()
		writer = st
	case "file":
		writer = sources.NewFileSensorStore(env("SENSOR_DIR", "./local_storage/sensor"), clock.RealClock{}, log)
	default:
		log.Fatalf("ingest: unknown SENSOR_BACKEND %q", backend)
	}

	svc := ingest.NewService(consumer, writer, log)

	httpPort := env("HTTP_PORT", "8081")
	srv := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           ingest.NewHTTPMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("ingest: HTTP listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("ingest: http server error: %v", err)
		}
	}()

	if err := svc.Start(ctx); err != nil {
		log.Errorf("ingest: consume: %v", err)
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Infof("ingest: shutdown complete")
}
