package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	controller "github.com/LeonardoBeccarini/pond_doser/internal/services/dosing-controller"
	"github.com/LeonardoBeccarini/pond_doser/internal/sources"
	"github.com/LeonardoBeccarini/pond_doser/pkg/dosestate"
	"github.com/LeonardoBeccarini/pond_doser/pkg/logging"
	"github.com/LeonardoBeccarini/pond_doser/pkg/mqttbus"
)

func main() {
	cfg := loadConfig()
	log := logging.Must(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Errorf("dosing-controller: %v", err)
		os.Exit(1)
	}
}

func run(cfg Config, log *zap.SugaredLogger) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.location()
	if err != nil {
		log.Warnf("dosing-controller: %v, falling back to local time", err)
	}
	rules, err := controller.LoadRuleSet(cfg.RulesFile)
	if err != nil {
		return err
	}

	state, err := openStateStore(cfg)
	if err != nil {
		return err
	}
	defer state.Close()

	sensors, closeSensors, err := openSensorStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeSensors()

	mqClient, err := mqttbus.NewConn(ctx, &mqttbus.Config{
		Host:     cfg.MQTTHost,
		Port:     cfg.MQTTPort,
		User:     cfg.MQTTUser,
		Password: cfg.MQTTPassword,
		ClientID: cfg.MQTTClientID,
	}, log)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	publisher := mqttbus.NewPublisher(mqClient, cfg.CommandTopic, cfg.PublishTimeout, log)
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := controller.NewMetrics(reg)

	dispatcher := controller.NewDispatcher(publisher, cfg.CommandTopic, controller.BreakerConfig{}, log)
	monitor := controller.NewMonitor(
		sensors,
		sources.NewDirWaterColorSource(cfg.WaterTxtDir),
		sources.NewDirPondRegistry(cfg.PondInfoDir),
		state,
		rules,
		dispatcher,
		clock.RealClock{},
		controller.MonitorConfig{
			Interval:               cfg.PollInterval,
			RecordOnPublishFailure: cfg.RecordOnPublishFailure,
			MaxConcurrentPonds:     cfg.MaxConcurrentPonds,
			Location:               loc,
		},
		log,
		metrics,
	)

	probe := controller.Probe{MQTT: mqClient, Loop: monitor}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           controller.NewHTTPMux(probe, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("dosing-controller: HTTP listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("dosing-controller: http server: %v", err)
		}
	}()

	if cfg.GRPCHealthPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCHealthPort))
		if err != nil {
			return fmt.Errorf("grpc health listen: %w", err)
		}
		gh := controller.NewGRPCHealth(probe, log)
		go func() {
			if err := gh.Serve(ctx, lis, cfg.PollInterval); err != nil {
				log.Errorf("dosing-controller: grpc health: %v", err)
			}
		}()
	}

	log.Infof("dosing-controller: topic=%s sensors=%s state=%s record_on_failure=%t",
		cfg.CommandTopic, cfg.SensorBackend, cfg.StateBackend, cfg.RecordOnPublishFailure)
	_ = monitor.Run(ctx)

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Infof("dosing-controller: shutdown complete")
	return nil
}

func openStateStore(cfg Config) (dosestate.Store, error) {
	switch cfg.StateBackend {
	case "bolt":
		return dosestate.NewBoltStore(cfg.StateBoltPath)
	case "redis":
		return dosestate.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return dosestate.NewMemoryStore(), nil
	}
}

func openSensorStore(cfg Config, log *zap.SugaredLogger) (sources.SensorStore, func(), error) {
	if cfg.SensorBackend == "influx" {
		st, err := sources.NewInfluxSensorStore(sources.InfluxConfig{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
	return sources.NewFileSensorStore(cfg.SensorDir, clock.RealClock{}, log), func() {}, nil
}
