package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MQTTHost       string
	MQTTPort       int
	MQTTUser       string
	MQTTPassword   string
	MQTTClientID   string
	CommandTopic   string
	PublishTimeout time.Duration

	PollInterval           time.Duration
	RecordOnPublishFailure bool
	MaxConcurrentPonds     int
	RulesFile              string
	TimeZone               string

	SensorBackend string // "file" | "influx"
	SensorDir     string
	PondInfoDir   string
	WaterTxtDir   string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	StateBackend  string // "memory" | "bolt" | "redis"
	StateBoltPath string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HTTPPort       string
	GRPCHealthPort int

	LogLevel  string
	LogFormat string
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// envDuration accepts Go durations ("5s") or plain seconds ("60").
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func loadConfig() Config {
	return Config{
		MQTTHost:       env("MQTT_HOST", "localhost"),
		MQTTPort:       envInt("MQTT_PORT", 1883),
		MQTTUser:       env("MQTT_USER", ""),
		MQTTPassword:   env("MQTT_PASSWORD", ""),
		MQTTClientID:   env("MQTT_CLIENT_ID", fmt.Sprintf("pond-doser-%s", env("HOSTNAME", "local"))),
		CommandTopic:   env("DOSE_CMD_TOPIC", "pond/doser/cmd"),
		PublishTimeout: envDuration("PUBLISH_TIMEOUT", 3*time.Second),

		PollInterval:           envDuration("POLL_INTERVAL", 5*time.Second),
		RecordOnPublishFailure: envBool("RECORD_ON_PUBLISH_FAILURE", true),
		MaxConcurrentPonds:     envInt("MAX_CONCURRENT_PONDS", 1),
		RulesFile:              env("RULES_FILE", ""),
		TimeZone:               env("TZ", "Asia/Bangkok"),

		SensorBackend: strings.ToLower(env("SENSOR_BACKEND", "file")),
		SensorDir:     env("SENSOR_DIR", "./local_storage/sensor"),
		PondInfoDir:   env("POND_INFO_DIR", "./data_ponds"),
		WaterTxtDir:   env("WATER_TXT_DIR", "./output/water_output"),

		InfluxURL:    env("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  env("INFLUX_TOKEN", ""),
		InfluxOrg:    env("INFLUX_ORG", "pond"),
		InfluxBucket: env("INFLUX_BUCKET", "sensors"),

		StateBackend:  strings.ToLower(env("STATE_BACKEND", "memory")),
		StateBoltPath: env("STATE_BOLT_PATH", "./dose-state.db"),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisPassword: env("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		HTTPPort:       env("HTTP_PORT", "8080"),
		GRPCHealthPort: envInt("GRPC_HEALTH_PORT", 0),

		LogLevel:  env("LOG_LEVEL", "info"),
		LogFormat: env("LOG_FORMAT", "json"),
	}
}

func (c Config) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be > 0")
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("PUBLISH_TIMEOUT must be > 0")
	}
	if c.MaxConcurrentPonds < 1 {
		return fmt.Errorf("MAX_CONCURRENT_PONDS must be >= 1")
	}
	switch c.SensorBackend {
	case "file", "influx":
	default:
		return fmt.Errorf("unknown SENSOR_BACKEND %q", c.SensorBackend)
	}
	switch c.StateBackend {
	case "memory", "bolt", "redis":
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q", c.StateBackend)
	}
	return nil
}

// location falls back to the local zone when TZ cannot be loaded.
func (c Config) location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local, fmt.Errorf("invalid TZ=%q: %w", c.TimeZone, err)
	}
	return loc, nil
}
