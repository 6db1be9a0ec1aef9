package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
	"github.com/LeonardoBeccarini/pond_doser/internal/model/messages"
)

const DefaultMeasurement = "pond_sensor"

type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
	// Lookback bounds the range every query scans.
	Lookback time.Duration
}

// InfluxSensorStore keeps readings as points of one measurement tagged by
// pond_id with fields ph, temperature and do.
type InfluxSensorStore struct {
	cfg    InfluxConfig
	client influxdb2.Client
	query  api.QueryAPI
	write  api.WriteAPIBlocking
}

func NewInfluxSensorStore(cfg InfluxConfig) (*InfluxSensorStore, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx config incomplete")
	}
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 7 * 24 * time.Hour
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSensorStore{
		cfg:    cfg,
		client: client,
		query:  client.QueryAPI(cfg.Org),
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

func (s *InfluxSensorStore) Append(ctx context.Context, r model.SensorReading) error {
	if strings.TrimSpace(r.PondID) == "" {
		return fmt.Errorf("append sensor reading: %w", ErrEmptyPondID)
	}
	t := r.Timestamp
	if t.IsZero() {
		t = time.Now()
	}
	point := influxdb2.NewPoint(s.cfg.Measurement,
		map[string]string{"pond_id": r.PondID},
		map[string]interface{}{"ph": r.PH, "temperature": r.Temperature, "do": r.DO},
		t)
	if err := s.write.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

func (s *InfluxSensorStore) PondIDs(ctx context.Context) ([]string, error) {
	res, err := s.query.Query(ctx, pondIDsQuery(s.cfg))
	if err != nil {
		return nil, fmt.Errorf("influx query pond ids: %w", err)
	}
	defer res.Close()
	var ids []string
	for res.Next() {
		if v, ok := res.Record().Value().(string); ok && v != "" {
			ids = append(ids, v)
		}
	}
	if res.Err() != nil {
		return nil, fmt.Errorf("influx read pond ids: %w", res.Err())
	}
	return ids, nil
}

func (s *InfluxSensorStore) Recent(ctx context.Context, pondID string, n int) ([]model.SensorReading, error) {
	res, err := s.query.Query(ctx, recentQuery(s.cfg, pondID, n))
	if err != nil {
		return nil, fmt.Errorf("influx query readings: %w", err)
	}
	defer res.Close()
	out := make([]model.SensorReading, 0, n)
	for res.Next() {
		rec := res.Record()
		out = append(out, model.SensorReading{
			ID:          rec.Time().UTC().Format(time.RFC3339Nano),
			PondID:      pondID,
			PH:          floatField(rec.ValueByKey("ph"), messages.DefaultPH),
			Temperature: floatField(rec.ValueByKey("temperature"), messages.DefaultTemperature),
			DO:          floatField(rec.ValueByKey("do"), messages.DefaultDO),
			Timestamp:   rec.Time(),
		})
	}
	if res.Err() != nil {
		return nil, fmt.Errorf("influx read readings: %w", res.Err())
	}
	return out, nil
}

func (s *InfluxSensorStore) Close() { s.client.Close() }

func pondIDsQuery(cfg InfluxConfig) string {
	return fmt.Sprintf(`import "influxdata/influxdb/schema"
schema.measurementTagValues(bucket: %q, measurement: %q, tag: "pond_id", start: -%s)`,
		cfg.Bucket, cfg.Measurement, fluxDuration(cfg.Lookback))
}

func recentQuery(cfg InfluxConfig, pondID string, n int) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%s)
  |> filter(fn: (r) => r._measurement == %q and r.pond_id == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)`,
		cfg.Bucket, fluxDuration(cfg.Lookback), cfg.Measurement, pondID, n)
}

// fluxDuration renders d in whole seconds, e.g. "604800s".
func fluxDuration(d time.Duration) string {
	return fmt.Sprintf("%ds", int64(d/time.Second))
}

func floatField(v interface{}, def float64) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	}
	return def
}
