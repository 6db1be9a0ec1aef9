package messages

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Values assumed for fields missing from a sensor record.
const (
	DefaultPH          = 7.0
	DefaultTemperature = 29.0
	DefaultDO          = 6.0
	DefaultPondID      = "1"
)

// RequiredSensorKeys are the keys a sensor record must carry to be ingested.
var RequiredSensorKeys = []string{"pond_id", "ph", "temperature", "do", "timestamp"}

var ErrInvalidSensorJSON = errors.New("sensor record is not valid JSON")

// SensorReading is one water-quality sample of a pond.
// ID is the identity of the stored record (file name, influx timestamp) and is
// what sensor fingerprints are made of; it never goes on the wire.
type SensorReading struct {
	ID          string    `json:"-"`
	PondID      string    `json:"pond_id"`
	PH          float64   `json:"ph"`
	Temperature float64   `json:"temperature"`
	DO          float64   `json:"do"`
	Timestamp   time.Time `json:"timestamp"`
}

// DecodeSensorReading parses a sensor record leniently: pond_id may be a
// number or a string, numeric fields may be strings, missing values fall
// back to the defaults above.
func DecodeSensorReading(payload []byte) (SensorReading, error) {
	if !gjson.ValidBytes(payload) {
		return SensorReading{}, ErrInvalidSensorJSON
	}
	doc := gjson.ParseBytes(payload)

	r := SensorReading{
		PondID:      DefaultPondID,
		PH:          floatOr(doc.Get("ph"), DefaultPH),
		Temperature: floatOr(doc.Get("temperature"), DefaultTemperature),
		DO:          floatOr(doc.Get("do"), DefaultDO),
	}
	if id := doc.Get("pond_id"); id.Exists() && strings.TrimSpace(id.String()) != "" {
		r.PondID = strings.TrimSpace(id.String())
	}
	if ts := doc.Get("timestamp"); ts.Exists() {
		r.Timestamp = parseTimestamp(ts.String())
	}
	return r, nil
}

// MissingSensorKeys lists the required keys absent from payload.
func MissingSensorKeys(payload []byte) []string {
	var missing []string
	res := gjson.GetManyBytes(payload, RequiredSensorKeys...)
	for i, r := range res {
		if !r.Exists() {
			missing = append(missing, RequiredSensorKeys[i])
		}
	}
	return missing
}

func floatOr(r gjson.Result, def float64) float64 {
	switch r.Type {
	case gjson.Number:
		return r.Float()
	case gjson.String:
		s := strings.ReplaceAll(strings.TrimSpace(r.Str), ",", ".")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return def
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time when s matches no known layout.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
