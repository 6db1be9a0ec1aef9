package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
	"github.com/LeonardoBeccarini/pond_doser/internal/model/messages"
)

const sensorFilePattern = "sensor_*.json"

// FileSensorStore reads and writes one JSON file per reading
// (sensor_<stamp>.json) in a flat directory shared by all ponds.
type FileSensorStore struct {
	dir   string
	clock clock.PassiveClock
	log   *zap.SugaredLogger

	mu  sync.Mutex
	seq int
}

func NewFileSensorStore(dir string, clk clock.PassiveClock, log *zap.SugaredLogger) *FileSensorStore {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &FileSensorStore{dir: dir, clock: clk, log: log}
}

// scan decodes every sensor file, newest first. Unreadable or invalid files
// are skipped.
func (s *FileSensorStore) scan() ([]model.SensorReading, error) {
	files, err := listNewestFirst(s.dir, sensorFilePattern)
	if err != nil {
		return nil, fmt.Errorf("list sensor dir %s: %w", s.dir, err)
	}
	out := make([]model.SensorReading, 0, len(files))
	for _, f := range files {
		b, err := os.ReadFile(f.path)
		if err != nil {
			s.log.Warnf("sensors: read %s: %v", f.name, err)
			continue
		}
		r, err := messages.DecodeSensorReading(b)
		if err != nil {
			s.log.Warnf("sensors: skip %s: %v", f.name, err)
			continue
		}
		r.ID = f.name
		out = append(out, r)
	}
	return out, nil
}

func (s *FileSensorStore) PondIDs(_ context.Context) ([]string, error) {
	all, err := s.scan()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, r := range all {
		seen[r.PondID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FileSensorStore) Recent(_ context.Context, pondID string, n int) ([]model.SensorReading, error) {
	all, err := s.scan()
	if err != nil {
		return nil, err
	}
	out := make([]model.SensorReading, 0, n)
	for _, r := range all {
		if r.PondID != pondID {
			continue
		}
		out = append(out, r)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

// Append writes the reading to a new file. The write goes through a
// temporary name so readers never see a partial record.
func (s *FileSensorStore) Append(_ context.Context, r model.SensorReading) error {
	if strings.TrimSpace(r.PondID) == "" {
		return fmt.Errorf("append sensor reading: %w", ErrEmptyPondID)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create sensor dir: %w", err)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = s.clock.Now()
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode sensor reading: %w", err)
	}

	s.mu.Lock()
	s.seq++
	name := fmt.Sprintf("sensor_%s_%03d.json", s.clock.Now().Format("20060102_150405"), s.seq%1000)
	s.mu.Unlock()

	final := filepath.Join(s.dir, name)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write sensor file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit sensor file: %w", err)
	}
	s.log.Debugf("sensors: stored %s for pond %s", name, r.PondID)
	return nil
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }
