package sources

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
)

var ErrEmptyPondID = errors.New("pond id required")

// MemorySensorStore keeps readings in insertion order.
type MemorySensorStore struct {
	mu       sync.RWMutex
	readings map[string][]model.SensorReading
}

func NewMemorySensorStore() *MemorySensorStore {
	return &MemorySensorStore{readings: make(map[string][]model.SensorReading)}
}

// Append stores r; an empty ID is derived from the timestamp.
func (m *MemorySensorStore) Append(_ context.Context, r model.SensorReading) error {
	if strings.TrimSpace(r.PondID) == "" {
		return ErrEmptyPondID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = stamp(r.Timestamp) + "#" + r.PondID + "#" + strconv.Itoa(len(m.readings[r.PondID]))
	}
	m.readings[r.PondID] = append(m.readings[r.PondID], r)
	return nil
}

func (m *MemorySensorStore) PondIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.readings))
	for id := range m.readings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemorySensorStore) Recent(_ context.Context, pondID string, n int) ([]model.SensorReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.readings[pondID]
	out := make([]model.SensorReading, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
