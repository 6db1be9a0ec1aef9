package dosestate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
)

// MemoryStore keeps the dose history in process memory.
type MemoryStore struct {
	mu           sync.RWMutex
	lastDose     map[string]map[model.Substance]string
	fingerprints map[string]Fingerprint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lastDose:     make(map[string]map[model.Substance]string),
		fingerprints: make(map[string]Fingerprint),
	}
}

func (m *MemoryStore) LastDose(_ context.Context, pondID string, s model.Substance) (time.Time, bool, error) {
	if err := validate(pondID, s); err != nil {
		return time.Time{}, false, err
	}
	m.mu.RLock()
	v, ok := m.lastDose[pondID][s]
	m.mu.RUnlock()
	if !ok {
		return time.Time{}, false, nil
	}
	t, ok := decodeTime(v)
	return t, ok, nil
}

func (m *MemoryStore) RecordDose(_ context.Context, pondID string, s model.Substance, at time.Time) error {
	if err := validate(pondID, s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doses, ok := m.lastDose[pondID]
	if !ok {
		doses = make(map[model.Substance]string, model.NumSubstances)
		m.lastDose[pondID] = doses
	}
	doses[s] = encodeTime(at)
	return nil
}

// SetRaw stores an unparsed timestamp, as a damaged persisted record would be.
func (m *MemoryStore) SetRaw(pondID string, s model.Substance, raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastDose[pondID] == nil {
		m.lastDose[pondID] = make(map[model.Substance]string, model.NumSubstances)
	}
	m.lastDose[pondID][s] = raw
}

func (m *MemoryStore) IsFingerprintSeen(_ context.Context, pondID string, fp Fingerprint) (bool, error) {
	if strings.TrimSpace(pondID) == "" {
		return false, ErrEmptyPondID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	last, ok := m.fingerprints[pondID]
	return ok && last == fp, nil
}

func (m *MemoryStore) RecordFingerprint(_ context.Context, pondID string, fp Fingerprint) error {
	if strings.TrimSpace(pondID) == "" {
		return ErrEmptyPondID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fingerprints[pondID] = fp
	return nil
}

func (m *MemoryStore) Close() error { return nil }
