// Package dosestate persists when each substance was last dosed into each
// pond, and the last sensor window evaluated for it.
package dosestate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
)

// Never is the elapsed time reported for a substance that was never dosed.
// It exceeds every cooldown.
const Never = time.Duration(math.MaxInt64)

var (
	ErrEmptyPondID      = errors.New("pond id required")
	ErrUnknownSubstance = errors.New("unknown substance")
)

// Fingerprint identifies a set of sensor readings.
type Fingerprint string

// FingerprintOf hashes the reading ids; order does not matter.
func FingerprintOf(ids []string) Fingerprint {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Store is the dose history of all ponds.
type Store interface {
	// LastDose returns ok=false when the substance was never dosed or the
	// stored timestamp cannot be read.
	LastDose(ctx context.Context, pondID string, s model.Substance) (t time.Time, ok bool, err error)
	RecordDose(ctx context.Context, pondID string, s model.Substance, at time.Time) error
	// IsFingerprintSeen reports whether fp is the last fingerprint recorded
	// for the pond.
	IsFingerprintSeen(ctx context.Context, pondID string, fp Fingerprint) (bool, error)
	// RecordFingerprint replaces the pond's last fingerprint.
	RecordFingerprint(ctx context.Context, pondID string, fp Fingerprint) error
	Close() error
}

// TimeSinceLastDose returns now minus the last dose, or Never.
func TimeSinceLastDose(ctx context.Context, st Store, pondID string, s model.Substance, now time.Time) (time.Duration, error) {
	last, ok, err := st.LastDose(ctx, pondID, s)
	if err != nil {
		return 0, err
	}
	if !ok {
		return Never, nil
	}
	return now.Sub(last), nil
}

// ElapsedAll returns TimeSinceLastDose for every substance, indexed by channel.
func ElapsedAll(ctx context.Context, st Store, pondID string, now time.Time) ([model.NumSubstances]time.Duration, error) {
	var out [model.NumSubstances]time.Duration
	for _, s := range model.Substances() {
		d, err := TimeSinceLastDose(ctx, st, pondID, s, now)
		if err != nil {
			return out, err
		}
		out[s.Channel()] = d
	}
	return out, nil
}

func validate(pondID string, s model.Substance) error {
	if strings.TrimSpace(pondID) == "" {
		return ErrEmptyPondID
	}
	if !s.Valid() {
		return ErrUnknownSubstance
	}
	return nil
}

func encodeTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// decodeTime treats unparseable values as absent.
func decodeTime(v string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
