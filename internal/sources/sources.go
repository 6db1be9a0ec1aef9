// Package sources reads the inputs of the dosing controller: sensor
// readings, water-color samples and pond registry records.
package sources

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
)

// SensorStore lists readings per pond.
type SensorStore interface {
	// PondIDs returns every pond with at least one reading, sorted.
	PondIDs(ctx context.Context) ([]string, error)
	// Recent returns up to n readings of the pond, newest first.
	Recent(ctx context.Context, pondID string, n int) ([]model.SensorReading, error)
}

// SensorWriter appends readings.
type SensorWriter interface {
	Append(ctx context.Context, r model.SensorReading) error
}

// WaterColorSource returns the most recent classifier output.
type WaterColorSource interface {
	// Latest returns ok=false when there is no sample yet.
	Latest(ctx context.Context) (model.WaterColorSample, bool, error)
}

// PondRegistry resolves pond attributes.
type PondRegistry interface {
	// Lookup returns ok=false when the pond is not registered.
	Lookup(ctx context.Context, pondID string) (model.PondAttributes, bool, error)
}

// SizeOf returns the registered size of the pond, or the default size when
// the pond is unknown or its record cannot be read.
func SizeOf(ctx context.Context, reg PondRegistry, pondID string) (model.PondAttributes, error) {
	if reg == nil {
		return model.DefaultPond(pondID), nil
	}
	attrs, ok, err := reg.Lookup(ctx, pondID)
	if err != nil || !ok {
		return model.DefaultPond(pondID), err
	}
	return attrs, nil
}

type fileEntry struct {
	path    string
	name    string
	modTime time.Time
}

// listNewestFirst returns the files of dir matching pattern, most recently
// modified first. A missing directory is an empty listing.
func listNewestFirst(dir, pattern string) ([]fileEntry, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	out := make([]fileEntry, 0, len(matches))
	for _, p := range matches {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if info.IsDir() {
			continue
		}
		out = append(out, fileEntry{path: p, name: filepath.Base(p), modTime: info.ModTime()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].modTime.Equal(out[j].modTime) {
			return out[i].name > out[j].name
		}
		return out[i].modTime.After(out[j].modTime)
	})
	return out, nil
}
