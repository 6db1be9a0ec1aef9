package dosestate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
)

var (
	bucketDoses        = []byte("doses")
	bucketFingerprints = []byte("fingerprints")
)

// BoltStore keeps the dose history in a bbolt file so it survives restarts.
// Layout: doses/<pond>/<substance> = RFC3339 time, fingerprints/<pond> = last fingerprint.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("bolt path cannot be empty")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open dose state %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketDoses, bucketFingerprints} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init dose state buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) LastDose(_ context.Context, pondID string, s model.Substance) (time.Time, bool, error) {
	if err := validate(pondID, s); err != nil {
		return time.Time{}, false, err
	}
	var raw string
	err := b.db.View(func(tx *bolt.Tx) error {
		pond := tx.Bucket(bucketDoses).Bucket([]byte(pondID))
		if pond == nil {
			return nil
		}
		raw = string(pond.Get([]byte(s.String())))
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read last dose: %w", err)
	}
	if raw == "" {
		return time.Time{}, false, nil
	}
	t, ok := decodeTime(raw)
	return t, ok, nil
}

func (b *BoltStore) RecordDose(_ context.Context, pondID string, s model.Substance, at time.Time) error {
	if err := validate(pondID, s); err != nil {
		return err
	}
	return b.putDose(pondID, s.String(), encodeTime(at))
}

// putRaw writes an arbitrary timestamp value.
func (b *BoltStore) putRaw(pondID string, s model.Substance, raw string) error {
	return b.putDose(pondID, s.String(), raw)
}

func (b *BoltStore) IsFingerprintSeen(_ context.Context, pondID string, fp Fingerprint) (bool, error) {
	if strings.TrimSpace(pondID) == "" {
		return false, ErrEmptyPondID
	}
	var seen bool
	err := b.db.View(func(tx *bolt.Tx) error {
		seen = string(tx.Bucket(bucketFingerprints).Get([]byte(pondID))) == string(fp)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("read fingerprint: %w", err)
	}
	return seen, nil
}

func (b *BoltStore) RecordFingerprint(_ context.Context, pondID string, fp Fingerprint) error {
	if strings.TrimSpace(pondID) == "" {
		return ErrEmptyPondID
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFingerprints).Put([]byte(pondID), []byte(fp))
	})
	if err != nil {
		return fmt.Errorf("write fingerprint %s: %w", pondID, err)
	}
	return nil
}

func (b *BoltStore) putDose(pondID, key, value string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		pond, err := tx.Bucket(bucketDoses).CreateBucketIfNotExists([]byte(pondID))
		if err != nil {
			return err
		}
		return pond.Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("write dose %s/%s: %w", pondID, key, err)
	}
	return nil
}

func (b *BoltStore) Close() error { return b.db.Close() }
