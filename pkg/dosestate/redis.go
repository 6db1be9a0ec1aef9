package dosestate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
)

// RedisStore shares the dose history between controller instances.
// Keys: pond_doser:dose:{pond} hash of substance -> time,
// pond_doser:fingerprint:{pond} last fingerprint.
type RedisStore struct {
	client    *redis.Client
	closeOnce sync.Once
	closeErr  error
}

func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

func doseKey(pondID string) string        { return "pond_doser:dose:" + pondID }
func fingerprintKey(pondID string) string { return "pond_doser:fingerprint:" + pondID }

func (r *RedisStore) LastDose(ctx context.Context, pondID string, s model.Substance) (time.Time, bool, error) {
	if err := validate(pondID, s); err != nil {
		return time.Time{}, false, err
	}
	raw, err := r.client.HGet(ctx, doseKey(pondID), s.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to get last dose from redis: %w", err)
	}
	t, ok := decodeTime(raw)
	return t, ok, nil
}

func (r *RedisStore) RecordDose(ctx context.Context, pondID string, s model.Substance, at time.Time) error {
	if err := validate(pondID, s); err != nil {
		return err
	}
	if err := r.client.HSet(ctx, doseKey(pondID), s.String(), encodeTime(at)).Err(); err != nil {
		return fmt.Errorf("failed to store dose in redis: %w", err)
	}
	return nil
}

func (r *RedisStore) IsFingerprintSeen(ctx context.Context, pondID string, fp Fingerprint) (bool, error) {
	if strings.TrimSpace(pondID) == "" {
		return false, ErrEmptyPondID
	}
	last, err := r.client.Get(ctx, fingerprintKey(pondID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check fingerprint in redis: %w", err)
	}
	return last == string(fp), nil
}

func (r *RedisStore) RecordFingerprint(ctx context.Context, pondID string, fp Fingerprint) error {
	if strings.TrimSpace(pondID) == "" {
		return ErrEmptyPondID
	}
	if err := r.client.Set(ctx, fingerprintKey(pondID), string(fp), 0).Err(); err != nil {
		return fmt.Errorf("failed to store fingerprint in redis: %w", err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close is idempotent. Calls after Close fail with redis.ErrClosed.
func (r *RedisStore) Close() error {
	r.closeOnce.Do(func() { r.closeErr = r.client.Close() })
	return r.closeErr
}
