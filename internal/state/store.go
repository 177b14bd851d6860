// Package state keeps the host device snapshot and the shared sets the
// engine and the host observers consult, backed by Redis.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"automator/internal/models"
	rkeys "automator/internal/redis"

	"github.com/redis/go-redis/v9"
)

// Store is the Redis-backed device snapshot of one host device
type Store struct {
	client   *redis.Client
	deviceID string
}

// NewStore creates a store for deviceID
func NewStore(client *redis.Client, deviceID string) *Store {
	return &Store{client: client, deviceID: deviceID}
}

// DeviceID returns the device the store is bound to
func (s *Store) DeviceID() string {
	return s.deviceID
}

// Snapshot returns the last saved state. A device that never reported yields NotFound.
func (s *Store) Snapshot(ctx context.Context) (models.DeviceState, error) {
	raw, err := s.client.Get(ctx, rkeys.DeviceKey(s.deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.DeviceState{DeviceID: s.deviceID}, models.NewNotFoundError("device state", s.deviceID)
	}
	if err != nil {
		return models.DeviceState{}, models.NewTransientError("load device state", err)
	}
	var st models.DeviceState
	if err := json.Unmarshal(raw, &st); err != nil {
		return models.DeviceState{}, fmt.Errorf("decode device state: %w", err)
	}
	return st, nil
}

// Save replaces the snapshot
func (s *Store) Save(ctx context.Context, st models.DeviceState) error {
	st.DeviceID = s.deviceID
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, rkeys.DeviceKey(s.deviceID), raw, 0).Err(); err != nil {
		return models.NewTransientError("save device state", err)
	}
	return nil
}

// SetPackages replaces the installed package set reported by the host
func (s *Store) SetPackages(ctx context.Context, pkgs []string) error {
	key := rkeys.PackagesKey(s.deviceID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(pkgs) > 0 {
			members := make([]any, len(pkgs))
			for i, p := range pkgs {
				members[i] = p
			}
			pipe.SAdd(ctx, key, members...)
		}
		return nil
	})
	return err
}

// IsInstalled reports whether pkg is in the installed set
func (s *Store) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	return s.client.SIsMember(ctx, rkeys.PackagesKey(s.deviceID), pkg).Result()
}
