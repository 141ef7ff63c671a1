package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// LocalStore is the persistent key-value store backing unauthenticated
// device scopes. Values are JSON blobs (a records array and a profile
// object) keyed per device.
type LocalStore struct {
	client *redis.Client
}

// NewLocalStore creates a local store on an existing Redis client.
func NewLocalStore(client *redis.Client) *LocalStore {
	return &LocalStore{client: client}
}

// RecordsKey returns the key holding a device's serialized record list.
func RecordsKey(deviceID string) string {
	return fmt.Sprintf("device:%s:records", deviceID)
}

// ProfileKey returns the key holding a device's serialized profile.
func ProfileKey(deviceID string) string {
	return fmt.Sprintf("device:%s:profile", deviceID)
}

// Get returns the value stored at key, or ErrNotFound if the key is unset.
func (s *LocalStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("key %s: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("%w: local get: %v", ErrPersistence, err)
	}
	return val, nil
}

// Set stores a value at key with no expiry.
func (s *LocalStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: local set: %v", ErrPersistence, err)
	}
	return nil
}

// RemoveAll deletes the given keys. Missing keys are ignored.
func (s *LocalStore) RemoveAll(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: local remove: %v", ErrPersistence, err)
	}
	return nil
}
