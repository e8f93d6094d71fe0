// Package redis stores threshold preferences in Redis.
//
// Each preference is a single key holding the same binary encoding the
// embedded store uses:
//
//	Key:   <prefix>threshold:<user_id>
//	Value: mus-encoded core.ThresholdPreference
//
// Preferences never expire.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the repository.
const DefaultPrefix = "lostfound:"

// ThresholdRepository implements storage.ThresholdRepository for Redis.
type ThresholdRepository struct {
	client *redis.Client
	prefix string
}

var _ storage.ThresholdRepository = (*ThresholdRepository)(nil)

// NewThresholdRepository creates a repository using client.
// An empty prefix selects DefaultPrefix.
func NewThresholdRepository(client *redis.Client, prefix string) *ThresholdRepository {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &ThresholdRepository{client: client, prefix: prefix}
}

// Open connects to the Redis server at url (redis://host:port/db) and checks it answers.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (r *ThresholdRepository) key(userID string) string {
	return r.prefix + "threshold:" + userID
}

// GetThreshold returns the stored preference of userID.
func (r *ThresholdRepository) GetThreshold(ctx context.Context, userID string) (*core.ThresholdPreference, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return storage.UnmarshalThresholdPreference(data)
}

// SetThreshold stores a preference, replacing any previous value.
func (r *ThresholdRepository) SetThreshold(ctx context.Context, pref *core.ThresholdPreference) error {
	if pref.UpdatedAt.IsZero() {
		pref.UpdatedAt = time.Now().UTC()
	}
	return r.client.Set(ctx, r.key(pref.UserID), storage.MarshalThresholdPreference(pref), 0).Err()
}

// InitThreshold stores pref unless userID already has a preference.
func (r *ThresholdRepository) InitThreshold(ctx context.Context, pref *core.ThresholdPreference) (*core.ThresholdPreference, error) {
	if pref.UpdatedAt.IsZero() {
		pref.UpdatedAt = time.Now().UTC()
	}
	stored, err := r.client.SetNX(ctx, r.key(pref.UserID), storage.MarshalThresholdPreference(pref), 0).Result()
	if err != nil {
		return nil, err
	}
	if stored {
		return pref, nil
	}
	return r.GetThreshold(ctx, pref.UserID)
}
