package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"splitpay/domain/interfaces"
)

const credentialKeyPrefix = "auth:cred:"

// RedisCredentialCache is a Redis-backed credential cache for deployments
// where multiple instances must share verification state. Entries expire
// through Redis TTL; Logout deletes them eagerly.
type RedisCredentialCache struct {
	client *redis.Client
}

// NewRedisCredentialCache creates a new Redis credential cache
func NewRedisCredentialCache(client *redis.Client) *RedisCredentialCache {
	return &RedisCredentialCache{client: client}
}

type cachedIdentity struct {
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
}

// Get retrieves a cached identity; a missing key is a miss, not an error
func (c *RedisCredentialCache) Get(ctx context.Context, key string) (interfaces.Identity, bool, error) {
	data, err := c.client.Get(ctx, credentialKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return interfaces.Identity{}, false, nil
	}
	if err != nil {
		return interfaces.Identity{}, false, fmt.Errorf("failed to read credential cache: %w", err)
	}

	var cached cachedIdentity
	if err := json.Unmarshal(data, &cached); err != nil {
		return interfaces.Identity{}, false, fmt.Errorf("failed to decode cached identity: %w", err)
	}
	return interfaces.Identity{ExternalID: cached.ExternalID, Username: cached.Username}, true, nil
}

// Set stores an identity with the given TTL
func (c *RedisCredentialCache) Set(ctx context.Context, key string, identity interfaces.Identity, ttl time.Duration) error {
	data, err := json.Marshal(cachedIdentity{
		ExternalID: identity.ExternalID,
		Username:   identity.Username,
	})
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	return c.client.Set(ctx, credentialKeyPrefix+key, data, ttl).Err()
}

// Delete removes a cached identity
func (c *RedisCredentialCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, credentialKeyPrefix+key).Err()
}
