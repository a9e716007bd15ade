package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/orderflow/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore implements IdempotencyStore using Redis.
// This is suitable for distributed deployments where multiple instances
// need to share idempotency state.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// storedEntry is the JSON payload kept in Redis for each key
type storedEntry struct {
	Response   []byte    `json:"response"`
	StatusCode int       `json:"status_code"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// NewRedisIdempotencyStore creates a new Redis-based idempotency store
func NewRedisIdempotencyStore(cfg RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: "action:idempotency:",
	}, nil
}

// NewRedisIdempotencyStoreWithClient creates a store with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = "action:idempotency:"
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Claim returns the cached entry for the key, and whether one exists.
// Redis TTL handles expiry, so a readable key is always live.
func (s *RedisIdempotencyStore) Claim(ctx context.Context, key string) (*shared.IdempotencyEntry, bool, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	var stored storedEntry
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("failed to decode idempotency entry: %w", err)
	}

	return &shared.IdempotencyEntry{
		Key:        key,
		Response:   stored.Response,
		StatusCode: stored.StatusCode,
		CreatedAt:  stored.CreatedAt,
		ExpiresAt:  stored.ExpiresAt,
	}, true, nil
}

// Store records the response under the key with the given TTL.
// Uses SETNX so the first response recorded for a key wins atomically,
// except that an accepted response replaces a cached rejection: the
// only writer of an accepted response is the request whose transition
// committed, so the plain SET cannot clobber another acceptance.
func (s *RedisIdempotencyStore) Store(ctx context.Context, key string, response []byte, statusCode int, ttl time.Duration) (bool, error) {
	now := time.Now()
	payload, err := json.Marshal(storedEntry{
		Response:   response,
		StatusCode: statusCode,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode idempotency entry: %w", err)
	}

	stored, err := s.client.SetNX(ctx, s.keyPrefix+key, payload, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to store idempotency entry: %w", err)
	}
	if stored || statusCode >= 400 {
		return stored, nil
	}

	existing, _, err := s.Claim(ctx, key)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.StatusCode < 400 {
		return false, nil
	}

	if err := s.client.Set(ctx, s.keyPrefix+key, payload, ttl).Err(); err != nil {
		return false, fmt.Errorf("failed to store idempotency entry: %w", err)
	}
	return true, nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisIdempotencyStore) GetClient() *redis.Client {
	return s.client
}

// Ensure RedisIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
