package shared

import (
	"context"
	"time"
)

// IdempotencyEntry is the cached outcome of a previously dispatched action.
// While the entry lives, repeating the same key must replay Response and
// StatusCode verbatim without re-executing any side effect.
type IdempotencyEntry struct {
	Key        string
	Response   []byte
	StatusCode int
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the entry's TTL has elapsed. Expired entries
// behave as absent; lazy deletion is acceptable.
func (e *IdempotencyEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// IdempotencyStore caches action responses under client-supplied keys.
// It is the exactly-once guard at the API boundary: Store is
// insert-if-absent, so the first response recorded for a key wins,
// with one exception: an accepted response (status < 400) replaces a
// live rejection (status >= 400). Two racing requests on the same key
// may both compute a response before either stores it; if the loser's
// rejection lands first, the key must still end up replaying the
// outcome of the action that actually committed.
type IdempotencyStore interface {
	// Claim returns the cached entry for the key, and whether one exists.
	// An expired entry behaves as absent.
	Claim(ctx context.Context, key string) (*IdempotencyEntry, bool, error)

	// Store records the response for the key with the given TTL.
	// Returns true if the entry was written, false if the key already
	// held an entry that takes precedence (which is left untouched).
	Store(ctx context.Context, key string, response []byte, statusCode int, ttl time.Duration) (bool, error)

	// Close releases any resources held by the store
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is the time-to-live for cached responses.
	// After this duration the same key dispatches a fresh action.
	// Default: 24 hours
	TTL time.Duration
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL: 24 * time.Hour,
	}
}

// Idempotency key length bounds enforced by the action dispatch layer
const (
	MinIdempotencyKeyLen = 8
	MaxIdempotencyKeyLen = 255
)

// ValidateIdempotencyKey checks a client-supplied key for presence and shape.
// Validation happens before any store interaction.
func ValidateIdempotencyKey(key string) error {
	if key == "" {
		return ErrMissingKey
	}
	if len(key) < MinIdempotencyKeyLen || len(key) > MaxIdempotencyKeyLen {
		return ErrInvalidKey
	}
	return nil
}
