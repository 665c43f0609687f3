// Package contextstore holds the short-TTL per-user conversational state:
// the last handled turn, pending disambiguation option lists, and pending
// fallback attribute sets.
package contextstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or its TTL has elapsed.
// Readers treat it as "no context", never as a failure.
var ErrNotFound = errors.New("context entry not found")

// Store is a key-value store with atomic per-key TTL expiry. Implementations
// must be safe for concurrent use from handlers serving different users.
type Store interface {
	// Get returns the value for key, or ErrNotFound if absent/expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key for ttl. Overwrites any prior entry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Ping verifies connectivity. Checked once at process start; a failure
	// there is fatal, later per-call failures only degrade to empty context.
	Ping(ctx context.Context) error
	Close() error
}
