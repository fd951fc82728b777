package statestore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a missing or expired key.
var ErrNotFound = errors.New("statestore: key not found")

// ErrUnavailable reports that the backing store could not be reached.
// Callers degrade to a logged stale read rather than blocking.
var ErrUnavailable = errors.New("statestore: store unavailable")

// Store is the externalized key-value contract the orchestration core
// depends on.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes the value with an expiry. A non-positive ttl keeps the
	// previous expiry discipline of the implementation.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns the live keys matching the prefix. Recovery scans
	// depend on this after a process restart.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
