package storage

import (
	"context"
	"errors"
)

// Backend persists opaque session records (the credential and the cached
// identity) so a restart does not silently end the session. Backends never
// expire records on their own.
type Backend interface {
	// Initialize sets up the storage backend
	Initialize(ctx context.Context) error

	// Close closes the storage backend
	Close() error

	// Health checks if the storage backend is healthy
	Health(ctx context.Context) error

	// Get returns the record stored under key or an *ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the record stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes every listed key; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Name is a short label used in logs and metrics.
	Name() string
}

// ErrNotFound is returned when a key is not found
type ErrNotFound struct {
	Key string
}

func (e *ErrNotFound) Error() string {
	return "key not found: " + e.Key
}

// IsNotFound reports whether err is (or wraps) an *ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}
