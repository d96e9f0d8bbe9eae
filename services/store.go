package services

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidArgument is returned for a missing or malformed user id.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStoreUnavailable is returned when the backing store cannot be
	// reached or does not answer in time. It is never reported as offline.
	ErrStoreUnavailable = errors.New("presence store unavailable")

	// ErrStoreClosed is returned by a store used after Close.
	ErrStoreClosed = errors.New("store closed")
)

// Store is a key-value store with per-key expiry. A marker is live from
// SetMarker until ttl elapses without another SetMarker for the same key.
type Store interface {
	// SetMarker writes the marker for key, replacing any previous expiry with now+ttl.
	SetMarker(ctx context.Context, key string, ttl time.Duration) error
	// Marker reports whether key holds a live marker.
	Marker(ctx context.Context, key string) (bool, error)
	// Markers resolves all keys in one round trip. Every key is present in the result.
	Markers(ctx context.Context, keys []string) (map[string]bool, error)
	Ping(ctx context.Context) error
	Close() error
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
