package services

import (
	"context"
	"sync"
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

// MemoryStore is an in-process Store for local runs of the desktop shell
// and for tests. Liveness is decided at read time from the stored expiry,
// so no sweeper is needed for correctness.
type MemoryStore struct {
	mu      sync.RWMutex
	expires map[string]time.Time
	now     Clock
	closed  bool
}

func NewMemoryStore(now Clock) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		expires: make(map[string]time.Time),
		now:     now,
	}
}

func (s *MemoryStore) SetMarker(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.expires[key] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) Marker(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	return s.liveLocked(key, s.now()), nil
}

func (s *MemoryStore) Markers(ctx context.Context, keys []string) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	now := s.now()
	found := make(map[string]bool, len(keys))
	for _, key := range keys {
		found[key] = s.liveLocked(key, now)
	}
	return found, nil
}

func (s *MemoryStore) liveLocked(key string, now time.Time) bool {
	expiresAt, ok := s.expires[key]
	return ok && now.Before(expiresAt)
}

// Compact drops expired entries and returns how many were removed.
func (s *MemoryStore) Compact() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, expiresAt := range s.expires {
		if !now.Before(expiresAt) {
			delete(s.expires, key)
			removed++
		}
	}
	return removed
}

// RunCompaction calls Compact every interval until ctx is done.
func (s *MemoryStore) RunCompaction(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Compact()
		}
	}
}

// Len returns the number of entries held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expires)
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
