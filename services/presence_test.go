package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"studysync/presence-service/models"
	"studysync/presence-service/utils"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// backend is a store plus the knobs the tests need: simulated time and a way
// to take the store down.
type backend struct {
	name    string
	store   Store
	advance func(time.Duration)
	fail    func()
}

func redisBackend(t *testing.T) backend {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	return backend{
		name:    "redis",
		store:   NewRedisStore(client),
		advance: mr.FastForward,
		fail:    mr.Close,
	}
}

func memoryBackend(t *testing.T) backend {
	t.Helper()
	clock := newFakeClock()
	store := NewMemoryStore(clock.Now)
	return backend{
		name:    "memory",
		store:   store,
		advance: clock.Advance,
		fail:    func() { store.Close() },
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, b backend, ps *PresenceService)) {
	for _, newBackend := range []func(*testing.T) backend{redisBackend, memoryBackend} {
		b := newBackend(t)
		t.Run(b.name, func(t *testing.T) {
			ps := NewPresenceService(b.store, testLogger())
			ps.SetPresenceTTL(60 * time.Second)
			ps.SetStoreTimeout(time.Second)
			fn(t, b, ps)
		})
	}
}

func testLogger() *utils.Logger {
	return utils.NewLoggerTo(io.Discard, "error")
}

func TestStatusBeforeHeartbeatIsOffline(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, ps *PresenceService) {
		status, err := ps.Status(context.Background(), "never-seen")
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status != models.StatusOffline {
			t.Fatalf("expected offline, got %s", status)
		}
	})
}

func TestHeartbeatThenExpiry(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, ps *PresenceService) {
		ctx := context.Background()
		if err := ps.Heartbeat(ctx, "u1"); err != nil {
			t.Fatalf("Heartbeat: %v", err)
		}

		status, err := ps.Status(ctx, "u1")
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status != models.StatusOnline {
			t.Fatalf("expected online right after heartbeat, got %s", status)
		}

		b.advance(61 * time.Second)

		status, err = ps.Status(ctx, "u1")
		if err != nil {
			t.Fatalf("Status after expiry: %v", err)
		}
		if status != models.StatusOffline {
			t.Fatalf("expected offline after ttl, got %s", status)
		}
	})
}

func TestHeartbeatReplacesExpiry(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, ps *PresenceService) {
		ctx := context.Background()
		if err := ps.Heartbeat(ctx, "u1"); err != nil {
			t.Fatalf("Heartbeat: %v", err)
		}
		b.advance(40 * time.Second)
		if err := ps.Heartbeat(ctx, "u1"); err != nil {
			t.Fatalf("second Heartbeat: %v", err)
		}

		// 80s after the first heartbeat, 40s after the second
		b.advance(40 * time.Second)
		if status, _ := ps.Status(ctx, "u1"); status != models.StatusOnline {
			t.Fatalf("refreshed record should still be online, got %s", status)
		}

		// 61s after the second heartbeat; an additive expiry would still be live
		b.advance(21 * time.Second)
		if status, _ := ps.Status(ctx, "u1"); status != models.StatusOffline {
			t.Fatalf("expiry should be ttl after the latest heartbeat, got %s", status)
		}
	})
}

func TestBulkStatus(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, ps *PresenceService) {
		ctx := context.Background()
		if err := ps.Heartbeat(ctx, "u1"); err != nil {
			t.Fatalf("Heartbeat: %v", err)
		}

		got, err := ps.BulkStatus(ctx, []string{"u1", "u2", "u3"})
		if err != nil {
			t.Fatalf("BulkStatus: %v", err)
		}
		want := map[string]models.Status{
			"u1": models.StatusOnline,
			"u2": models.StatusOffline,
			"u3": models.StatusOffline,
		}
		if len(got) != len(want) {
			t.Fatalf("expected %d entries, got %v", len(want), got)
		}
		for id, status := range want {
			if got[id] != status {
				t.Fatalf("%s: expected %s, got %s", id, status, got[id])
			}
		}
	})
}

func TestBulkStatusDuplicates(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, ps *PresenceService) {
		ctx := context.Background()
		if err := ps.Heartbeat(ctx, "a"); err != nil {
			t.Fatalf("Heartbeat: %v", err)
		}

		got, err := ps.BulkStatus(ctx, []string{"a", "a", "b"})
		if err != nil {
			t.Fatalf("BulkStatus: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected keys {a,b}, got %v", got)
		}
		direct, err := ps.Status(ctx, "a")
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if got["a"] != direct {
			t.Fatalf("bulk status for a (%s) differs from direct status (%s)", got["a"], direct)
		}
		if got["b"] != models.StatusOffline {
			t.Fatalf("expected b offline, got %s", got["b"])
		}
	})
}

func TestBulkStatusEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, ps *PresenceService) {
		got, err := ps.BulkStatus(context.Background(), []string{})
		if err != nil {
			t.Fatalf("BulkStatus: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("expected empty non-nil map, got %#v", got)
		}
	})
}

func TestInvalidArgument(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, ps *PresenceService) {
		ctx := context.Background()
		if err := ps.Heartbeat(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("Heartbeat(\"\"): expected ErrInvalidArgument, got %v", err)
		}
		if _, err := ps.Status(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("Status(\"\"): expected ErrInvalidArgument, got %v", err)
		}
		if _, err := ps.BulkStatus(ctx, []string{"u1", ""}); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("BulkStatus with empty id: expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestStoreFailureIsNotOffline(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, ps *PresenceService) {
		ctx := context.Background()
		if err := ps.Heartbeat(ctx, "u1"); err != nil {
			t.Fatalf("Heartbeat: %v", err)
		}
		b.fail()

		if status, err := ps.Status(ctx, "u1"); !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("Status: expected ErrStoreUnavailable, got status=%q err=%v", status, err)
		}
		if err := ps.Heartbeat(ctx, "u1"); !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("Heartbeat: expected ErrStoreUnavailable, got %v", err)
		}
		if _, err := ps.BulkStatus(ctx, []string{"u1", "u2"}); !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("BulkStatus: expected ErrStoreUnavailable, got %v", err)
		}
		if err := ps.Healthy(ctx); !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("Healthy: expected ErrStoreUnavailable, got %v", err)
		}
	})
}

func TestConcurrentCalls(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, ps *PresenceService) {
		ctx := context.Background()
		var wg sync.WaitGroup
		errs := make(chan error, 200)

		for i := 0; i < 50; i++ {
			userID := fmt.Sprintf("user-%d", i%10)
			wg.Add(2)
			go func() {
				defer wg.Done()
				if err := ps.Heartbeat(ctx, userID); err != nil {
					errs <- err
				}
			}()
			go func() {
				defer wg.Done()
				if _, err := ps.BulkStatus(ctx, []string{userID, "user-0", userID}); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent call failed: %v", err)
		}

		for i := 0; i < 10; i++ {
			userID := fmt.Sprintf("user-%d", i)
			if status, _ := ps.Status(ctx, userID); status != models.StatusOnline {
				t.Fatalf("%s: expected online, got %s", userID, status)
			}
		}
	})
}

func TestRedisKeyConvention(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ps := NewPresenceService(NewRedisStore(client), testLogger())
	if err := ps.Heartbeat(context.Background(), "u42"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	val, err := mr.Get("presence:u42")
	if err != nil {
		t.Fatalf("expected presence:u42 key: %v", err)
	}
	if val != "online" {
		t.Fatalf("expected literal online marker, got %q", val)
	}
	if ttl := mr.TTL("presence:u42"); ttl != DefaultPresenceTTL {
		t.Fatalf("expected ttl %v, got %v", DefaultPresenceTTL, ttl)
	}
}

// countingStore records how the service talks to the store.
type countingStore struct {
	Store
	mu          sync.Mutex
	markerCalls int
	bulkCalls   int
	bulkKeys    []string
}

func (s *countingStore) Marker(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	s.markerCalls++
	s.mu.Unlock()
	return s.Store.Marker(ctx, key)
}

func (s *countingStore) Markers(ctx context.Context, keys []string) (map[string]bool, error) {
	s.mu.Lock()
	s.bulkCalls++
	s.bulkKeys = append(s.bulkKeys, keys...)
	s.mu.Unlock()
	return s.Store.Markers(ctx, keys)
}

func TestBulkStatusSingleRoundTrip(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore(nil)}
	ps := NewPresenceService(store, testLogger())

	if _, err := ps.BulkStatus(context.Background(), []string{"a", "b", "a", "c", "b"}); err != nil {
		t.Fatalf("BulkStatus: %v", err)
	}
	if store.bulkCalls != 1 {
		t.Fatalf("expected one batched store call, got %d", store.bulkCalls)
	}
	if store.markerCalls != 0 {
		t.Fatalf("expected no point lookups, got %d", store.markerCalls)
	}
	if len(store.bulkKeys) != 3 {
		t.Fatalf("expected 3 deduplicated keys, got %v", store.bulkKeys)
	}

	if _, err := ps.BulkStatus(context.Background(), nil); err != nil {
		t.Fatalf("BulkStatus(nil): %v", err)
	}
	if store.bulkCalls != 1 {
		t.Fatalf("empty input should not reach the store")
	}
}

// hangingStore never answers until the caller gives up.
type hangingStore struct {
	Store
}

func (hangingStore) Marker(ctx context.Context, key string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestStoreTimeout(t *testing.T) {
	ps := NewPresenceService(hangingStore{Store: NewMemoryStore(nil)}, testLogger())
	ps.SetStoreTimeout(20 * time.Millisecond)

	start := time.Now()
	_, err := ps.Status(context.Background(), "u1")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the deadline to be the cause, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("store call was not bounded, took %v", elapsed)
	}
}
