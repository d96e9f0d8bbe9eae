package services

import (
	"context"
	"fmt"
	"time"

	"studysync/presence-service/models"
	"studysync/presence-service/utils"
)

const (
	presenceKeyPrefix = "presence:"

	DefaultPresenceTTL  = 60 * time.Second
	DefaultStoreTimeout = 300 * time.Millisecond
)

// PresenceService tracks online markers refreshed by heartbeats. It holds no
// mutable state besides the store handle and is safe for concurrent use.
type PresenceService struct {
	store   Store
	logger  *utils.Logger
	ttl     time.Duration
	timeout time.Duration
}

func NewPresenceService(store Store, logger *utils.Logger) *PresenceService {
	return &PresenceService{
		store:   store,
		logger:  logger,
		ttl:     DefaultPresenceTTL,
		timeout: DefaultStoreTimeout,
	}
}

// SetPresenceTTL must be called before the service is shared.
func (ps *PresenceService) SetPresenceTTL(ttl time.Duration) {
	ps.ttl = ttl
}

// SetStoreTimeout bounds every store call. It must be called before the service is shared.
func (ps *PresenceService) SetStoreTimeout(timeout time.Duration) {
	ps.timeout = timeout
}

func (ps *PresenceService) TTL() time.Duration {
	return ps.ttl
}

func presenceKey(userID string) string {
	return presenceKeyPrefix + userID
}

func statusOf(online bool) models.Status {
	if online {
		return models.StatusOnline
	}
	return models.StatusOffline
}

// Heartbeat marks userID online until ttl elapses without another heartbeat.
func (ps *PresenceService) Heartbeat(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, ps.timeout)
	defer cancel()

	if err := ps.store.SetMarker(ctx, presenceKey(userID), ps.ttl); err != nil {
		return storeError("heartbeat", err)
	}

	ps.logger.Debug("Heartbeat recorded", "user_id", userID, "ttl", ps.ttl)
	return nil
}

// Status reports whether userID is online. Unknown users are offline.
func (ps *PresenceService) Status(ctx context.Context, userID string) (models.Status, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, ps.timeout)
	defer cancel()

	online, err := ps.store.Marker(ctx, presenceKey(userID))
	if err != nil {
		return "", storeError("status", err)
	}
	return statusOf(online), nil
}

// BulkStatus resolves every id in userIDs with a single store round trip.
// Duplicate ids are looked up once and share one entry in the result.
func (ps *PresenceService) BulkStatus(ctx context.Context, userIDs []string) (map[string]models.Status, error) {
	result := make(map[string]models.Status, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if userID == "" {
			return nil, fmt.Errorf("%w: userIds must not contain empty ids", ErrInvalidArgument)
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		keys = append(keys, presenceKey(userID))
	}

	ctx, cancel := context.WithTimeout(ctx, ps.timeout)
	defer cancel()

	found, err := ps.store.Markers(ctx, keys)
	if err != nil {
		return nil, storeError("bulk status", err)
	}

	for _, userID := range userIDs {
		result[userID] = statusOf(found[presenceKey(userID)])
	}

	ps.logger.Debug("Bulk status resolved", "requested", len(userIDs), "unique", len(keys))
	return result, nil
}

// Healthy pings the store under the store timeout.
func (ps *PresenceService) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ps.timeout)
	defer cancel()

	if err := ps.store.Ping(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}
