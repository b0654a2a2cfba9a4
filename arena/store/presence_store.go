// arena/store/presence_store.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	redisu "github.com/TitanForge/ARENA-SERVICES/shared/redis"
)

// PresenceStore tracks where each player currently is: waiting in the queue
// or bound to a match. Both indexes live in Redis with a TTL safety net so a
// crashed arena instance cannot strand players in a phantom state forever.
type PresenceStore struct {
	client      *redis.ClusterClient
	presenceTTL time.Duration
}

// NewPresenceStore creates a PresenceStore with the given safety-net TTL.
func NewPresenceStore(client *redis.ClusterClient, presenceTTL time.Duration) *PresenceStore {
	return &PresenceStore{
		client:      client,
		presenceTTL: presenceTTL,
	}
}

// MarkQueued records that a player entered the queue.
func (ps *PresenceStore) MarkQueued(ctx context.Context, playerUUID string, enqueuedAt time.Time) error {
	key := fmt.Sprintf(redisu.QueuedKeyPrefix, playerUUID)
	if err := ps.client.Set(ctx, key, enqueuedAt.UnixMilli(), ps.presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark player %s queued: %w", playerUUID, err)
	}
	return nil
}

// ClearQueued removes a player's queued marker. Clearing an absent marker is
// not an error.
func (ps *PresenceStore) ClearQueued(ctx context.Context, playerUUID string) error {
	key := fmt.Sprintf(redisu.QueuedKeyPrefix, playerUUID)
	if err := ps.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear queued marker for player %s: %w", playerUUID, err)
	}
	return nil
}

// IsQueued reports whether the player currently holds a queued marker.
func (ps *PresenceStore) IsQueued(ctx context.Context, playerUUID string) (bool, error) {
	key := fmt.Sprintf(redisu.QueuedKeyPrefix, playerUUID)
	exists, err := ps.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check queued marker for player %s: %w", playerUUID, err)
	}
	return exists == 1, nil
}

// MarkInMatch binds a player to a match ID.
func (ps *PresenceStore) MarkInMatch(ctx context.Context, playerUUID, matchID string) error {
	key := fmt.Sprintf(redisu.InMatchKeyPrefix, playerUUID)
	if err := ps.client.Set(ctx, key, matchID, ps.presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark player %s in match %s: %w", playerUUID, matchID, err)
	}
	return nil
}

// ClearInMatch removes a player's match binding.
func (ps *PresenceStore) ClearInMatch(ctx context.Context, playerUUID string) error {
	key := fmt.Sprintf(redisu.InMatchKeyPrefix, playerUUID)
	if err := ps.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear match binding for player %s: %w", playerUUID, err)
	}
	return nil
}

// GetMatchID returns the match a player is bound to. Returns
// redisu.ErrRedisKeyNotFound (wrapped) when the player is not in a match.
func (ps *PresenceStore) GetMatchID(ctx context.Context, playerUUID string) (string, error) {
	key := fmt.Sprintf(redisu.InMatchKeyPrefix, playerUUID)
	matchID, err := ps.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("player %s is not in a match: %w", playerUUID, redisu.ErrRedisKeyNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get match binding for player %s: %w", playerUUID, err)
	}
	return matchID, nil
}

// IsInMatch reports whether the player is currently bound to a match.
func (ps *PresenceStore) IsInMatch(ctx context.Context, playerUUID string) (bool, error) {
	key := fmt.Sprintf(redisu.InMatchKeyPrefix, playerUUID)
	exists, err := ps.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check match binding for player %s: %w", playerUUID, err)
	}
	return exists == 1, nil
}
